// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package session

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-store-test-secret"

func rawProfileRecord(t *testing.T, store *Store) []byte {
	t.Helper()

	var raw []byte
	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	require.NoError(t, err)
	return raw
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenInMemory(testSecret)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("close store: %v", err)
		}
	})
	return store
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := &Profile{
		UserID:        7,
		Username:      "asha",
		FullName:      "Asha Karki",
		Role:          "Tenant",
		SessionCookie: "django-session-value",
		CSRFToken:     "csrf-token-value",
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.SessionCookie, got.SessionCookie)
	assert.Equal(t, want.CSRFToken, got.CSRFToken)
	assert.False(t, got.SavedAt.IsZero(), "SavedAt should be stamped on save")
}

func TestStoreLoadNoProfile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestStoreCredentialsNotPlaintextOnDisk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := &Profile{
		UserID:        3,
		Username:      "ram",
		SessionCookie: "super-secret-cookie",
	}
	require.NoError(t, store.Save(ctx, profile))

	// Read the raw record and ensure the cookie value does not appear.
	raw := rawProfileRecord(t, store)
	assert.NotContains(t, string(raw), "super-secret-cookie")
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{UserID: 1, Username: "x"}))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoProfile)

	// Clearing an already-empty store is fine.
	assert.NoError(t, store.Clear(ctx))
}

func TestStoreSaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{UserID: 1, Username: "first"}))
	require.NoError(t, store.Save(ctx, &Profile{UserID: 2, Username: "second"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UserID)
	assert.Equal(t, "second", got.Username)
}

func TestStoreSaveNilProfile(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(context.Background(), nil)
	assert.Error(t, err)
}

func TestStoreWrongSecretFailsDecrypt(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, "secret-one")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &Profile{UserID: 5, SessionCookie: "cookie"}))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, "secret-two")
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Load(ctx)
	assert.Error(t, err)
}
