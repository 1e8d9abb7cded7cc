// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package session persists the authenticated StaySpot identity across
// daemon restarts. A single profile record lives in BadgerDB; the
// session and CSRF cookie values are encrypted at rest.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/ashika557/stayspot-realtime/internal/config"
)

const profileKey = "profile:current"

var (
	// ErrNoProfile is returned by Load when no profile has been saved.
	ErrNoProfile = errors.New("no stored profile")
)

// Profile is the authenticated user identity the daemon operates as.
// Cookie values are plaintext here; the store encrypts them before they
// touch disk.
type Profile struct {
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	SessionCookie string    `json:"-"`
	CSRFToken     string    `json:"-"`
	SavedAt       time.Time `json:"saved_at"`
}

// storedProfile is the on-disk shape. Credential fields hold the
// encryptor's base64 output, never plaintext.
type storedProfile struct {
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	FullName         string    `json:"full_name"`
	Role             string    `json:"role"`
	SessionEncrypted string    `json:"session_encrypted,omitempty"`
	CSRFEncrypted    string    `json:"csrf_encrypted,omitempty"`
	SavedAt          time.Time `json:"saved_at"`
}

// Store is a BadgerDB-backed single-profile store.
type Store struct {
	db        *badger.DB
	encryptor *config.CredentialEncryptor
}

// Open opens (or creates) the profile store at path. The secret drives
// credential encryption; an empty secret is rejected so cookies can
// never land on disk unprotected.
func Open(path, secret string) (*Store, error) {
	encryptor, err := config.NewCredentialEncryptor(secret)
	if err != nil {
		return nil, fmt.Errorf("create credential encryptor: %w", err)
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open profile store at %s: %w", path, err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

// OpenInMemory opens a store backed by an in-memory Badger instance.
// Nothing survives Close; used in tests and when session.store_path is
// empty.
func OpenInMemory(secret string) (*Store, error) {
	encryptor, err := config.NewCredentialEncryptor(secret)
	if err != nil {
		return nil, fmt.Errorf("create credential encryptor: %w", err)
	}

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory profile store: %w", err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

// Save writes the profile, replacing any previous one.
func (s *Store) Save(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := storedProfile{
		UserID:   profile.UserID,
		Username: profile.Username,
		FullName: profile.FullName,
		Role:     profile.Role,
		SavedAt:  profile.SavedAt,
	}
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now().UTC()
	}

	if profile.SessionCookie != "" {
		enc, err := s.encryptor.Encrypt(profile.SessionCookie)
		if err != nil {
			return fmt.Errorf("encrypt session cookie: %w", err)
		}
		stored.SessionEncrypted = enc
	}
	if profile.CSRFToken != "" {
		enc, err := s.encryptor.Encrypt(profile.CSRFToken)
		if err != nil {
			return fmt.Errorf("encrypt csrf token: %w", err)
		}
		stored.CSRFEncrypted = enc
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKey), data)
	})
}

// Load returns the stored profile with credentials decrypted, or
// ErrNoProfile when none was saved.
func (s *Store) Load(ctx context.Context) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored storedProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoProfile
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		UserID:   stored.UserID,
		Username: stored.Username,
		FullName: stored.FullName,
		Role:     stored.Role,
		SavedAt:  stored.SavedAt,
	}

	if stored.SessionEncrypted != "" {
		dec, err := s.encryptor.Decrypt(stored.SessionEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt session cookie: %w", err)
		}
		profile.SessionCookie = dec
	}
	if stored.CSRFEncrypted != "" {
		dec, err := s.encryptor.Decrypt(stored.CSRFEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt csrf token: %w", err)
		}
		profile.CSRFToken = dec
	}

	return profile, nil
}

// Clear removes the stored profile. Clearing an empty store is not an
// error.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(profileKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
