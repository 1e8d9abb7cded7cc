// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package stayspot

import (
	"context"
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashika557/stayspot-realtime/internal/models"
)

// stubAPI returns canned results so breaker behavior can be driven
// without a live backend.
type stubAPI struct {
	err           error
	notifications []models.Notification
	conversations []models.Conversation
	messages      []models.Message
}

func (s *stubAPI) Ping(ctx context.Context) error { return s.err }

func (s *stubAPI) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return s.notifications, s.err
}

func (s *stubAPI) MarkNotificationRead(ctx context.Context, id int64) error { return s.err }

func (s *stubAPI) MarkAllNotificationsRead(ctx context.Context) error { return s.err }

func (s *stubAPI) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.conversations, s.err
}

func (s *stubAPI) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Conversation{ID: 1}, nil
}

func (s *stubAPI) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	return s.messages, s.err
}

func (s *stubAPI) MarkConversationRead(ctx context.Context, conversationID int64) error {
	return s.err
}

func (s *stubAPI) SendMedia(ctx context.Context, upload MediaUpload) (*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: 1}, nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	stub := &stubAPI{
		notifications: []models.Notification{{ID: 1, Recipient: 7, Text: "hello"}},
	}
	bc := NewBreakerClient(stub)

	got, err := bc.ListNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	require.NoError(t, bc.Ping(context.Background()))
	require.NoError(t, bc.MarkNotificationRead(context.Background(), 1))
}

func TestBreakerPassesThroughFailure(t *testing.T) {
	stub := &stubAPI{err: errors.New("backend down")}
	bc := NewBreakerClient(stub)

	_, err := bc.ListConversations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestBreakerOpensAfterFailureRate(t *testing.T) {
	stub := &stubAPI{err: errors.New("backend down")}
	bc := NewBreakerClient(stub)
	ctx := context.Background()

	// Trip threshold: >= 60% failures over >= 10 requests. Drive 10
	// straight failures so the breaker must open.
	for i := 0; i < 10; i++ {
		_, err := bc.ListNotifications(ctx)
		require.Error(t, err)
	}

	_, err := bc.ListNotifications(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open circuit, got: %v", err)
}

func TestBreakerStaysClosedBelowMinimumRequests(t *testing.T) {
	stub := &stubAPI{err: errors.New("backend down")}
	bc := NewBreakerClient(stub)
	ctx := context.Background()

	// Fewer than 10 requests never trips regardless of failure rate.
	for i := 0; i < 9; i++ {
		_, err := bc.ListMessages(ctx, 1)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
}
