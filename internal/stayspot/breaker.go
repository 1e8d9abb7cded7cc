// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package stayspot

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/models"
)

// BreakerClient wraps the REST client with circuit breaker protection so
// a dead or struggling backend stops absorbing request attempts.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests exercise the wrapped client directly or drive the breaker with
// enough failures to trip it.
type BreakerClient struct {
	client API
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var (
	_ API = (*Client)(nil)
	_ API = (*BreakerClient)(nil)
)

// NewBreakerClient wraps client with a circuit breaker:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute open period before recovery attempts
//   - Opens at a 60% failure rate over a minimum of 10 requests
func NewBreakerClient(client API) *BreakerClient {
	cbName := "stayspot-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute runs one API call under the breaker and updates request metrics.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies backend connectivity with circuit breaker protection.
func (bc *BreakerClient) Ping(ctx context.Context) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.Ping(ctx)
	})
	return err
}

// ListNotifications fetches notifications with circuit breaker protection.
func (bc *BreakerClient) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return castResult[[]models.Notification](bc.execute(func() (interface{}, error) {
		return bc.client.ListNotifications(ctx)
	}))
}

// MarkNotificationRead confirms a read flag with circuit breaker protection.
func (bc *BreakerClient) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.MarkNotificationRead(ctx, id)
	})
	return err
}

// MarkAllNotificationsRead flips all read flags with circuit breaker protection.
func (bc *BreakerClient) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.MarkAllNotificationsRead(ctx)
	})
	return err
}

// ListConversations fetches the conversation list with circuit breaker protection.
func (bc *BreakerClient) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return castResult[[]models.Conversation](bc.execute(func() (interface{}, error) {
		return bc.client.ListConversations(ctx)
	}))
}

// StartConversation resolves a conversation with circuit breaker protection.
func (bc *BreakerClient) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	return castResult[*models.Conversation](bc.execute(func() (interface{}, error) {
		return bc.client.StartConversation(ctx, userID)
	}))
}

// ListMessages fetches thread history with circuit breaker protection.
func (bc *BreakerClient) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	return castResult[[]models.Message](bc.execute(func() (interface{}, error) {
		return bc.client.ListMessages(ctx, conversationID)
	}))
}

// MarkConversationRead marks a thread read with circuit breaker protection.
func (bc *BreakerClient) MarkConversationRead(ctx context.Context, conversationID int64) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.MarkConversationRead(ctx, conversationID)
	})
	return err
}

// SendMedia uploads an attachment with circuit breaker protection.
func (bc *BreakerClient) SendMedia(ctx context.Context, upload MediaUpload) (*models.Message, error) {
	return castResult[*models.Message](bc.execute(func() (interface{}, error) {
		return bc.client.SendMedia(ctx, upload)
	}))
}
