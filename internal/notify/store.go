// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package notify holds the in-memory notification state for the session
// user: an ordered list deduplicated by id, a recomputed unread count,
// and optimistic mark-read operations confirmed against the backend.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/events"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/models"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
)

// Store is the single source of truth for the session user's
// notifications. All methods are safe for concurrent use.
//
// Invariants:
//   - No two items share an id.
//   - Every item's recipient matches the session user.
//   - Unread count always equals count(!is_read) over the list; it is
//     recomputed after every mutation, never blindly incremented.
//   - Newest first: incoming items are prepended.
type Store struct {
	api stayspot.API
	bus *events.Bus

	// repairOnFailure reverts optimistic read flips when the backend
	// confirmation fails. Off, the flip stays and local state may diverge
	// until the next LoadInitial.
	repairOnFailure bool

	mu       sync.RWMutex
	userID   int64
	items    []models.Notification
	unread   int
	revision int64
}

// NewStore builds an empty store bound to the backend client.
func NewStore(api stayspot.API, bus *events.Bus, cfg *config.NotificationsConfig) *Store {
	return &Store{
		api:             api,
		bus:             bus,
		repairOnFailure: cfg.RepairOnFailure,
	}
}

// SetUser binds the store to the session user. The recipient guard in
// ApplyIncoming matches against this id.
func (s *Store) SetUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// LoadInitial replaces the list wholesale from the backend and
// recomputes the unread count.
func (s *Store) LoadInitial(ctx context.Context) error {
	items, err := s.api.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.recomputeLocked()
	s.mu.Unlock()

	s.publishRevision("load")
	return nil
}

// ApplyIncoming applies one socket-delivered notification. Returns true
// when the item was accepted into the list.
//
// Discard guards, in order: recipient mismatch (cross-talk defense),
// duplicate id (socket delivery overlapping the bulk fetch).
func (s *Store) ApplyIncoming(n models.Notification) bool {
	s.mu.Lock()

	// A recipient is only grounds for discard when it is actually set;
	// broadcast frames omit it and are accepted.
	if n.Recipient != 0 && s.userID != 0 && n.Recipient != s.userID {
		s.mu.Unlock()
		metrics.StoreDiscards.WithLabelValues("recipient_mismatch").Inc()
		logging.Warn().
			Int64("notification_id", n.ID).
			Int64("recipient", n.Recipient).
			Msg("Discarding notification for another recipient")
		return false
	}

	for i := range s.items {
		if s.items[i].ID == n.ID {
			s.mu.Unlock()
			metrics.StoreDiscards.WithLabelValues("duplicate").Inc()
			logging.Debug().Int64("notification_id", n.ID).Msg("Discarding duplicate notification")
			return false
		}
	}

	s.items = append([]models.Notification{n}, s.items...)
	s.recomputeLocked()
	s.mu.Unlock()

	s.publishRevision("incoming")
	return true
}

// MarkRead optimistically flips one item's read flag, then confirms with
// the backend. On failure the flip is reverted when repair is enabled.
// Marking an id the store does not hold still issues the backend call;
// the backend may know notifications the client never received live.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	flipped := false
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].IsRead {
			s.items[i].IsRead = true
			flipped = true
			break
		}
	}
	if flipped {
		s.recomputeLocked()
	}
	s.mu.Unlock()
	if flipped {
		s.publishRevision("mark_read")
	}

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		if s.repairOnFailure && flipped {
			s.mu.Lock()
			for i := range s.items {
				if s.items[i].ID == id {
					s.items[i].IsRead = false
					break
				}
			}
			s.recomputeLocked()
			s.mu.Unlock()
			metrics.StoreRepairs.Inc()
			s.publishRevision("repair")
		}
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllRead optimistically flips every read flag, then confirms with a
// single backend call. On failure the previous flags are restored when
// repair is enabled.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	before := make(map[int64]bool, len(s.items))
	changed := false
	for i := range s.items {
		before[s.items[i].ID] = s.items[i].IsRead
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		s.recomputeLocked()
	}
	s.mu.Unlock()
	if changed {
		s.publishRevision("mark_all_read")
	}

	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		if s.repairOnFailure && changed {
			s.mu.Lock()
			for i := range s.items {
				if wasRead, ok := before[s.items[i].ID]; ok {
					s.items[i].IsRead = wasRead
				}
			}
			s.recomputeLocked()
			s.mu.Unlock()
			metrics.StoreRepairs.Inc()
			s.publishRevision("repair")
		}
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current list, newest first.
func (s *Store) Snapshot() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Unread returns the current unread count.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Size returns the number of held notifications.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// recomputeLocked rebuilds the unread count from the list and bumps the
// revision. Caller holds s.mu.
func (s *Store) recomputeLocked() {
	unread := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			unread++
		}
	}
	s.unread = unread
	s.revision++
	metrics.StoreSize.Set(float64(len(s.items)))
	metrics.StoreUnread.Set(float64(unread))
}

func (s *Store) publishRevision(cause string) {
	if s.bus == nil {
		return
	}
	s.mu.RLock()
	rev := events.StoreRevision{
		Revision: s.revision,
		Size:     len(s.items),
		Unread:   s.unread,
		Cause:    cause,
		At:       time.Now().UTC(),
	}
	s.mu.RUnlock()

	if err := s.bus.Publish(events.TopicStoreRevision, rev); err != nil {
		logging.Debug().Err(err).Msg("Failed to publish store revision event")
	}
}
