// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashika557/stayspot-realtime/internal/models"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
)

// ConversationList is the in-memory conversation overview. Ordering
// always trusts the server's updated_at; live traffic only patches the
// last_message preview in place and never reorders locally.
type ConversationList struct {
	api stayspot.API

	mu            sync.RWMutex
	conversations []models.Conversation
}

// NewConversationList builds an empty list bound to the backend client.
func NewConversationList(api stayspot.API) *ConversationList {
	return &ConversationList{api: api}
}

// Refresh replaces the list wholesale from the backend.
func (l *ConversationList) Refresh(ctx context.Context) error {
	conversations, err := l.api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("refresh conversations: %w", err)
	}

	l.mu.Lock()
	l.conversations = conversations
	l.mu.Unlock()
	return nil
}

// PatchPreview updates the last_message preview of one conversation from
// a live message. A conversation the list does not hold is ignored; the
// next Refresh will bring it in with server ordering.
func (l *ConversationList) PatchPreview(conversationID int64, msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.conversations {
		if l.conversations[i].ID == conversationID {
			preview := msg
			l.conversations[i].LastMessage = &preview
			return
		}
	}
}

// MarkPreviewRead flips the preview's read flag, used when the thread
// for that conversation is opened.
func (l *ConversationList) MarkPreviewRead(conversationID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.conversations {
		if l.conversations[i].ID == conversationID && l.conversations[i].LastMessage != nil {
			l.conversations[i].LastMessage.IsRead = true
			return
		}
	}
}

// Snapshot returns a copy of the list in server order.
func (l *ConversationList) Snapshot() []models.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Conversation, len(l.conversations))
	copy(out, l.conversations)
	return out
}

// Get returns one conversation by id.
func (l *ConversationList) Get(conversationID int64) (models.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := range l.conversations {
		if l.conversations[i].ID == conversationID {
			return l.conversations[i], true
		}
	}
	return models.Conversation{}, false
}
