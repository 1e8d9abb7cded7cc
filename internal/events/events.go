// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package events carries the in-process event bus that decouples the
// socket channels from the notification store, the chat sessions, and
// the companion gateway. Payloads are JSON-encoded watermill messages
// published over an in-memory gochannel pub/sub.
package events

import (
	"time"

	"github.com/ashika557/stayspot-realtime/internal/models"
)

// Topic names. Subscribers pick the topics they care about; publishing
// to a topic with no subscribers is a no-op.
const (
	// TopicNotificationIncoming carries raw notifications as they arrive
	// on the notification socket, before the store's guards run.
	TopicNotificationIncoming = "notifications.incoming"

	// TopicStoreRevision carries a snapshot summary after every store
	// mutation (load, accept, mark read, mark all read, repair).
	TopicStoreRevision = "notifications.store"

	// TopicChatMessage carries chat frames accepted by a live thread
	// session.
	TopicChatMessage = "chat.messages"

	// TopicChannelState carries socket channel lifecycle transitions.
	TopicChannelState = "channel.state"
)

// ChannelState is a socket lifecycle phase as seen by subscribers.
type ChannelState string

const (
	ChannelStateConnecting   ChannelState = "connecting"
	ChannelStateConnected    ChannelState = "connected"
	ChannelStateReconnecting ChannelState = "reconnecting"
	ChannelStateDisconnected ChannelState = "disconnected"
)

// NotificationIncoming is the payload for TopicNotificationIncoming.
type NotificationIncoming struct {
	Notification models.Notification `json:"notification"`
	ReceivedAt   time.Time           `json:"received_at"`
}

// StoreRevision is the payload for TopicStoreRevision. Revision is a
// monotonically increasing counter so late subscribers can detect
// missed updates.
type StoreRevision struct {
	Revision int64     `json:"revision"`
	Size     int       `json:"size"`
	Unread   int       `json:"unread"`
	Cause    string    `json:"cause"` // "load", "incoming", "mark_read", "mark_all_read", "repair"
	At       time.Time `json:"at"`
}

// ChatMessage is the payload for TopicChatMessage.
type ChatMessage struct {
	ConversationID int64          `json:"conversation_id"`
	Message        models.Message `json:"message"`
}

// ChannelTransition is the payload for TopicChannelState.
type ChannelTransition struct {
	Channel string       `json:"channel"` // "notification", "chat"
	State   ChannelState `json:"state"`
	Attempt int          `json:"attempt,omitempty"`
	At      time.Time    `json:"at"`
}
