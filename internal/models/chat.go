// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package models

import "time"

// User is the public profile shape embedded in conversations.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

// Roles as reported by the backend. Routing decisions (which bookings or
// visits view a notification click lands on) branch on Tenant vs everything
// else; admins share the owner-side views.
const (
	RoleTenant = "Tenant"
	RoleOwner  = "Owner"
)

// Conversation is one chat between an owner and a tenant.
// last_message is a denormalized preview for list display; updated_at is
// server-provided and is the list ordering key (never recomputed locally).
type Conversation struct {
	ID          int64     `json:"id"`
	Owner       int64     `json:"owner"`
	Tenant      int64     `json:"tenant"`
	OtherUser   User      `json:"other_user"`
	LastMessage *Message  `json:"last_message"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one chat message as returned by the history endpoint.
// Image and File are mutually exclusive media references; both empty for
// plain text.
type Message struct {
	ID           int64     `json:"id"`
	Conversation int64     `json:"conversation,omitempty"`
	Sender       int64     `json:"sender"`
	SenderName   string    `json:"sender_name,omitempty"`
	Text         string    `json:"text"`
	Image        string    `json:"image,omitempty"`
	File         string    `json:"file,omitempty"`
	IsRead       bool      `json:"is_read"`
	Timestamp    time.Time `json:"timestamp"`
}

// MediaKind reports "image", "file", or "" for a plain text message.
func (m *Message) MediaKind() string {
	switch {
	case m.Image != "":
		return "image"
	case m.File != "":
		return "file"
	default:
		return ""
	}
}
