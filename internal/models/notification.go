// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package models

import (
	"strings"
	"time"
)

// Notification Type Vocabulary
// The backend draws notification_type from a fixed set; anything outside it
// is treated as generic. Routing matches type FAMILIES by prefix (booking*,
// visit*) rather than exact values, so new members of a family route without
// client changes.
const (
	NotificationTypeMessage          = "message"
	NotificationTypeBookingRequest   = "booking_request"
	NotificationTypeBookingAccepted  = "booking_accepted"
	NotificationTypeBookingRejected  = "booking_rejected"
	NotificationTypeBookingConfirmed = "booking_confirmed"
	NotificationTypeBookingCancelled = "booking_cancelled"
	NotificationTypeVisitRequested   = "visit_requested"
	NotificationTypeVisitApproved    = "visit_approved"
	NotificationTypeVisitRejected    = "visit_rejected"
	NotificationTypeVisitCancelled   = "visit_cancelled"
	NotificationTypeRentReminder     = "rent_reminder"
)

// Notification is a single notification as delivered by both the bulk REST
// endpoint (GET /notifications/) and the notification WebSocket stream.
// The id is server-assigned and is the deduplication key; recipient is the
// user id the notification targets and must match the current session's
// user (cross-talk defense).
type Notification struct {
	ID               int64     `json:"id"`
	Recipient        int64     `json:"recipient"`
	Actor            int64     `json:"actor,omitempty"`
	ActorName        string    `json:"actor_name,omitempty"`
	NotificationType string    `json:"notification_type"`
	Text             string    `json:"text"`
	RelatedID        int64     `json:"related_id,omitempty"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsBookingFamily reports whether the notification belongs to the booking
// type family (booking_request, booking_accepted, future booking_* types).
func (n *Notification) IsBookingFamily() bool {
	return strings.HasPrefix(n.NotificationType, "booking")
}

// IsVisitFamily reports whether the notification belongs to the visit
// type family.
func (n *Notification) IsVisitFamily() bool {
	return strings.HasPrefix(n.NotificationType, "visit")
}
