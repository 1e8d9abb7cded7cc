// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package notify

import "github.com/ashika557/stayspot-realtime/internal/models"

// Destination is where a notification click should land.
type Destination string

const (
	DestinationNone           Destination = ""
	DestinationChat           Destination = "chat"
	DestinationOwnerBookings  Destination = "owner_bookings"
	DestinationTenantBookings Destination = "tenant_bookings"
	DestinationOwnerVisits    Destination = "owner_visits"
	DestinationTenantVisits   Destination = "tenant_visits"
	DestinationTenantPayments Destination = "tenant_payments"
)

// Route maps a notification to its navigation target for the given user
// role. Matching is by type FAMILY (prefix), so new booking_* or visit_*
// types route correctly without a client change. Admins share the
// owner-side views; only an explicit Tenant role gets the tenant views.
func Route(n *models.Notification, role string) Destination {
	switch {
	case n.NotificationType == models.NotificationTypeMessage:
		return DestinationChat

	case n.IsBookingFamily():
		if role == models.RoleTenant {
			return DestinationTenantBookings
		}
		return DestinationOwnerBookings

	case n.IsVisitFamily():
		if role == models.RoleTenant {
			return DestinationTenantVisits
		}
		return DestinationOwnerVisits

	case n.NotificationType == models.NotificationTypeRentReminder:
		return DestinationTenantPayments

	default:
		return DestinationNone
	}
}
