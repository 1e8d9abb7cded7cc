// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package models

import "time"

// wireTimeLayouts covers the timestamp shapes the backend emits: RFC 3339
// with and without sub-second precision, and the zone-naive ISO form.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseWireTime parses a backend timestamp, returning the zero time when no
// layout matches. Timestamps are used only for display ordering, so a parse
// miss is not an error.
func parseWireTime(s string) time.Time {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
