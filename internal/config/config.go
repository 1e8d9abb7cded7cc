// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package config provides layered configuration for the daemon:
// struct defaults, an optional YAML file, and environment overrides,
// with precedence ENV > file > defaults.
package config

import "time"

// Config is the root configuration for stayspot-realtime.
type Config struct {
	Backend       BackendConfig       `koanf:"backend"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Chat          ChatConfig          `koanf:"chat"`
	Session       SessionConfig       `koanf:"session"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// BackendConfig points at the StaySpot backend.
type BackendConfig struct {
	// BaseURL is the REST base, e.g. "http://localhost:8000".
	BaseURL string `koanf:"base_url"`

	// WebSocketURL overrides the socket base. When empty it is derived
	// from BaseURL (http -> ws, https -> wss).
	WebSocketURL string `koanf:"websocket_url"`

	// SessionCookieName / SessionCookieValue replay the backend session.
	// The value is the secret obtained from the login flow.
	SessionCookieName  string `koanf:"session_cookie_name"`
	SessionCookieValue string `koanf:"session_cookie_value"`

	// CSRFCookieName is the cookie whose value is echoed in the
	// X-CSRFToken header on mutating requests.
	CSRFCookieName string `koanf:"csrf_cookie_name"`

	// RequestTimeout bounds every REST call. A hung backend request must
	// never hold a caller indefinitely.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// NotificationsConfig tunes the long-lived notification channel and store.
type NotificationsConfig struct {
	// ReconnectMinDelay / ReconnectMaxDelay bound the exponential backoff
	// applied when the notification socket drops unexpectedly.
	ReconnectMinDelay time.Duration `koanf:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `koanf:"reconnect_max_delay"`

	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration `koanf:"ping_interval"`

	// RepairOnFailure reverts optimistic read-flag flips when the backend
	// confirmation fails. Set false for the legacy fire-and-forget
	// behavior that leaves local and server state diverged.
	RepairOnFailure bool `koanf:"repair_on_failure"`
}

// ChatConfig tunes per-conversation chat channels.
type ChatConfig struct {
	// RetryAttempts bounds reconnection of a dropped chat socket while its
	// conversation is still selected. Zero disables retry entirely.
	RetryAttempts int `koanf:"retry_attempts"`

	// SendRatePerSecond / SendBurst shape outbound socket sends.
	SendRatePerSecond float64 `koanf:"send_rate_per_second"`
	SendBurst         int     `koanf:"send_burst"`
}

// SessionConfig controls the persisted profile store.
type SessionConfig struct {
	// StorePath is the badger directory holding the cached profile.
	StorePath string `koanf:"store_path"`

	// Secret derives the AES key protecting the stored session credential.
	Secret string `koanf:"secret"`
}

// GatewayConfig controls the local companion HTTP API.
type GatewayConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`

	Timeout time.Duration `koanf:"timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
