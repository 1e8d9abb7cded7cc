// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "sessionid", cfg.Backend.SessionCookieName)
	assert.Equal(t, 15*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Notifications.ReconnectMinDelay)
	assert.Equal(t, 32*time.Second, cfg.Notifications.ReconnectMaxDelay)
	assert.True(t, cfg.Notifications.RepairOnFailure)
	assert.Equal(t, 3, cfg.Chat.RetryAttempts)
	assert.True(t, cfg.Gateway.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAYSPOT_BASE_URL", "https://stayspot.example.com")
	t.Setenv("NOTIFY_REPAIR_ON_FAILURE", "false")
	t.Setenv("GATEWAY_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://stayspot.example.com", cfg.Backend.BaseURL)
	assert.False(t, cfg.Notifications.RepairOnFailure)
	assert.Equal(t, 9100, cfg.Gateway.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
backend:
  base_url: http://backend.local:8000
gateway:
  cors_origins:
    - http://localhost:5173
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local:8000", cfg.Backend.BaseURL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Gateway.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_CORSFromEnvCommaSeparated(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Gateway.CORSOrigins)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"bad base url scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }},
		{"bad ws url", func(c *Config) { c.Backend.WebSocketURL = "http://not-ws" }},
		{"tiny request timeout", func(c *Config) { c.Backend.RequestTimeout = time.Millisecond }},
		{"reconnect min too small", func(c *Config) { c.Notifications.ReconnectMinDelay = time.Millisecond }},
		{"reconnect max below min", func(c *Config) {
			c.Notifications.ReconnectMinDelay = 10 * time.Second
			c.Notifications.ReconnectMaxDelay = time.Second
		}},
		{"negative chat retries", func(c *Config) { c.Chat.RetryAttempts = -1 }},
		{"zero send rate", func(c *Config) { c.Chat.SendRatePerSecond = 0 }},
		{"gateway port out of range", func(c *Config) { c.Gateway.Port = 70000 }},
		{"rate limit zero requests", func(c *Config) { c.Gateway.RateLimitReqs = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_GatewayDisabledSkipsGatewayChecks(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gateway.Enabled = false
	cfg.Gateway.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestCredentialEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("unit-test-secret")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("session-cookie-value")
	require.NoError(t, err)
	assert.NotEqual(t, "session-cookie-value", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "session-cookie-value", plaintext)
}

func TestCredentialEncryptor_NonceUniqueness(t *testing.T) {
	enc, err := NewCredentialEncryptor("unit-test-secret")
	require.NoError(t, err)

	a, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	b, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random nonce must make ciphertexts differ")
}

func TestCredentialEncryptor_Errors(t *testing.T) {
	_, err := NewCredentialEncryptor("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	enc, err := NewCredentialEncryptor("s")
	require.NoError(t, err)

	_, err = enc.Encrypt("")
	assert.ErrorIs(t, err, ErrEmptyPlaintext)

	_, err = enc.Decrypt("")
	assert.ErrorIs(t, err, ErrEmptyCiphertext)

	_, err = enc.Decrypt("!!!not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = enc.Decrypt("c2hvcnQ=") // valid base64, too short
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	// Tampered ciphertext fails authentication.
	good, err := enc.Encrypt("credential")
	require.NoError(t, err)
	raw := []byte(good)
	raw[len(raw)-5] ^= 'x'
	_, err = enc.Decrypt(string(raw))
	assert.Error(t, err)
}
