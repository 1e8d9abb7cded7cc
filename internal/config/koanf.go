// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stayspot/config.yaml",
	"/etc/stayspot/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8000",
			WebSocketURL:       "", // derived from BaseURL when empty
			SessionCookieName:  "sessionid",
			SessionCookieValue: "",
			CSRFCookieName:     "csrftoken",
			RequestTimeout:     15 * time.Second,
		},
		Notifications: NotificationsConfig{
			ReconnectMinDelay: time.Second,
			ReconnectMaxDelay: 32 * time.Second,
			PingInterval:      30 * time.Second,
			RepairOnFailure:   true,
		},
		Chat: ChatConfig{
			RetryAttempts:     3,
			SendRatePerSecond: 5,
			SendBurst:         10,
		},
		Session: SessionConfig{
			StorePath: "/data/stayspot/session",
			Secret:    "",
		},
		Gateway: GatewayConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              7456,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// STAYSPOT_BASE_URL -> backend.base_url etc. (see envTransformFunc)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env strings.
var sliceConfigPaths = []string{
	"gateway.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from the YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot pollute
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Backend mappings
		"stayspot_base_url":        "backend.base_url",
		"stayspot_ws_url":          "backend.websocket_url",
		"session_cookie_name":      "backend.session_cookie_name",
		"session_cookie_value":     "backend.session_cookie_value",
		"csrf_cookie_name":         "backend.csrf_cookie_name",
		"backend_request_timeout":  "backend.request_timeout",

		// Notification channel mappings
		"notify_reconnect_min":     "notifications.reconnect_min_delay",
		"notify_reconnect_max":     "notifications.reconnect_max_delay",
		"notify_ping_interval":     "notifications.ping_interval",
		"notify_repair_on_failure": "notifications.repair_on_failure",

		// Chat channel mappings
		"chat_retry_attempts":  "chat.retry_attempts",
		"chat_send_rate":       "chat.send_rate_per_second",
		"chat_send_burst":      "chat.send_burst",

		// Session store mappings
		"session_store_path": "session.store_path",
		"session_secret":     "session.secret",

		// Gateway mappings
		"gateway_enabled":      "gateway.enabled",
		"gateway_host":         "gateway.host",
		"gateway_port":         "gateway.port",
		"gateway_timeout":      "gateway.timeout",
		"cors_origins":         "gateway.cors_origins",
		"rate_limit_requests":  "gateway.rate_limit_reqs",
		"rate_limit_window":    "gateway.rate_limit_window",
		"disable_rate_limit":   "gateway.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
