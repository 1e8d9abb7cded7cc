// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minReconnectDelay = 100 * time.Millisecond
	maxReconnectDelay = 10 * time.Minute
	minRequestTimeout = time.Second
	maxChatRetries    = 10
	minGatewayPort    = 1
	maxGatewayPort    = 65535
)

// Validate checks the configuration for internal consistency. Each section
// has its own validator; the first failure wins.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateBackend,
		c.validateNotifications,
		c.validateChat,
		c.validateGateway,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("STAYSPOT_BASE_URL must be set")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("STAYSPOT_BASE_URL must be a valid http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.WebSocketURL != "" {
		wu, err := url.Parse(c.Backend.WebSocketURL)
		if err != nil || (wu.Scheme != "ws" && wu.Scheme != "wss") || wu.Host == "" {
			return fmt.Errorf("STAYSPOT_WS_URL must be a valid ws(s) URL, got %q", c.Backend.WebSocketURL)
		}
	}
	if c.Backend.RequestTimeout < minRequestTimeout {
		return fmt.Errorf("BACKEND_REQUEST_TIMEOUT must be at least 1s")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.ReconnectMinDelay < minReconnectDelay {
		return fmt.Errorf("NOTIFY_RECONNECT_MIN must be at least 100ms")
	}
	if n.ReconnectMaxDelay > maxReconnectDelay {
		return fmt.Errorf("NOTIFY_RECONNECT_MAX must be at most 10m")
	}
	if n.ReconnectMaxDelay < n.ReconnectMinDelay {
		return fmt.Errorf("NOTIFY_RECONNECT_MAX must not be below NOTIFY_RECONNECT_MIN")
	}
	if n.PingInterval <= 0 {
		return fmt.Errorf("NOTIFY_PING_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.RetryAttempts < 0 || c.Chat.RetryAttempts > maxChatRetries {
		return fmt.Errorf("CHAT_RETRY_ATTEMPTS must be between 0 and %d", maxChatRetries)
	}
	if c.Chat.SendRatePerSecond <= 0 {
		return fmt.Errorf("CHAT_SEND_RATE must be positive")
	}
	if c.Chat.SendBurst < 1 {
		return fmt.Errorf("CHAT_SEND_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateGateway() error {
	if !c.Gateway.Enabled {
		return nil
	}
	if c.Gateway.Port < minGatewayPort || c.Gateway.Port > maxGatewayPort {
		return fmt.Errorf("GATEWAY_PORT must be between 1 and 65535")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if !c.Gateway.RateLimitDisabled {
		if c.Gateway.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Gateway.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}
