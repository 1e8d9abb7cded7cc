// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package channel owns the live WebSocket connections to the StaySpot
// backend: one process-wide notification stream and one socket per open
// chat conversation. Both authenticate by replaying the session cookie
// on the upgrade request.
package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashika557/stayspot-realtime/internal/config"
)

// dialTimeout bounds the WebSocket handshake.
const dialTimeout = 10 * time.Second

// socketBase derives the ws(s) base URL from backend configuration.
// An explicit websocket_url wins; otherwise the REST base is converted
// (http -> ws, https -> wss).
func socketBase(cfg *config.BackendConfig) (string, error) {
	raw := cfg.WebSocketURL
	if raw == "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
		scheme := "ws"
		if parsed.Scheme == "https" {
			scheme = "wss"
		}
		return fmt.Sprintf("%s://%s", scheme, parsed.Host), nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("websocket url %q: scheme must be ws or wss", raw)
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), nil
}

// credentials is the cookie material replayed on every upgrade request.
type credentials struct {
	cookieName  string
	cookieValue string
}

func (c credentials) header() http.Header {
	h := http.Header{}
	if c.cookieName != "" && c.cookieValue != "" {
		h.Set("Cookie", fmt.Sprintf("%s=%s", c.cookieName, c.cookieValue))
	}
	return h
}

// dial opens one WebSocket to wsURL with the session cookie attached.
func dial(ctx context.Context, wsURL string, creds credentials) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  dialTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, creds.header())
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}
