// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
)

// NotificationConnector matches *channel.NotificationChannel. The
// interface keeps this package free of a channel import so service
// wiring stays one-directional.
type NotificationConnector interface {
	Connect(ctx context.Context) error
	Disconnect()
}

// NotificationChannelService runs the process-wide notification socket
// as a supervised service. The channel reconnects on its own; the
// service only owns connect-on-start and disconnect-on-stop, so a
// supervisor restart after a crash re-establishes the subscription.
type NotificationChannelService struct {
	channel NotificationConnector
}

func NewNotificationChannelService(ch NotificationConnector) *NotificationChannelService {
	return &NotificationChannelService{channel: ch}
}

// Serve implements suture.Service.
func (s *NotificationChannelService) Serve(ctx context.Context) error {
	if err := s.channel.Connect(ctx); err != nil {
		return fmt.Errorf("notification channel connect: %w", err)
	}
	<-ctx.Done()
	s.channel.Disconnect()
	return ctx.Err()
}

func (s *NotificationChannelService) String() string {
	return "notification-channel"
}

// Pinger matches the backend client's health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeepaliveService pings the backend on an interval so an expired
// session surfaces as a log line (and an auth error on the breaker)
// instead of silently dead sockets.
type KeepaliveService struct {
	api      Pinger
	interval time.Duration
}

func NewKeepaliveService(api Pinger, interval time.Duration) *KeepaliveService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &KeepaliveService{api: api, interval: interval}
}

// Serve implements suture.Service.
func (s *KeepaliveService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.api.Ping(ctx); err != nil {
				var apiErr *stayspot.APIError
				if errors.As(err, &apiErr) && apiErr.IsAuthError() {
					logging.Warn().Err(err).Msg("Session keepalive rejected, credentials expired")
				} else {
					logging.Debug().Err(err).Msg("Session keepalive failed")
				}
			}
		}
	}
}

func (s *KeepaliveService) String() string {
	return "session-keepalive"
}

// HTTPServer matches *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the gateway's http.Server under supervision
// with graceful shutdown on context cancel.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. ListenAndServe blocks, so it runs in
// a goroutine; http.ErrServerClosed is the expected shutdown result and
// maps to nil.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The serve context is canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPServerService) String() string {
	return "gateway-server"
}
