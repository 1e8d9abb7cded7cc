// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package main is the entry point for stayspotd, the headless StaySpot
// realtime client daemon.
//
// The daemon maintains the session user's live connection to a StaySpot
// marketplace backend: the process-wide notification socket, the
// per-conversation chat socket, the in-memory notification store, and
// the conversation overview. A local companion HTTP API (the gateway)
// exposes that state to other processes on the machine.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     STAYSPOT_* environment variables)
//  2. Logging: zerolog (json or console)
//  3. Session store: BadgerDB-backed encrypted credential cache
//  4. Backend client: REST client wrapped in a circuit breaker
//  5. Event bus: in-process Watermill pub/sub
//  6. Channels, store, thread session, conversation list
//  7. Gateway HTTP server (if enabled)
//  8. Supervisor tree: session / realtime / gateway layers
//
// # Configuration
//
// Required:
//   - STAYSPOT_BASE_URL: backend REST base, e.g. http://localhost:8000
//
// The daemon is useful only once a session credential has been saved to
// the session store; without one it starts degraded and serves empty
// state until credentials appear.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful stop: sockets close with a
// close frame, the gateway drains in-flight requests, and the session
// store flushes before exit.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashika557/stayspot-realtime/internal/channel"
	"github.com/ashika557/stayspot-realtime/internal/chat"
	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/events"
	"github.com/ashika557/stayspot-realtime/internal/gateway"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/models"
	"github.com/ashika557/stayspot-realtime/internal/notify"
	"github.com/ashika557/stayspot-realtime/internal/session"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
	"github.com/ashika557/stayspot-realtime/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("backend", cfg.Backend.BaseURL).Msg("Starting stayspotd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store holds the encrypted credential cache across restarts.
	sessions, err := session.Open(cfg.Session.StorePath, cfg.Session.Secret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	profile, err := sessions.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNoProfile):
		logging.Warn().Msg("No saved session, starting degraded until credentials are saved")
		profile = &session.Profile{}
	case err != nil:
		logging.Fatal().Err(err).Msg("Failed to load session profile")
	default:
		logging.Info().Int64("user_id", profile.UserID).Str("role", profile.Role).Msg("Session profile loaded")
	}

	client, err := stayspot.NewClient(&cfg.Backend)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build backend client")
	}
	if profile.SessionCookie != "" {
		client.SetCredentials(profile.SessionCookie, profile.CSRFToken)
	}
	api := stayspot.NewBreakerClient(client)

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	notifChannel, err := channel.NewNotificationChannel(&cfg.Backend, &cfg.Notifications, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build notification channel")
	}
	if profile.SessionCookie != "" {
		notifChannel.SetCredentials(cfg.Backend.SessionCookieName, profile.SessionCookie)
	}

	chatChannel, err := channel.NewChatChannel(&cfg.Backend, &cfg.Chat)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build chat channel")
	}
	if profile.SessionCookie != "" {
		chatChannel.SetCredentials(cfg.Backend.SessionCookieName, profile.SessionCookie)
	}

	store := notify.NewStore(api, bus, &cfg.Notifications)
	store.SetUser(profile.UserID)
	notifChannel.OnNotification(func(n models.Notification) {
		store.ApplyIncoming(n)
	})

	conversations := chat.NewConversationList(api)
	thread := chat.NewThreadSession(api, chatChannel, bus, profile.UserID, profile.FullName)
	defer thread.Close()

	// Initial state is best-effort; the daemon serves what it has and
	// the channels fill in the rest.
	if profile.UserID != 0 {
		if err := store.LoadInitial(ctx); err != nil {
			logging.Warn().Err(err).Msg("Initial notification load failed")
		}
		if err := conversations.Refresh(ctx); err != nil {
			logging.Warn().Err(err).Msg("Initial conversation refresh failed")
		}
	}

	// Live chat messages patch the conversation previews in place.
	go patchPreviews(ctx, bus, conversations)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSessionService(supervisor.NewKeepaliveService(api, 5*time.Minute))
	tree.AddRealtimeService(supervisor.NewNotificationChannelService(notifChannel))

	if cfg.Gateway.Enabled {
		server := gateway.NewServer(&cfg.Gateway, store, conversations).NewHTTPServer()
		tree.AddGatewayService(supervisor.NewHTTPServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("Gateway server added")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("stayspotd stopped")
}

// patchPreviews applies live chat messages from the bus to the
// conversation list's last-message previews.
func patchPreviews(ctx context.Context, bus *events.Bus, conversations *chat.ConversationList) {
	msgs, err := bus.Subscribe(ctx, events.TopicChatMessage)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to subscribe to chat messages")
		return
	}
	for msg := range msgs {
		payload, err := events.Decode[events.ChatMessage](msg)
		if err != nil {
			logging.Debug().Err(err).Msg("Malformed chat message event")
			continue
		}
		conversations.PatchPreview(payload.ConversationID, payload.Message)
	}
}
