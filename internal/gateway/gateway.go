// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package gateway exposes the daemon's local companion HTTP API: health,
// Prometheus metrics, and read/mark-read access to the in-memory
// notification store and conversation list.
package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashika557/stayspot-realtime/internal/chat"
	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/notify"
)

// apiResponse is the envelope for every gateway JSON response.
type apiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// notificationsPayload is the GET /api/notifications response body.
type notificationsPayload struct {
	Notifications interface{} `json:"notifications"`
	Unread        int         `json:"unread"`
}

// Server serves the local gateway endpoints. Reads come straight from
// the in-memory state; mark-read endpoints drive the store's optimistic
// operations, so a backend failure repairs the same way it does for
// in-process callers.
type Server struct {
	cfg           *config.GatewayConfig
	store         *notify.Store
	conversations *chat.ConversationList
}

// NewServer binds the gateway to the notification store and the
// conversation list.
func NewServer(cfg *config.GatewayConfig, store *notify.Store, conversations *chat.ConversationList) *Server {
	return &Server{
		cfg:           cfg,
		store:         store,
		conversations: conversations,
	}
}

// Router assembles the chi handler with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))
	r.Use(requestMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit())
		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)
		r.Post("/notifications/read_all", s.handleMarkAllNotificationsRead)
		r.Get("/conversations", s.handleListConversations)
	})

	return r
}

// NewHTTPServer wraps the router in an http.Server bound to the
// configured host and port.
func (s *Server) NewHTTPServer() *http.Server {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}
}

// rateLimit is per-client-IP; health and metrics stay outside it so
// scrapers are never throttled.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	reqs := s.cfg.RateLimitReqs
	if reqs <= 0 {
		reqs = 100
	}
	window := s.cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(reqs, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// requestMetrics records per-route request counts and latencies using
// the chi route pattern, so path parameters do not explode cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordGatewayRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok"})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &apiResponse{
		Status: "ok",
		Data: notificationsPayload{
			Notifications: s.store.Snapshot(),
			Unread:        s.store.Unread(),
		},
	})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.store.MarkRead(r.Context(), id); err != nil {
		logging.Warn().Err(err).Int64("notification_id", id).Msg("Gateway mark-read failed")
		respondError(w, http.StatusBadGateway, "backend rejected mark-read")
		return
	}
	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok"})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkAllRead(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("Gateway mark-all-read failed")
		respondError(w, http.StatusBadGateway, "backend rejected mark-all-read")
		return
	}
	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &apiResponse{
		Status: "ok",
		Data:   s.conversations.Snapshot(),
	})
}

func respondJSON(w http.ResponseWriter, status int, response *apiResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal gateway response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write gateway response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &apiResponse{Status: "error", Error: message})
}
