// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashika557/stayspot-realtime/internal/chat"
	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/models"
	"github.com/ashika557/stayspot-realtime/internal/notify"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
)

// stubAPI backs the store and conversation list under test.
type stubAPI struct {
	mu sync.Mutex

	notifications []models.Notification
	conversations []models.Conversation

	failMarkRead bool
	markReadIDs  []int64
	markAllCalls int
}

var _ stayspot.API = (*stubAPI)(nil)

func (a *stubAPI) Ping(ctx context.Context) error { return nil }

func (a *stubAPI) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return a.notifications, nil
}

func (a *stubAPI) MarkNotificationRead(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failMarkRead {
		return errors.New("backend unavailable")
	}
	a.markReadIDs = append(a.markReadIDs, id)
	return nil
}

func (a *stubAPI) MarkAllNotificationsRead(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markAllCalls++
	return nil
}

func (a *stubAPI) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return a.conversations, nil
}

func (a *stubAPI) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	return nil, errors.New("not supported")
}

func (a *stubAPI) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	return nil, nil
}

func (a *stubAPI) MarkConversationRead(ctx context.Context, conversationID int64) error {
	return nil
}

func (a *stubAPI) SendMedia(ctx context.Context, upload stayspot.MediaUpload) (*models.Message, error) {
	return nil, errors.New("not supported")
}

func newTestGateway(t *testing.T, api *stubAPI, cfg *config.GatewayConfig) (*httptest.Server, *notify.Store) {
	t.Helper()

	if cfg == nil {
		cfg = &config.GatewayConfig{RateLimitDisabled: true}
	}

	store := notify.NewStore(api, nil, &config.NotificationsConfig{RepairOnFailure: true})
	store.SetUser(7)
	require.NoError(t, store.LoadInitial(context.Background()))

	conversations := chat.NewConversationList(api)
	require.NoError(t, conversations.Refresh(context.Background()))

	srv := httptest.NewServer(NewServer(cfg, store, conversations).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func decodeResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	defer resp.Body.Close()
	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestGatewayHealth(t *testing.T) {
	srv, _ := newTestGateway(t, &stubAPI{}, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeResponse(t, resp).Status)
}

func TestGatewayMetricsExposed(t *testing.T) {
	srv, _ := newTestGateway(t, &stubAPI{}, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatewayListNotifications(t *testing.T) {
	api := &stubAPI{notifications: []models.Notification{
		{ID: 1, Recipient: 7, NotificationType: "message", Text: "hello"},
		{ID: 2, Recipient: 7, NotificationType: "booking_request", IsRead: true},
	}}
	srv, _ := newTestGateway(t, api, nil)

	resp, err := http.Get(srv.URL + "/api/notifications")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	require.Equal(t, "ok", body.Status)
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["unread"])
	assert.Len(t, data["notifications"], 2)
}

func TestGatewayMarkNotificationRead(t *testing.T) {
	api := &stubAPI{notifications: []models.Notification{{ID: 5, Recipient: 7}}}
	srv, store := newTestGateway(t, api, nil)

	resp, err := http.Post(srv.URL+"/api/notifications/5/read", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 0, store.Unread())
	assert.Equal(t, []int64{5}, api.markReadIDs)
}

func TestGatewayMarkNotificationReadInvalidID(t *testing.T) {
	srv, _ := newTestGateway(t, &stubAPI{}, nil)

	resp, err := http.Post(srv.URL+"/api/notifications/abc/read", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", decodeResponse(t, resp).Status)
}

func TestGatewayMarkNotificationReadBackendFailure(t *testing.T) {
	api := &stubAPI{
		notifications: []models.Notification{{ID: 5, Recipient: 7}},
		failMarkRead:  true,
	}
	srv, store := newTestGateway(t, api, nil)

	resp, err := http.Post(srv.URL+"/api/notifications/5/read", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	// Repair-on-failure reverted the optimistic flip.
	assert.Equal(t, 1, store.Unread())
}

func TestGatewayMarkAllRead(t *testing.T) {
	api := &stubAPI{notifications: []models.Notification{
		{ID: 1, Recipient: 7},
		{ID: 2, Recipient: 7},
	}}
	srv, store := newTestGateway(t, api, nil)

	resp, err := http.Post(srv.URL+"/api/notifications/read_all", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 0, store.Unread())
	assert.Equal(t, 1, api.markAllCalls)
}

func TestGatewayListConversations(t *testing.T) {
	api := &stubAPI{conversations: []models.Conversation{
		{ID: 3, Owner: 1, Tenant: 7},
	}}
	srv, _ := newTestGateway(t, api, nil)

	resp, err := http.Get(srv.URL + "/api/conversations")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	require.Equal(t, "ok", body.Status)
	assert.Len(t, body.Data, 1)
}

func TestGatewayRateLimitEnforced(t *testing.T) {
	cfg := &config.GatewayConfig{
		RateLimitReqs:   2,
		RateLimitWindow: time.Minute,
	}
	srv, _ := newTestGateway(t, &stubAPI{}, cfg)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/api/notifications")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/notifications")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Health stays outside the rate-limited group.
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
