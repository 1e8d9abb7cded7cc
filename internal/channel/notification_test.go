// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTestServer wraps an httptest server that upgrades every request and
// hands the connection to the per-connection handler.
type wsTestServer struct {
	srv      *httptest.Server
	upgrades atomic.Int64
	lastReq  atomic.Pointer[http.Request]
}

func newWSTestServer(t *testing.T, handle func(conn *websocket.Conn)) *wsTestServer {
	t.Helper()

	ws := &wsTestServer{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.lastReq.Store(r.Clone(context.Background()))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		ws.upgrades.Add(1)
		handle(conn)
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

// wsURL converts the test server's http URL to a ws URL.
func (ws *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func notificationTestConfig(wsBase string) (*config.BackendConfig, *config.NotificationsConfig) {
	backend := &config.BackendConfig{
		BaseURL:            "http://localhost:8000",
		WebSocketURL:       wsBase,
		SessionCookieName:  "sessionid",
		SessionCookieValue: "test-session",
	}
	notify := &config.NotificationsConfig{
		ReconnectMinDelay: 20 * time.Millisecond,
		ReconnectMaxDelay: 100 * time.Millisecond,
		PingInterval:      time.Second,
	}
	return backend, notify
}

func TestNotificationChannelReceivesFrames(t *testing.T) {
	frames := make(chan string, 1)
	ws := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		select {
		case payload := <-frames:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
		case <-time.After(2 * time.Second):
		}
		// Hold the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)

	received := make(chan models.Notification, 1)
	ch.OnNotification(func(n models.Notification) { received <- n })

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	frames <- `{"id": 5, "recipient": 7, "notification_type": "booking_request", "text": "New booking request", "is_read": false, "created_at": "2026-08-30T10:00:00Z"}`

	select {
	case n := <-received:
		assert.Equal(t, int64(5), n.ID)
		assert.Equal(t, int64(7), n.Recipient)
		assert.True(t, n.IsBookingFamily())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestNotificationChannelConnectIdempotent(t *testing.T) {
	ws := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)
	defer ch.Disconnect()

	ctx := context.Background()
	require.NoError(t, ch.Connect(ctx))
	require.NoError(t, ch.Connect(ctx))
	require.NoError(t, ch.Connect(ctx))

	assert.True(t, ch.IsConnected())
	assert.Equal(t, int64(1), ws.upgrades.Load(), "repeat Connect must not dial again")
}

func TestNotificationChannelReplaysSessionCookie(t *testing.T) {
	ws := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)
	defer ch.Disconnect()

	require.NoError(t, ch.Connect(context.Background()))

	req := ws.lastReq.Load()
	require.NotNil(t, req)
	cookie, err := req.Cookie("sessionid")
	require.NoError(t, err)
	assert.Equal(t, "test-session", cookie.Value)
}

func TestNotificationChannelDiscardsMalformedFrames(t *testing.T) {
	var connOnce sync.Once
	ready := make(chan *websocket.Conn, 1)
	ws := newWSTestServer(t, func(conn *websocket.Conn) {
		connOnce.Do(func() { ready <- conn })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)
	defer ch.Disconnect()

	received := make(chan models.Notification, 4)
	ch.OnNotification(func(n models.Notification) { received <- n })

	require.NoError(t, ch.Connect(context.Background()))

	conn := <-ready
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"unexpected": true}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id": 9, "recipient": 7, "notification_type": "message", "text": "ok", "created_at": "2026-08-30T10:00:00Z"}`)))

	select {
	case n := <-received:
		assert.Equal(t, int64(9), n.ID, "only the well-formed frame may reach the callback")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for valid notification")
	}

	select {
	case n := <-received:
		t.Fatalf("unexpected extra notification delivered: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationChannelReconnectsAfterDrop(t *testing.T) {
	// First connection is killed immediately; later ones stay up and the
	// second one delivers a frame.
	ws := &wsTestServer{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := ws.upgrades.Add(1)
		if n == 1 {
			_ = conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id": 77, "recipient": 7, "notification_type": "message", "text": "after reconnect", "created_at": "2026-08-30T10:00:00Z"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ws.srv.Close)

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)
	defer ch.Disconnect()

	received := make(chan models.Notification, 1)
	ch.OnNotification(func(n models.Notification) { received <- n })

	require.NoError(t, ch.Connect(context.Background()))

	select {
	case n := <-received:
		assert.Equal(t, int64(77), n.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not reconnect after drop")
	}
	assert.GreaterOrEqual(t, ws.upgrades.Load(), int64(2))
}

func TestNotificationChannelDisconnectStopsReconnect(t *testing.T) {
	ws := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	backend, notifyCfg := notificationTestConfig(ws.wsURL())
	ch, err := NewNotificationChannel(backend, notifyCfg, nil)
	require.NoError(t, err)

	require.NoError(t, ch.Connect(context.Background()))
	ch.Disconnect()
	assert.False(t, ch.IsConnected())

	dialsAfterStop := ws.upgrades.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, dialsAfterStop, ws.upgrades.Load(), "no redial after Disconnect")
}

func TestSocketBaseDerivation(t *testing.T) {
	tests := []struct {
		name    string
		backend config.BackendConfig
		want    string
		wantErr bool
	}{
		{
			name:    "derived from http base",
			backend: config.BackendConfig{BaseURL: "http://stayspot.local:8000"},
			want:    "ws://stayspot.local:8000",
		},
		{
			name:    "derived from https base",
			backend: config.BackendConfig{BaseURL: "https://stayspot.example.com"},
			want:    "wss://stayspot.example.com",
		},
		{
			name:    "explicit websocket url wins",
			backend: config.BackendConfig{BaseURL: "http://a", WebSocketURL: "wss://sockets.example.com"},
			want:    "wss://sockets.example.com",
		},
		{
			name:    "non-ws scheme rejected",
			backend: config.BackendConfig{WebSocketURL: "http://nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := socketBase(&tt.backend)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
