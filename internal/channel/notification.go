// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package channel

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/events"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/models"
)

const notificationChannelName = "notification"

// NotificationChannel holds the single process-wide socket to
// /ws/notifications/.
//
// Key behavior:
//   - Connect is idempotent: a second call while a socket is open or a
//     reconnect is in flight is a no-op.
//   - Unexpected close triggers reconnection with exponential backoff
//     plus jitter, unbounded attempts, until Disconnect.
//   - Disconnect clears the reconnect flag before touching the socket so
//     the read loop cannot resurrect the connection.
//   - Malformed frames are logged and discarded; the callback only ever
//     sees well-formed notifications.
//
// Thread Safety: all methods are safe for concurrent use.
type NotificationChannel struct {
	wsURL string
	creds credentials

	minDelay     time.Duration
	maxDelay     time.Duration
	pingInterval time.Duration

	conn     *websocket.Conn
	connMu   sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	shouldReconnect atomic.Bool

	callbackMu     sync.RWMutex
	onNotification func(models.Notification)

	bus *events.Bus
}

// NewNotificationChannel builds the channel from backend and
// notification configuration. The returned channel is not yet connected;
// call Connect.
func NewNotificationChannel(backend *config.BackendConfig, cfg *config.NotificationsConfig, bus *events.Bus) (*NotificationChannel, error) {
	base, err := socketBase(backend)
	if err != nil {
		return nil, fmt.Errorf("notification channel: %w", err)
	}

	return &NotificationChannel{
		wsURL: base + "/ws/notifications/",
		creds: credentials{
			cookieName:  backend.SessionCookieName,
			cookieValue: backend.SessionCookieValue,
		},
		minDelay:     cfg.ReconnectMinDelay,
		maxDelay:     cfg.ReconnectMaxDelay,
		pingInterval: cfg.PingInterval,
		stopChan:     make(chan struct{}),
		bus:          bus,
	}, nil
}

// SetCredentials replaces the session cookie replayed on upgrade
// requests. Takes effect on the next (re)connect.
func (c *NotificationChannel) SetCredentials(cookieName, cookieValue string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.creds = credentials{cookieName: cookieName, cookieValue: cookieValue}
}

// OnNotification registers the single inbound callback. Registering
// replaces any previous callback.
func (c *NotificationChannel) OnNotification(fn func(models.Notification)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onNotification = fn
}

// Connect establishes the socket and starts the read and keepalive
// loops. Calling Connect while connected or reconnecting is a no-op.
func (c *NotificationChannel) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.conn != nil || c.started {
		c.connMu.Unlock()
		return nil
	}
	c.shouldReconnect.Store(true)
	c.publishState(events.ChannelStateConnecting, 0)
	creds := c.creds
	c.connMu.Unlock()

	conn, err := dial(ctx, c.wsURL, creds)
	if err != nil {
		metrics.ChannelConnects.WithLabelValues(notificationChannelName, "failure").Inc()
		return fmt.Errorf("notification channel connect: %w", err)
	}
	metrics.ChannelConnects.WithLabelValues(notificationChannelName, "success").Inc()

	c.connMu.Lock()
	c.conn = conn
	c.started = true
	c.connMu.Unlock()

	metrics.ChannelConnected.WithLabelValues(notificationChannelName).Set(1)
	c.publishState(events.ChannelStateConnected, 0)
	logging.Info().Str("url", c.wsURL).Msg("Notification socket connected")

	c.wg.Add(1)
	go c.listen(ctx)

	c.wg.Add(1)
	go c.pingLoop(ctx)

	return nil
}

// listen reads frames until the channel stops, redialing on unexpected
// close while the reconnect flag holds.
func (c *NotificationChannel) listen(ctx context.Context) {
	defer c.wg.Done()

	delay := c.minDelay
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			if !c.shouldReconnect.Load() {
				return
			}

			attempt++
			metrics.ChannelReconnects.WithLabelValues(notificationChannelName).Inc()
			c.publishState(events.ChannelStateReconnecting, attempt)

			wait := delay + jitter(delay)
			logging.Info().Dur("delay", wait).Int("attempt", attempt).Msg("Notification socket reconnecting")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			}

			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}

			c.connMu.RLock()
			creds := c.creds
			c.connMu.RUnlock()

			newConn, err := dial(ctx, c.wsURL, creds)
			if err != nil {
				metrics.ChannelConnects.WithLabelValues(notificationChannelName, "failure").Inc()
				logging.Error().Err(err).Msg("Notification socket reconnection failed")
				continue
			}

			c.connMu.Lock()
			c.conn = newConn
			c.connMu.Unlock()

			metrics.ChannelConnects.WithLabelValues(notificationChannelName, "success").Inc()
			metrics.ChannelConnected.WithLabelValues(notificationChannelName).Set(1)
			c.publishState(events.ChannelStateConnected, attempt)
			logging.Info().Int("attempt", attempt).Msg("Notification socket reconnected")
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval)); err != nil {
			logging.Warn().Err(err).Msg("Notification socket: failed to set read deadline")
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("Notification socket closed by server")
			} else if ctx.Err() == nil {
				logging.Warn().Err(err).Msg("Notification socket read error")
			}
			c.closeConnection()
			if ctx.Err() != nil {
				return
			}
			continue
		}

		// Frame arrived; reset backoff state.
		delay = c.minDelay
		attempt = 0

		c.handleMessage(message)
	}
}

// handleMessage parses and delivers one inbound frame. Parse failures
// never cross the callback boundary.
func (c *NotificationChannel) handleMessage(data []byte) {
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil || n.ID == 0 {
		metrics.FramesReceived.WithLabelValues(notificationChannelName, "malformed").Inc()
		logging.Warn().Err(err).Msg("Discarding malformed notification frame")
		return
	}
	metrics.FramesReceived.WithLabelValues(notificationChannelName, "notification").Inc()

	if c.bus != nil {
		if err := c.bus.Publish(events.TopicNotificationIncoming, events.NotificationIncoming{
			Notification: n,
			ReceivedAt:   time.Now().UTC(),
		}); err != nil {
			logging.Warn().Err(err).Msg("Failed to publish incoming notification event")
		}
	}

	c.callbackMu.RLock()
	fn := c.onNotification
	c.callbackMu.RUnlock()
	if fn != nil {
		fn(n)
	}
}

// pingLoop keeps the connection alive and lets the read deadline detect
// dead peers.
func (c *NotificationChannel) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				logging.Warn().Err(err).Msg("Notification socket ping failed")
				c.closeConnection()
			}
		}
	}
}

// closeConnection tears down the socket without touching the reconnect
// flag; the read loop decides whether to redial.
func (c *NotificationChannel) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err := c.conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Notification socket close")
	}
	c.conn = nil
	metrics.ChannelConnected.WithLabelValues(notificationChannelName).Set(0)
}

// Disconnect shuts the channel down for good. The reconnect flag is
// cleared before the socket closes so the read loop cannot bring the
// connection back. Safe to call more than once.
func (c *NotificationChannel) Disconnect() {
	c.shouldReconnect.Store(false)
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.closeConnection()
	c.wg.Wait()
	c.publishState(events.ChannelStateDisconnected, 0)
	logging.Info().Msg("Notification channel shut down")
}

// IsConnected reports whether a live socket is currently held.
func (c *NotificationChannel) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

func (c *NotificationChannel) publishState(state events.ChannelState, attempt int) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(events.TopicChannelState, events.ChannelTransition{
		Channel: notificationChannelName,
		State:   state,
		Attempt: attempt,
		At:      time.Now().UTC(),
	}); err != nil {
		logging.Debug().Err(err).Msg("Failed to publish channel state event")
	}
}

// jitter returns a random extra delay up to half of d, spreading
// reconnect storms when many clients drop at once.
func jitter(d time.Duration) time.Duration {
	half := int64(d) / 2
	if half <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(half))
}
