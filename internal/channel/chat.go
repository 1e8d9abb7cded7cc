// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/models"
)

const chatChannelName = "chat"

// ChatChannel holds at most one socket to /ws/chat/{conversationId}/.
//
// Opening a conversation always tears down the previous socket first, so
// two threads' frames can never interleave. Every socket is stamped with
// a generation number; frames and reconnect completions from an older
// generation are discarded. A dropped socket is redialed a bounded
// number of times while its conversation is still the selected one.
//
// Sends when no socket is open are logged and dropped, never queued.
// Outbound frames pass a token-bucket limiter.
type ChatChannel struct {
	wsBase     string
	creds      credentials
	maxRetries int
	limiter    *rate.Limiter

	mu             sync.Mutex
	conn           *websocket.Conn
	conversationID int64
	generation     uint64

	handlerMu sync.RWMutex
	onFrame   func(conversationID int64, frame models.ChatFrame)
}

// NewChatChannel builds the channel. No socket is opened until Open.
func NewChatChannel(backend *config.BackendConfig, cfg *config.ChatConfig) (*ChatChannel, error) {
	base, err := socketBase(backend)
	if err != nil {
		return nil, fmt.Errorf("chat channel: %w", err)
	}

	limit := rate.Limit(cfg.SendRatePerSecond)
	if cfg.SendRatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	return &ChatChannel{
		wsBase:     base,
		creds:      credentials{cookieName: backend.SessionCookieName, cookieValue: backend.SessionCookieValue},
		maxRetries: cfg.RetryAttempts,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// SetCredentials swaps the session cookie sent on the next dial. Already
// open sockets keep their connection.
func (c *ChatChannel) SetCredentials(cookieName, cookieValue string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials{cookieName: cookieName, cookieValue: cookieValue}
}

// OnFrame registers the single inbound frame handler.
func (c *ChatChannel) OnFrame(fn func(conversationID int64, frame models.ChatFrame)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onFrame = fn
}

// Open connects the socket for conversationID, closing any previous
// conversation's socket first.
func (c *ChatChannel) Open(ctx context.Context, conversationID int64) error {
	c.mu.Lock()
	c.teardownLocked()
	c.generation++
	gen := c.generation
	c.conversationID = conversationID
	creds := c.creds
	c.mu.Unlock()

	wsURL := fmt.Sprintf("%s/ws/chat/%d/", c.wsBase, conversationID)
	conn, err := dial(ctx, wsURL, creds)
	if err != nil {
		metrics.ChannelConnects.WithLabelValues(chatChannelName, "failure").Inc()
		return fmt.Errorf("chat channel connect (conversation %d): %w", conversationID, err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// Another Open or Close won the race; this socket is stale.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	metrics.ChannelConnects.WithLabelValues(chatChannelName, "success").Inc()
	metrics.ChannelConnected.WithLabelValues(chatChannelName).Set(1)
	logging.Info().Int64("conversation_id", conversationID).Msg("Chat socket connected")

	go c.readLoop(ctx, gen, conversationID, conn)
	return nil
}

// readLoop reads one socket generation until it dies or is superseded.
func (c *ChatChannel) readLoop(ctx context.Context, gen uint64, conversationID int64, conn *websocket.Conn) {
	retries := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()

			if ctx.Err() != nil || !c.isCurrent(gen) {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Int64("conversation_id", conversationID).Msg("Chat socket closed by server")
			} else {
				logging.Warn().Err(err).Int64("conversation_id", conversationID).Msg("Chat socket read error")
			}

			c.mu.Lock()
			if c.generation == gen {
				c.conn = nil
				metrics.ChannelConnected.WithLabelValues(chatChannelName).Set(0)
			}
			c.mu.Unlock()

			// Bounded retry while the conversation is still selected.
			if retries >= c.maxRetries {
				logging.Warn().Int64("conversation_id", conversationID).Int("attempts", retries).Msg("Chat socket retries exhausted")
				return
			}
			retries++
			metrics.ChannelReconnects.WithLabelValues(chatChannelName).Inc()

			select {
			case <-time.After(time.Second * time.Duration(retries)):
			case <-ctx.Done():
				return
			}
			if !c.isCurrent(gen) {
				return
			}

			wsURL := fmt.Sprintf("%s/ws/chat/%d/", c.wsBase, conversationID)
			c.mu.Lock()
			creds := c.creds
			c.mu.Unlock()
			newConn, dialErr := dial(ctx, wsURL, creds)
			if dialErr != nil {
				metrics.ChannelConnects.WithLabelValues(chatChannelName, "failure").Inc()
				logging.Warn().Err(dialErr).Int64("conversation_id", conversationID).Msg("Chat socket retry failed")
				continue
			}

			c.mu.Lock()
			if c.generation != gen {
				// Conversation changed while redialing; drop the socket.
				c.mu.Unlock()
				_ = newConn.Close()
				return
			}
			c.conn = newConn
			c.mu.Unlock()

			metrics.ChannelConnects.WithLabelValues(chatChannelName, "success").Inc()
			metrics.ChannelConnected.WithLabelValues(chatChannelName).Set(1)
			logging.Info().Int64("conversation_id", conversationID).Int("attempt", retries).Msg("Chat socket reconnected")
			conn = newConn
			continue
		}

		if !c.isCurrent(gen) {
			// Late frame from an abandoned socket.
			return
		}
		c.handleFrame(conversationID, data)
	}
}

// handleFrame parses one inbound frame and hands it to the handler.
func (c *ChatChannel) handleFrame(conversationID int64, data []byte) {
	var frame models.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.FramesReceived.WithLabelValues(chatChannelName, "malformed").Inc()
		logging.Warn().Err(err).Int64("conversation_id", conversationID).Msg("Discarding malformed chat frame")
		return
	}

	switch {
	case frame.IsSeen():
		metrics.FramesReceived.WithLabelValues(chatChannelName, "seen").Inc()
	case frame.IsMessage():
		metrics.FramesReceived.WithLabelValues(chatChannelName, "message").Inc()
	default:
		metrics.FramesReceived.WithLabelValues(chatChannelName, "malformed").Inc()
		logging.Debug().Int64("conversation_id", conversationID).Msg("Discarding unrecognized chat frame")
		return
	}

	c.handlerMu.RLock()
	fn := c.onFrame
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(conversationID, frame)
	}
}

// SendText sends a chat message frame for the open conversation.
func (c *ChatChannel) SendText(ctx context.Context, text string, senderID int64) error {
	frame := models.ChatFrame{
		Type:     models.FrameTypeMessage,
		Message:  text,
		SenderID: senderID,
	}
	return c.send(ctx, frame, "message")
}

// SendSeen sends a read receipt for the open conversation.
func (c *ChatChannel) SendSeen(ctx context.Context, userID, conversationID int64) error {
	frame := models.ChatFrame{
		Type:           models.FrameTypeSeen,
		UserID:         userID,
		ConversationID: conversationID,
	}
	return c.send(ctx, frame, "seen")
}

// SendMediaAnnouncement broadcasts an already-uploaded attachment so the
// counterparty's live thread picks it up. The upload itself goes over
// REST; this frame only carries the saved message's media reference.
func (c *ChatChannel) SendMediaAnnouncement(ctx context.Context, msg *models.Message, senderName string) error {
	frame := models.ChatFrame{
		Type:       models.FrameTypeMessage,
		Message:    msg.Text,
		SenderID:   msg.Sender,
		SenderName: senderName,
		MediaURL:   msg.Image + msg.File, // exactly one is set
		MediaType:  msg.MediaKind(),
		MsgID:      msg.ID,
	}
	return c.send(ctx, frame, "message")
}

// send writes one frame. A closed socket drops the frame by design; the
// caller learns nothing was delivered from the log and metric, matching
// the fire-and-forget socket semantics.
func (c *ChatChannel) send(ctx context.Context, frame models.ChatFrame, kind string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chat send rate limit: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		metrics.FramesDropped.WithLabelValues(chatChannelName).Inc()
		logging.Warn().Str("kind", kind).Msg("Chat send dropped: socket not open")
		return nil
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal chat frame: %w", err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		logging.Debug().Err(err).Msg("Chat socket: failed to set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write chat frame: %w", err)
	}
	metrics.FramesSent.WithLabelValues(chatChannelName, kind).Inc()
	return nil
}

// Close tears down the current socket, if any. The generation bump
// invalidates any in-flight read loop or reconnect.
func (c *ChatChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.teardownLocked()
}

// ConversationID returns the conversation the channel currently serves,
// or 0 when closed.
func (c *ChatChannel) ConversationID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0
	}
	return c.conversationID
}

// IsOpen reports whether a live socket is held.
func (c *ChatChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *ChatChannel) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// teardownLocked closes the held socket. Caller holds c.mu.
func (c *ChatChannel) teardownLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.conn.Close()
	c.conn = nil
	metrics.ChannelConnected.WithLabelValues(chatChannelName).Set(0)
}
