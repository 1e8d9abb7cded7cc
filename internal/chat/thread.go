// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package chat drives the active conversation thread: history loading,
// the live socket, send operations, and read receipts.
package chat

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ashika557/stayspot-realtime/internal/channel"
	"github.com/ashika557/stayspot-realtime/internal/events"
	"github.com/ashika557/stayspot-realtime/internal/logging"
	"github.com/ashika557/stayspot-realtime/internal/models"
	"github.com/ashika557/stayspot-realtime/internal/stayspot"
)

// State is the thread session lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLive    State = "live"
)

// sendTimeout bounds the fire-and-forget socket operations issued from
// inbound frame handling.
const sendTimeout = 5 * time.Second

// ThreadSession owns the currently open conversation. At most one
// conversation is live at a time; opening another one closes the
// previous socket and discards its messages (no cross-thread cache).
//
// Message state is append-only while Live. Every history fetch is
// tagged with the open sequence it belongs to; a fetch resolving after
// the session moved on is discarded instead of overwriting the newer
// thread.
type ThreadSession struct {
	api     stayspot.API
	channel *channel.ChatChannel
	bus     *events.Bus

	userID   int64
	userName string

	mu             sync.Mutex
	state          State
	conversationID int64
	messages       []models.Message
	openSeq        uint64

	// resolved caches deep-link targets: target user id -> conversation
	// id, so start_conversation fires once per session activation.
	resolved map[int64]int64
}

// NewThreadSession wires the session to the backend client and the chat
// channel. The session registers itself as the channel's frame handler.
func NewThreadSession(api stayspot.API, ch *channel.ChatChannel, bus *events.Bus, userID int64, userName string) *ThreadSession {
	s := &ThreadSession{
		api:      api,
		channel:  ch,
		bus:      bus,
		userID:   userID,
		userName: userName,
		state:    StateIdle,
		resolved: make(map[int64]int64),
	}
	ch.OnFrame(s.handleFrame)
	return s
}

// Open activates a conversation: history fetch and socket connect run
// concurrently, then the session goes Live. Opening while another
// conversation is active closes it first.
func (s *ThreadSession) Open(ctx context.Context, conversationID int64) error {
	s.mu.Lock()
	s.state = StateLoading
	s.conversationID = conversationID
	s.messages = nil
	s.openSeq++
	seq := s.openSeq
	s.mu.Unlock()

	var (
		wg       sync.WaitGroup
		history  []models.Message
		histErr  error
		sockErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		history, histErr = s.api.ListMessages(ctx, conversationID)
	}()
	go func() {
		defer wg.Done()
		sockErr = s.channel.Open(ctx, conversationID)
	}()
	wg.Wait()

	if histErr != nil {
		// A thread without history never goes Live; tear down to Idle
		// unless a newer Open already took over.
		s.mu.Lock()
		if s.openSeq == seq && s.conversationID == conversationID {
			s.state = StateIdle
			s.conversationID = 0
			s.mu.Unlock()
			s.channel.Close()
		} else {
			s.mu.Unlock()
		}
		return fmt.Errorf("open conversation %d: %w", conversationID, histErr)
	}

	s.mu.Lock()
	if s.openSeq != seq || s.conversationID != conversationID {
		// The session moved on while this fetch was in flight.
		s.mu.Unlock()
		logging.Debug().Int64("conversation_id", conversationID).Msg("Discarding stale history fetch")
		return nil
	}
	s.messages = history
	s.state = StateLive
	s.mu.Unlock()

	if sockErr != nil {
		// History loaded but no live socket; the thread still renders and
		// REST operations work. Live updates resume if Open is retried.
		logging.Warn().Err(sockErr).Int64("conversation_id", conversationID).Msg("Chat socket unavailable, thread is history-only")
	}

	// Opening a thread marks it read server-side.
	if err := s.api.MarkConversationRead(ctx, conversationID); err != nil {
		logging.Warn().Err(err).Int64("conversation_id", conversationID).Msg("Failed to mark conversation read")
	}
	return nil
}

// OpenWithUser resolves (or creates) the conversation with targetUserID
// and opens it. Resolution happens once per session activation; repeat
// deep links to the same user reuse the cached conversation id.
func (s *ThreadSession) OpenWithUser(ctx context.Context, targetUserID int64) error {
	s.mu.Lock()
	conversationID, ok := s.resolved[targetUserID]
	s.mu.Unlock()

	if !ok {
		conv, err := s.api.StartConversation(ctx, targetUserID)
		if err != nil {
			return fmt.Errorf("start conversation with user %d: %w", targetUserID, err)
		}
		conversationID = conv.ID
		s.mu.Lock()
		s.resolved[targetUserID] = conversationID
		s.mu.Unlock()
	}

	return s.Open(ctx, conversationID)
}

// Close deactivates the thread: socket down, messages cleared.
func (s *ThreadSession) Close() {
	s.channel.Close()
	s.mu.Lock()
	s.state = StateIdle
	s.conversationID = 0
	s.messages = nil
	s.openSeq++
	s.mu.Unlock()
}

// SendText sends a text message over the socket. The sent message is not
// appended locally; the backend broadcasts it back to all participants
// including the sender, and that echo appends it.
func (s *ThreadSession) SendText(ctx context.Context, text string) error {
	return s.channel.SendText(ctx, text, s.userID)
}

// SendMedia uploads an attachment over REST, then announces the saved
// message on the socket so the counterparty's live thread picks it up.
func (s *ThreadSession) SendMedia(ctx context.Context, filename string, content io.Reader, caption string) (*models.Message, error) {
	s.mu.Lock()
	conversationID := s.conversationID
	state := s.state
	s.mu.Unlock()
	if state != StateLive && state != StateLoading {
		return nil, fmt.Errorf("send media: no open conversation")
	}

	msg, err := s.api.SendMedia(ctx, stayspot.MediaUpload{
		ConversationID: conversationID,
		SenderID:       s.userID,
		SenderName:     s.userName,
		Caption:        caption,
		Filename:       filename,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}

	if err := s.channel.SendMediaAnnouncement(ctx, msg, s.userName); err != nil {
		// The upload is durable; only the live announcement was lost.
		logging.Warn().Err(err).Int64("message_id", msg.ID).Msg("Media announcement failed")
	}
	return msg, nil
}

// handleFrame applies one inbound socket frame to thread state.
func (s *ThreadSession) handleFrame(conversationID int64, frame models.ChatFrame) {
	s.mu.Lock()
	if s.state != StateLive || s.conversationID != conversationID {
		s.mu.Unlock()
		return
	}

	switch {
	case frame.IsMessage():
		msg := frame.AsMessage()
		msg.Conversation = conversationID
		s.messages = append(s.messages, msg)
		fromSelf := frame.SenderID == s.userID
		s.mu.Unlock()

		s.publishMessage(conversationID, msg)

		// Someone else's message while the thread is open: it is seen.
		if !fromSelf {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := s.channel.SendSeen(ctx, s.userID, conversationID); err != nil {
				logging.Debug().Err(err).Msg("Seen receipt send failed")
			}
		}

	case frame.IsSeen():
		// Counterparty read the thread: coarse whole-thread receipt.
		if frame.UserID != s.userID {
			for i := range s.messages {
				s.messages[i].IsRead = true
			}
		}
		s.mu.Unlock()

	default:
		s.mu.Unlock()
	}
}

func (s *ThreadSession) publishMessage(conversationID int64, msg models.Message) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(events.TopicChatMessage, events.ChatMessage{
		ConversationID: conversationID,
		Message:        msg,
	}); err != nil {
		logging.Debug().Err(err).Msg("Failed to publish chat message event")
	}
}

// State returns the current lifecycle phase.
func (s *ThreadSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the active conversation, or 0 when Idle.
func (s *ThreadSession) ConversationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the loaded thread, oldest first.
func (s *ThreadSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
