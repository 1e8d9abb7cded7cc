// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package models

// Chat WebSocket Frame Models
// Endpoint: ws(s)://{host}/ws/chat/{conversationId}/
//
// The chat channel is bidirectional. Outbound frames always carry an
// explicit type; inbound broadcast frames from the backend omit the type
// for plain messages, so an empty Type is treated as FrameTypeMessage.
const (
	FrameTypeMessage = "chat_message"
	FrameTypeSeen    = "message_seen"
)

// ChatFrame is the single frame shape used in both directions on the chat
// socket. Fields are populated according to Type:
//
//   - chat_message: Message, SenderID, SenderName, Timestamp, and the
//     media fields when the message carries an upload.
//   - message_seen: UserID and ConversationID.
type ChatFrame struct {
	Type           string `json:"type,omitempty"`
	Message        string `json:"message,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	MediaURL       string `json:"media_url,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
	MsgID          int64  `json:"msg_id,omitempty"`
	UserID         int64  `json:"user_id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

// IsSeen reports whether the frame is a read receipt.
func (f *ChatFrame) IsSeen() bool {
	return f.Type == FrameTypeSeen
}

// IsMessage reports whether the frame carries a chat message. Inbound
// broadcasts omit the type field, so anything that is not a seen receipt
// and has a message body counts.
func (f *ChatFrame) IsMessage() bool {
	if f.Type == FrameTypeMessage {
		return true
	}
	return f.Type == "" && f.Message != ""
}

// AsMessage converts an inbound message frame to a Message for appending
// to thread state. The wire timestamp stays as-is in Message.Timestamp's
// zero value when unparsable; thread ordering is positional, not temporal.
func (f *ChatFrame) AsMessage() Message {
	msg := Message{
		ID:         f.MsgID,
		Sender:     f.SenderID,
		SenderName: f.SenderName,
		Text:       f.Message,
	}
	switch f.MediaType {
	case "image":
		msg.Image = f.MediaURL
	case "file":
		msg.File = f.MediaURL
	}
	if f.Timestamp != "" {
		msg.Timestamp = parseWireTime(f.Timestamp)
	}
	return msg
}
