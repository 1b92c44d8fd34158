package protocol

import (
	"encoding/json"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// ---- inbound ----

// RoomRef names a conversation room. Older clients send conversationId.
type RoomRef struct {
	RoomID         string `json:"roomId"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (r RoomRef) Target() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.ConversationID
}

type AttachmentRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type SendMessage struct {
	ConversationID string         `json:"conversationId"`
	Content        string         `json:"content"`
	Kind           string         `json:"kind,omitempty"`
	AttachmentRef  *AttachmentRef `json:"attachmentRef,omitempty"`
}

type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

type MessageRead struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MeetingRef struct {
	MeetingID string `json:"meetingId"`
}

// Signal carries an opaque offer/answer/candidate; the server never parses Payload for routing.
type Signal struct {
	MeetingID          string          `json:"meetingId"`
	TargetConnectionID string          `json:"targetConnectionId"`
	Payload            json.RawMessage `json:"payload"`
}

type MediaState struct {
	MeetingID    string `json:"meetingId"`
	AudioEnabled bool   `json:"audioEnabled"`
	VideoEnabled bool   `json:"videoEnabled"`
}

type ScreenShare struct {
	MeetingID string `json:"meetingId"`
	IsSharing bool   `json:"isSharing"`
}

// ---- outbound ----

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type Presence struct {
	Identity    domain.UserID `json:"identity"`
	DisplayName string        `json:"displayName,omitempty"`
}

type MessageReceived struct {
	ConversationID string          `json:"conversationId"`
	Message        *domain.Message `json:"message"`
}

type MessageNotification struct {
	ConversationID      string                     `json:"conversationId"`
	Message             *domain.Message            `json:"message"`
	ConversationSummary domain.ConversationSummary `json:"conversationSummary"`
}

type TypingStarted struct {
	ConversationID string        `json:"conversationId"`
	Identity       domain.UserID `json:"identity"`
	DisplayName    string        `json:"displayName"`
}

type TypingStopped struct {
	ConversationID string        `json:"conversationId"`
	Identity       domain.UserID `json:"identity"`
}

type ReadReceipt struct {
	MessageID      string        `json:"messageId"`
	ConversationID string        `json:"conversationId"`
	Identity       domain.UserID `json:"identity"`
	ReadAt         time.Time     `json:"readAt"`
}

type MeetingStarted struct {
	MeetingID      string        `json:"meetingId"`
	ConversationID string        `json:"conversationId"`
	CreatedBy      domain.UserID `json:"createdBy"`
}

type Member struct {
	ConnectionID string        `json:"connectionId"`
	Identity     domain.UserID `json:"identity"`
	DisplayName  string        `json:"displayName"`
	AudioEnabled bool          `json:"audioEnabled"`
	VideoEnabled bool          `json:"videoEnabled"`
	IsSharing    bool          `json:"isSharing"`
}

type MeetingJoined struct {
	MeetingID string   `json:"meetingId"`
	Members   []Member `json:"members"`
}

type ParticipantJoined struct {
	MeetingID    string        `json:"meetingId"`
	Identity     domain.UserID `json:"identity"`
	DisplayName  string        `json:"displayName"`
	ConnectionID string        `json:"connectionId"`
}

type ParticipantLeft struct {
	MeetingID    string        `json:"meetingId"`
	Identity     domain.UserID `json:"identity"`
	ConnectionID string        `json:"connectionId"`
}

type MeetingEnded struct {
	MeetingID string        `json:"meetingId"`
	EndedBy   domain.UserID `json:"endedBy,omitempty"`
}

type Relayed struct {
	MeetingID          string          `json:"meetingId"`
	Payload            json.RawMessage `json:"payload"`
	SenderConnectionID string          `json:"senderConnectionId"`
	SenderIdentity     domain.UserID   `json:"senderIdentity"`
	SenderDisplayName  string          `json:"senderDisplayName"`
}

type ParticipantMediaState struct {
	MeetingID    string `json:"meetingId"`
	ConnectionID string `json:"connectionId"`
	AudioEnabled bool   `json:"audioEnabled"`
	VideoEnabled bool   `json:"videoEnabled"`
}

type ParticipantScreenShare struct {
	MeetingID    string `json:"meetingId"`
	ConnectionID string `json:"connectionId"`
	IsSharing    bool   `json:"isSharing"`
}
