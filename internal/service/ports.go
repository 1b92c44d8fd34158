package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// ConversationStore is the persistence side of chat.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// SaveMessage stores the message as read by its sender and bumps the
	// conversation's last message in one step.
	SaveMessage(ctx context.Context, m domain.NewMessage) (*domain.Message, error)
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	// MarkRead reports false when the user had already read the message.
	MarkRead(ctx context.Context, messageID string, user domain.UserID, at time.Time) (bool, error)
}

// MeetingStore owns the "one live meeting per conversation" rule.
type MeetingStore interface {
	// CreateLive fails with domain.ErrConflict when the conversation already has a live meeting.
	CreateLive(ctx context.Context, m *domain.Meeting) error
	FindLiveByConversation(ctx context.Context, conversationID string) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*domain.Meeting, error)
	// OpenParticipant appends a record unless the user already has an open one.
	OpenParticipant(ctx context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error)
	// CloseParticipant sets left-at on the user's open record, if any.
	CloseParticipant(ctx context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error)
	// End marks the meeting ended and closes every open record.
	End(ctx context.Context, meetingID string, at time.Time) error
}
