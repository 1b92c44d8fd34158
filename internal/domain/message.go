package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

const MaxContentLength = 5000

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type Receipt struct {
	UserID UserID    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Sender         UserID      `json:"sender"`
	SenderName     string      `json:"senderName"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"kind"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	ReadBy         []Receipt   `json:"readBy"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// NewMessage is a validated, not yet persisted message.
type NewMessage struct {
	ConversationID string
	Sender         Identity
	Content        string
	Kind           MessageKind
	Attachment     *Attachment
	SentAt         time.Time
}

// Validate normalises the draft in place.
func (m *NewMessage) Validate() error {
	m.ConversationID = strings.TrimSpace(m.ConversationID)
	if m.ConversationID == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	}

	if m.Kind == "" {
		m.Kind = KindText
	}
	switch m.Kind {
	case KindText, KindImage, KindFile:
	default:
		return fmt.Errorf("%w: unsupported message kind %q", ErrInvalidInput, m.Kind)
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Kind == KindText && m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(m.Content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, MaxContentLength)
	}

	if m.Attachment != nil {
		m.Attachment.URL = strings.TrimSpace(m.Attachment.URL)
		m.Attachment.Name = strings.TrimSpace(m.Attachment.Name)
		if m.Attachment.URL == "" {
			m.Attachment = nil
		}
	}
	if m.Kind != KindText && m.Attachment == nil {
		return fmt.Errorf("%w: %s message requires an attachment", ErrInvalidInput, m.Kind)
	}

	return nil
}
