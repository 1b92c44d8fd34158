// Package memstore is an in-process implementation of the conversation,
// meeting and user stores. It backs storage.driver=memory and the tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.Mutex
	users         map[domain.UserID]domain.Identity
	conversations map[string]*domain.Conversation
	messages      map[string]*domain.Message
	lastMessage   map[string]string
	meetings      map[string]*domain.Meeting
}

func New() *Store {
	return &Store{
		users:         make(map[domain.UserID]domain.Identity),
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string]*domain.Message),
		lastMessage:   make(map[string]string),
		meetings:      make(map[string]*domain.Meeting),
	}
}

func (s *Store) PutUser(u domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutConversation(c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Participants = slices.Clone(c.Participants)
	s.conversations[c.ID] = &c
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return u, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	return &cp, nil
}

func (s *Store) SaveMessage(_ context.Context, m domain.NewMessage) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[m.ConversationID]; !ok {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, m.ConversationID)
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: m.ConversationID,
		Sender:         m.Sender.ID,
		SenderName:     m.Sender.DisplayName,
		Content:        m.Content,
		Kind:           m.Kind,
		ReadBy:         []domain.Receipt{{UserID: m.Sender.ID, ReadAt: m.SentAt}},
		CreatedAt:      m.SentAt,
	}
	if m.Attachment != nil {
		a := *m.Attachment
		msg.Attachment = &a
	}
	s.messages[msg.ID] = msg
	s.lastMessage[m.ConversationID] = msg.ID

	return copyMessage(msg), nil
}

func (s *Store) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	return copyMessage(m), nil
}

func (s *Store) LastMessage(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lastMessage[conversationID]
	return id, ok
}

func (s *Store) MarkRead(_ context.Context, messageID string, user domain.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return false, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
	}
	for _, r := range m.ReadBy {
		if r.UserID == user {
			return false, nil
		}
	}
	m.ReadBy = append(m.ReadBy, domain.Receipt{UserID: user, ReadAt: at})
	return true, nil
}

func (s *Store) CreateLive(_ context.Context, m *domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[m.ID]; ok {
		return fmt.Errorf("%w: meeting %s exists", domain.ErrConflict, m.ID)
	}
	for _, cur := range s.meetings {
		if cur.ConversationID == m.ConversationID && cur.Live {
			return fmt.Errorf("%w: conversation %s already has a live meeting", domain.ErrConflict, m.ConversationID)
		}
	}
	s.meetings[m.ID] = copyMeeting(m)
	return nil
}

func (s *Store) FindLiveByConversation(_ context.Context, conversationID string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.meetings {
		if cur.ConversationID == conversationID && cur.Live {
			return copyMeeting(cur), nil
		}
	}
	return nil, fmt.Errorf("%w: no live meeting in conversation %s", domain.ErrNotFound, conversationID)
}

func (s *Store) GetMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("%w: meeting %s", domain.ErrNotFound, id)
	}
	return copyMeeting(m), nil
}

func (s *Store) OpenParticipant(_ context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok {
		return false, fmt.Errorf("%w: meeting %s", domain.ErrNotFound, meetingID)
	}
	if m.OpenRecord(user) >= 0 {
		return false, nil
	}
	m.Participants = append(m.Participants, domain.ParticipantRecord{UserID: user, JoinedAt: at})
	return true, nil
}

func (s *Store) CloseParticipant(_ context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok {
		return false, fmt.Errorf("%w: meeting %s", domain.ErrNotFound, meetingID)
	}
	i := m.OpenRecord(user)
	if i < 0 {
		return false, nil
	}
	left := at
	m.Participants[i].LeftAt = &left
	return true, nil
}

func (s *Store) End(_ context.Context, meetingID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok {
		return fmt.Errorf("%w: meeting %s", domain.ErrNotFound, meetingID)
	}
	if !m.Live {
		return domain.ErrMeetingEnded
	}
	ended := at
	m.Live = false
	m.EndedAt = &ended
	for i := range m.Participants {
		if m.Participants[i].Open() {
			left := at
			m.Participants[i].LeftAt = &left
		}
	}
	return nil
}

func copyMessage(m *domain.Message) *domain.Message {
	cp := *m
	cp.ReadBy = slices.Clone(m.ReadBy)
	if m.Attachment != nil {
		a := *m.Attachment
		cp.Attachment = &a
	}
	return &cp
}

func copyMeeting(m *domain.Meeting) *domain.Meeting {
	cp := *m
	cp.Participants = slices.Clone(m.Participants)
	return &cp
}
