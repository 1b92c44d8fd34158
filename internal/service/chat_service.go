package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
)

type ChatService struct {
	hub    *registry.Hub
	typing *registry.Typing
	store  ConversationStore

	now func() time.Time
}

func NewChatService(hub *registry.Hub, typing *registry.Typing, store ConversationStore) *ChatService {
	return &ChatService{
		hub:    hub,
		typing: typing,
		store:  store,
		now:    time.Now,
	}
}

// JoinRoom subscribes the connection to a conversation room. roomID is the conversation id.
func (s *ChatService) JoinRoom(ctx context.Context, c registry.Conn, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrInvalidInput)
	}

	return s.hub.Join(ctx, registry.ConversationRoom(roomID), c.ID(), func(ctx context.Context) error {
		_, err := s.participantOf(ctx, roomID, c.Identity().ID)
		return err
	})
}

func (s *ChatService) LeaveRoom(_ context.Context, c registry.Conn, roomID string) {
	s.hub.Leave(registry.ConversationRoom(strings.TrimSpace(roomID)), c.ID())
}

func (s *ChatService) SendMessage(ctx context.Context, c registry.Conn, in protocol.SendMessage) (*domain.Message, error) {
	sender := c.Identity()
	draft := domain.NewMessage{
		ConversationID: in.ConversationID,
		Sender:         sender,
		Content:        in.Content,
		Kind:           domain.MessageKind(in.Kind),
		SentAt:         s.now(),
	}
	if in.AttachmentRef != nil {
		draft.Attachment = &domain.Attachment{URL: in.AttachmentRef.URL, Name: in.AttachmentRef.Name}
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	conv, err := s.participantOf(ctx, draft.ConversationID, sender.ID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.SaveMessage(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	// новое сообщение заменяет индикатор набора
	s.stopTyping(c, conv.ID)

	s.hub.Broadcast(registry.ConversationRoom(conv.ID), protocol.Envelope{
		Type:    protocol.TypeMessageReceived,
		Payload: protocol.MessageReceived{ConversationID: conv.ID, Message: msg},
	})

	note := protocol.Envelope{
		Type: protocol.TypeMessageNotification,
		Payload: protocol.MessageNotification{
			ConversationID:      conv.ID,
			Message:             msg,
			ConversationSummary: conv.Summary(),
		},
	}
	for _, p := range conv.Participants {
		if p == sender.ID {
			continue
		}
		s.hub.Broadcast(registry.PersonalRoom(p), note)
	}

	logger.FromContext(ctx).Debug("message sent", "conversation", conv.ID, "message", msg.ID, "user", sender.ID)
	return msg, nil
}

// StartTyping and StopTyping ignore callers that are not participants.
func (s *ChatService) StartTyping(ctx context.Context, c registry.Conn, conversationID string) {
	conversationID = strings.TrimSpace(conversationID)
	if !s.mayType(ctx, c, conversationID) {
		return
	}

	id := c.Identity()
	if !s.typing.Start(conversationID, id.ID, c.ID()) {
		return
	}
	s.hub.Broadcast(registry.ConversationRoom(conversationID), protocol.Envelope{
		Type: protocol.TypeTypingStarted,
		Payload: protocol.TypingStarted{
			ConversationID: conversationID,
			Identity:       id.ID,
			DisplayName:    id.DisplayName,
		},
	}, c.ID())
}

func (s *ChatService) StopTyping(ctx context.Context, c registry.Conn, conversationID string) {
	conversationID = strings.TrimSpace(conversationID)
	if !s.mayType(ctx, c, conversationID) {
		return
	}
	s.stopTyping(c, conversationID)
}

func (s *ChatService) stopTyping(c registry.Conn, conversationID string) {
	id := c.Identity().ID
	if !s.typing.Stop(conversationID, id) {
		return
	}
	s.hub.Broadcast(registry.ConversationRoom(conversationID), protocol.Envelope{
		Type:    protocol.TypeTypingStopped,
		Payload: protocol.TypingStopped{ConversationID: conversationID, Identity: id},
	}, c.ID())
}

func (s *ChatService) mayType(ctx context.Context, c registry.Conn, conversationID string) bool {
	if conversationID == "" {
		return false
	}
	// членство в комнате уже прошло проверку при joinRoom
	if s.hub.IsMember(registry.ConversationRoom(conversationID), c.ID()) {
		return true
	}
	if _, err := s.participantOf(ctx, conversationID, c.Identity().ID); err != nil {
		logger.FromContext(ctx).Debug("typing ignored", "conversation", conversationID, "user", c.Identity().ID, "err", err)
		return false
	}
	return true
}

// MarkRead records a read and notifies the author on the first read only.
func (s *ChatService) MarkRead(ctx context.Context, c registry.Conn, in protocol.MessageRead) error {
	messageID := strings.TrimSpace(in.MessageID)
	if messageID == "" {
		return fmt.Errorf("%w: message id is required", domain.ErrInvalidInput)
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if in.ConversationID != "" && in.ConversationID != msg.ConversationID {
		return fmt.Errorf("%w: message %s is not in conversation %s", domain.ErrInvalidInput, messageID, in.ConversationID)
	}

	reader := c.Identity().ID
	if _, err := s.participantOf(ctx, msg.ConversationID, reader); err != nil {
		return err
	}
	if msg.Sender == reader {
		return nil
	}

	at := s.now()
	first, err := s.store.MarkRead(ctx, msg.ID, reader, at)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !first {
		return nil
	}

	s.hub.Broadcast(registry.PersonalRoom(msg.Sender), protocol.Envelope{
		Type: protocol.TypeReadReceipt,
		Payload: protocol.ReadReceipt{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			Identity:       reader,
			ReadAt:         at,
		},
	})
	return nil
}

func (s *ChatService) participantOf(ctx context.Context, conversationID string, user domain.UserID) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(user) {
		return nil, fmt.Errorf("%w: not a participant of conversation %s", domain.ErrForbidden, conversationID)
	}
	return conv, nil
}
