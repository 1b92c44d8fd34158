package service

import (
	"context"

	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
)

// SessionService brings connections into the registries and unwinds them on disconnect.
type SessionService struct {
	hub      *registry.Hub
	presence *registry.Presence
	typing   *registry.Typing
	meetings *MeetingService
}

func NewSessionService(hub *registry.Hub, presence *registry.Presence, typing *registry.Typing, meetings *MeetingService) *SessionService {
	return &SessionService{
		hub:      hub,
		presence: presence,
		typing:   typing,
		meetings: meetings,
	}
}

func (s *SessionService) Connect(ctx context.Context, c registry.Conn) error {
	id := c.Identity()

	s.hub.Attach(c)
	if err := s.hub.Join(ctx, registry.PersonalRoom(id.ID), c.ID(), nil); err != nil {
		s.hub.Detach(c.ID())
		return err
	}

	if s.presence.Register(id.ID, c.ID()) {
		s.hub.BroadcastAll(protocol.Envelope{
			Type:    protocol.TypePresenceOnline,
			Payload: protocol.Presence{Identity: id.ID, DisplayName: id.DisplayName},
		}, c.ID())
	}

	logger.FromContext(ctx).Debug("session connected", "conn", c.ID(), "user", id.ID)
	return nil
}

// Disconnect removes every trace of the connection. It is safe to call more than once.
func (s *SessionService) Disconnect(ctx context.Context, c registry.Conn) {
	id := c.Identity()

	for _, e := range s.typing.DropConn(c.ID()) {
		s.hub.Broadcast(registry.ConversationRoom(e.ConversationID), protocol.Envelope{
			Type:    protocol.TypeTypingStopped,
			Payload: protocol.TypingStopped{ConversationID: e.ConversationID, Identity: e.UserID},
		}, c.ID())
	}

	s.meetings.leaveAll(ctx, c.ID())

	rooms := s.hub.Detach(c.ID())

	if s.presence.Unregister(id.ID, c.ID()) {
		s.hub.BroadcastAll(protocol.Envelope{
			Type:    protocol.TypePresenceOffline,
			Payload: protocol.Presence{Identity: id.ID, DisplayName: id.DisplayName},
		})
	}

	logger.FromContext(ctx).Debug("session disconnected", "conn", c.ID(), "user", id.ID, "rooms", len(rooms))
}

// Online lists online identities in the same shape as presenceOnline. The
// display name comes from any of the identity's live connections.
func (s *SessionService) Online() []protocol.Presence {
	users := s.presence.ListOnline()
	out := make([]protocol.Presence, 0, len(users))
	for _, u := range users {
		p := protocol.Presence{Identity: u}
		for _, id := range s.presence.Connections(u) {
			if c, ok := s.hub.Conn(id); ok {
				p.DisplayName = c.Identity().DisplayName
				break
			}
		}
		out = append(out, p)
	}
	return out
}
