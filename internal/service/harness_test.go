package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/memstore"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
	"github.com/cwrk-planet/realtime-service/internal/service"
)

type testConn struct {
	id   registry.ConnID
	user domain.Identity

	mu     sync.Mutex
	events []protocol.Envelope
}

func (c *testConn) ID() registry.ConnID       { return c.id }
func (c *testConn) Identity() domain.Identity { return c.user }

func (c *testConn) Send(ev protocol.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *testConn) count(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (c *testConn) last(t *testing.T, typ string) protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == typ {
			return c.events[i]
		}
	}
	t.Fatalf("conn %s: no %q event among %d", c.id, typ, len(c.events))
	return protocol.Envelope{}
}

func (c *testConn) reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// spyStore counts writes and can fail them.
type spyStore struct {
	*memstore.Store

	mu       sync.Mutex
	saves    int
	saveErr  error
	closes   int
	closeErr error
}

func (s *spyStore) SaveMessage(ctx context.Context, m domain.NewMessage) (*domain.Message, error) {
	s.mu.Lock()
	s.saves++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.SaveMessage(ctx, m)
}

func (s *spyStore) CloseParticipant(ctx context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	s.closes++
	err := s.closeErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.Store.CloseParticipant(ctx, meetingID, user, at)
}

func (s *spyStore) counts() (saves, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.closes
}

type harness struct {
	hub      *registry.Hub
	presence *registry.Presence
	typing   *registry.Typing
	meetings *registry.Meetings
	store    *spyStore

	session *service.SessionService
	chat    *service.ChatService
	meeting *service.MeetingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		hub:      registry.NewHub(),
		presence: registry.NewPresence(),
		typing:   registry.NewTyping(),
		meetings: registry.NewMeetings(0),
		store:    &spyStore{Store: memstore.New()},
	}
	h.chat = service.NewChatService(h.hub, h.typing, h.store)
	h.meeting = service.NewMeetingService(h.hub, h.meetings, h.store, h.store)
	h.session = service.NewSessionService(h.hub, h.presence, h.typing, h.meeting)

	for _, u := range []domain.UserID{"u1", "u2", "u3"} {
		h.store.PutUser(domain.Identity{ID: u, DisplayName: "name-" + string(u)})
	}
	h.store.PutConversation(domain.Conversation{ID: "c1", Participants: []domain.UserID{"u1", "u2"}})
	h.store.PutConversation(domain.Conversation{
		ID: "g1", IsGroup: true, GroupName: "team", AdminID: "u1",
		Participants: []domain.UserID{"u1", "u2", "u3"},
	})
	return h
}

func (h *harness) connect(t *testing.T, id string, user domain.UserID) *testConn {
	t.Helper()
	c := &testConn{id: registry.ConnID(id), user: domain.Identity{ID: user, DisplayName: "name-" + string(user)}}
	if err := h.session.Connect(context.Background(), c); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	return c
}

func (h *harness) startMeeting(t *testing.T, by domain.UserID, conv string) string {
	t.Helper()
	m, _, err := h.meeting.StartMeeting(context.Background(), domain.Identity{ID: by}, conv)
	if err != nil {
		t.Fatalf("start meeting: %v", err)
	}
	return m.ID
}

// payload round-trips an outbound payload through JSON, the way a client sees it.
func payload[T any](t *testing.T, ev protocol.Envelope) T {
	t.Helper()
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		t.Fatal(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	return out
}
