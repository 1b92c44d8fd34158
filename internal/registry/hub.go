// Package registry keeps the process-wide in-memory state of live connections:
// room membership, presence, typing sets and live meeting membership.
// Every registry owns its maps and hands out copies only.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"

	"github.com/google/uuid"
)

type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }

// Conn is a live client connection. Send must not block: it reports false
// when the event could not be queued.
type Conn interface {
	ID() ConnID
	Identity() domain.Identity
	Send(ev protocol.Envelope) bool
}

type RoomID string

func ConversationRoom(conversationID string) RoomID { return RoomID("conv:" + conversationID) }
func PersonalRoom(id domain.UserID) RoomID { return RoomID("user:" + string(id)) }
func MeetingRoom(meetingID string) RoomID { return RoomID("meeting:" + meetingID) }

// Authorizer is checked before a connection is added to a room.
type Authorizer func(ctx context.Context) error

type Hub struct {
	mu     sync.RWMutex
	conns  map[ConnID]Conn
	rooms  map[RoomID]map[ConnID]struct{}
	byConn map[ConnID]map[RoomID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[ConnID]Conn),
		rooms:  make(map[RoomID]map[ConnID]struct{}),
		byConn: make(map[ConnID]map[RoomID]struct{}),
	}
}

func (h *Hub) Attach(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
	if _, ok := h.byConn[c.ID()]; !ok {
		h.byConn[c.ID()] = make(map[RoomID]struct{})
	}
}

// Detach forgets the connection and removes it from every room it was in.
// The rooms it left are returned.
func (h *Hub) Detach(id ConnID) []RoomID {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, id)
	joined := h.byConn[id]
	delete(h.byConn, id)

	left := make([]RoomID, 0, len(joined))
	for room := range joined {
		h.removeLocked(room, id)
		left = append(left, room)
	}
	sort.Slice(left, func(i, j int) bool { return left[i] < left[j] })

	return left
}

func (h *Hub) Conn(id ConnID) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[id]
	return c, ok
}

// Join adds the connection to room after authorize passes. authorize runs
// without the lock held, so it may call out to storage. Joining twice is a no-op.
func (h *Hub) Join(ctx context.Context, room RoomID, id ConnID, authorize Authorizer) error {
	if authorize != nil {
		if err := authorize(ctx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.byConn[id]
	if !ok {
		return fmt.Errorf("%w: connection %s", domain.ErrNotFound, id)
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[ConnID]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
	joined[room] = struct{}{}

	return nil
}

// Leave reports whether the connection was a member.
func (h *Hub) Leave(room RoomID, id ConnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.byConn[id]; ok {
		delete(joined, room)
	}
	return h.removeLocked(room, id)
}

func (h *Hub) removeLocked(room RoomID, id ConnID) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[id]; !ok {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	return true
}

func (h *Hub) IsMember(room RoomID, id ConnID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[room][id]
	return ok
}

func (h *Hub) Members(room RoomID) []ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ConnID, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hub) Rooms(id ConnID) []RoomID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RoomID, 0, len(h.byConn[id]))
	for room := range h.byConn[id] {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendTo reports false if the connection is gone or its queue is full.
func (h *Hub) SendTo(id ConnID, ev protocol.Envelope) bool {
	c, ok := h.Conn(id)
	if !ok {
		return false
	}
	return c.Send(ev)
}

// Broadcast delivers ev to every member of room except the given connections
// and returns how many connections accepted it.
func (h *Hub) Broadcast(room RoomID, ev protocol.Envelope, except ...ConnID) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if c, ok := h.conns[id]; ok && !excluded(id, except) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, ev)
}

func (h *Hub) BroadcastAll(ev protocol.Envelope, except ...ConnID) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for id, c := range h.conns {
		if !excluded(id, except) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, ev)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func deliver(targets []Conn, ev protocol.Envelope) int {
	n := 0
	for _, c := range targets {
		if c.Send(ev) {
			n++
		}
	}
	return n
}

func excluded(id ConnID, except []ConnID) bool {
	for _, e := range except {
		if e == id {
			return true
		}
	}
	return false
}
