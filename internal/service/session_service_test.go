package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
)

func TestPresence_OnlineOfflineOnBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	watcher := h.connect(t, "w", "u2")

	tabs := []*testConn{h.connect(t, "a1", "u1"), h.connect(t, "a2", "u1"), h.connect(t, "a3", "u1")}
	if n := watcher.count(protocol.TypePresenceOnline); n != 1 {
		t.Fatalf("presenceOnline sent %d times", n)
	}
	if tabs[0].count(protocol.TypePresenceOnline) != 0 {
		t.Fatal("connection must not be told about itself")
	}

	for i, c := range tabs {
		h.session.Disconnect(ctx, c)
		want := 0
		if i == len(tabs)-1 {
			want = 1
		}
		if n := watcher.count(protocol.TypePresenceOffline); n != want {
			t.Fatalf("after %d disconnects presenceOffline = %d", i+1, n)
		}
	}
	if h.presence.IsOnline("u1") {
		t.Fatal("u1 must be offline")
	}
	got := h.session.Online()
	if len(got) != 1 || got[0].Identity != "u2" {
		t.Fatalf("online = %+v", got)
	}
}

func TestDisconnect_UnwindsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMeeting(t, "u1", "g1")

	a := h.connect(t, "a", "u1")
	b := h.connect(t, "b", "u2")
	for _, conv := range []string{"c1", "g1"} {
		if err := h.chat.JoinRoom(ctx, a, conv); err != nil {
			t.Fatal(err)
		}
		if err := h.chat.JoinRoom(ctx, b, conv); err != nil {
			t.Fatal(err)
		}
	}
	_ = h.meeting.JoinMeeting(ctx, a, id)
	_ = h.meeting.JoinMeeting(ctx, b, id)
	h.chat.StartTyping(ctx, a, "c1")
	b.reset()

	h.session.Disconnect(ctx, a)

	for _, room := range []registry.RoomID{registry.ConversationRoom("c1"), registry.ConversationRoom("g1"), registry.MeetingRoom(id), registry.PersonalRoom("u1")} {
		if h.hub.IsMember(room, a.ID()) {
			t.Fatalf("still a member of %s", room)
		}
	}
	if len(h.hub.Rooms(a.ID())) != 0 {
		t.Fatal("reverse index not cleared")
	}

	if n := b.count(protocol.TypeTypingStopped); n != 1 {
		t.Fatalf("typingStopped = %d", n)
	}
	if n := b.count(protocol.TypeParticipantLeft); n != 1 {
		t.Fatalf("participantLeft = %d", n)
	}
	if n := b.count(protocol.TypePresenceOffline); n != 1 {
		t.Fatalf("presenceOffline = %d", n)
	}

	_, closes := h.store.counts()
	if closes != 1 {
		t.Fatalf("CloseParticipant called %d times", closes)
	}
	m, _ := h.store.GetMeeting(ctx, id)
	for _, r := range m.Participants {
		if r.UserID == "u1" && r.LeftAt == nil {
			t.Fatal("u1 record still open")
		}
	}

	// второй вызов ничего не меняет
	h.session.Disconnect(ctx, a)
	if _, closes := h.store.counts(); closes != 1 {
		t.Fatal("repeated disconnect closed the record again")
	}
	if b.count(protocol.TypeParticipantLeft) != 1 || b.count(protocol.TypePresenceOffline) != 1 {
		t.Fatal("repeated disconnect re-notified")
	}
}

func TestDisconnect_CloseFailureStillUnwinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMeeting(t, "u1", "c1")
	a := h.connect(t, "a", "u1")
	b := h.connect(t, "b", "u2")
	_ = h.meeting.JoinMeeting(ctx, a, id)
	_ = h.meeting.JoinMeeting(ctx, b, id)
	h.store.closeErr = errors.New("db down")

	h.session.Disconnect(ctx, a)

	if len(h.meetings.Members(id)) != 1 {
		t.Fatal("in-memory membership must be removed even when persistence fails")
	}
	if b.count(protocol.TypeParticipantLeft) != 1 {
		t.Fatal("remaining member must be notified")
	}
}

func TestOnline_MatchesPresenceEventShape(t *testing.T) {
	h := newHarness(t)
	watcher := h.connect(t, "w", "u2")
	h.connect(t, "a", "u1")

	event := payload[protocol.Presence](t, watcher.last(t, protocol.TypePresenceOnline))
	for _, p := range h.session.Online() {
		if p.Identity == "u1" {
			if p != event {
				t.Fatalf("online entry %+v differs from presenceOnline %+v", p, event)
			}
			return
		}
	}
	t.Fatal("u1 missing from online list")
}
