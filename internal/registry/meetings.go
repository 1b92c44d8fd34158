package registry

import (
	"sync"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/samber/lo"
)

type MediaState struct {
	Audio  bool
	Video  bool
	Screen bool
}

type MeetingMember struct {
	ConnID   ConnID
	Identity domain.Identity
	JoinedAt time.Time
	Media    MediaState
}

// Departure describes one connection leaving one meeting.
type Departure struct {
	MeetingID string
	Member    MeetingMember
	Remaining []MeetingMember
	// IdentityRemains is true when another connection of the same identity is still in the meeting.
	IdentityRemains bool
}

// Meetings tracks which connections are in which live meeting, in join order.
// Ended meetings are remembered for a while so late signaling is dropped.
type Meetings struct {
	mu        sync.Mutex
	live      map[string][]MeetingMember
	byConn    map[ConnID]map[string]struct{}
	ended     map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewMeetings(retention time.Duration) *Meetings {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Meetings{
		live:      make(map[string][]MeetingMember),
		byConn:    make(map[ConnID]map[string]struct{}),
		ended:     make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

// Join appends m to the meeting and returns the members that were there before.
// added is false when the connection was already a member.
func (ms *Meetings) Join(meetingID string, m MeetingMember) (others []MeetingMember, added bool, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.ended[meetingID]; ok {
		return nil, false, domain.ErrMeetingEnded
	}

	members := ms.live[meetingID]
	others = make([]MeetingMember, 0, len(members))
	for _, cur := range members {
		if cur.ConnID == m.ConnID {
			return ms.othersLocked(meetingID, m.ConnID), false, nil
		}
		others = append(others, cur)
	}

	ms.live[meetingID] = append(members, m)
	set, ok := ms.byConn[m.ConnID]
	if !ok {
		set = make(map[string]struct{})
		ms.byConn[m.ConnID] = set
	}
	set[meetingID] = struct{}{}

	return others, true, nil
}

func (ms *Meetings) othersLocked(meetingID string, id ConnID) []MeetingMember {
	out := make([]MeetingMember, 0, len(ms.live[meetingID]))
	for _, cur := range ms.live[meetingID] {
		if cur.ConnID != id {
			out = append(out, cur)
		}
	}
	return out
}

func (ms *Meetings) Leave(meetingID string, id ConnID) (Departure, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.leaveLocked(meetingID, id)
}

func (ms *Meetings) leaveLocked(meetingID string, id ConnID) (Departure, bool) {
	members := ms.live[meetingID]
	idx := -1
	for i, cur := range members {
		if cur.ConnID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Departure{}, false
	}

	left := members[idx]
	rest := make([]MeetingMember, 0, len(members)-1)
	rest = append(rest, members[:idx]...)
	rest = append(rest, members[idx+1:]...)
	if len(rest) == 0 {
		delete(ms.live, meetingID)
	} else {
		ms.live[meetingID] = rest
	}

	if set, ok := ms.byConn[id]; ok {
		delete(set, meetingID)
		if len(set) == 0 {
			delete(ms.byConn, id)
		}
	}

	d := Departure{MeetingID: meetingID, Member: left, Remaining: append([]MeetingMember(nil), rest...)}
	for _, cur := range rest {
		if cur.Identity.ID == left.Identity.ID {
			d.IdentityRemains = true
			break
		}
	}
	return d, true
}

// LeaveAll removes the connection from every meeting it is in.
func (ms *Meetings) LeaveAll(id ConnID) []Departure {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := make([]string, 0, len(ms.byConn[id]))
	for meetingID := range ms.byConn[id] {
		ids = append(ids, meetingID)
	}

	out := make([]Departure, 0, len(ids))
	for _, meetingID := range ids {
		if d, ok := ms.leaveLocked(meetingID, id); ok {
			out = append(out, d)
		}
	}
	return out
}

// End marks the meeting as ended and returns the members that were in it.
// Later joins fail with domain.ErrMeetingEnded.
func (ms *Meetings) End(meetingID string) []MeetingMember {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for id, at := range ms.ended {
		if now.Sub(at) > ms.retention {
			delete(ms.ended, id)
		}
	}
	ms.ended[meetingID] = now

	members := ms.live[meetingID]
	delete(ms.live, meetingID)
	for _, m := range members {
		if set, ok := ms.byConn[m.ConnID]; ok {
			delete(set, meetingID)
			if len(set) == 0 {
				delete(ms.byConn, m.ConnID)
			}
		}
	}
	return members
}

func (ms *Meetings) IsEnded(meetingID string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.ended[meetingID]
	return ok
}

func (ms *Meetings) Members(meetingID string) []MeetingMember {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]MeetingMember(nil), ms.live[meetingID]...)
}

// HasIdentity reports whether any connection of user is live in the meeting.
func (ms *Meetings) HasIdentity(meetingID string, user domain.UserID) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return lo.ContainsBy(ms.live[meetingID], func(m MeetingMember) bool { return m.Identity.ID == user })
}

func (ms *Meetings) Member(meetingID string, id ConnID) (MeetingMember, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, cur := range ms.live[meetingID] {
		if cur.ConnID == id {
			return cur, true
		}
	}
	return MeetingMember{}, false
}

// SetMedia applies fn to the member's media state and returns the result.
func (ms *Meetings) SetMedia(meetingID string, id ConnID, fn func(*MediaState)) (MediaState, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	members := ms.live[meetingID]
	for i := range members {
		if members[i].ConnID == id {
			fn(&members[i].Media)
			return members[i].Media, true
		}
	}
	return MediaState{}, false
}
