package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Meeting struct {
	ID             string
	ConversationID string
	CreatedBy      UserID
	Live           bool
	StartedAt      time.Time
	EndedAt        *time.Time
	Participants   []ParticipantRecord
}

// ParticipantRecord logs one join of an identity; LeftAt is set at most once.
type ParticipantRecord struct {
	UserID   UserID
	JoinedAt time.Time
	LeftAt   *time.Time
}

func (r ParticipantRecord) Open() bool { return r.LeftAt == nil }

// OpenRecord returns the index of the identity's open record or -1.
func (m *Meeting) OpenRecord(id UserID) int {
	for i, p := range m.Participants {
		if p.UserID == id && p.Open() {
			return i
		}
	}
	return -1
}

const meetingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// meetingCodeLimit is the largest multiple of the alphabet size not above 256.
const meetingCodeLimit = 256 / len(meetingCodeAlphabet) * len(meetingCodeAlphabet)

// NewMeetingID returns a readable code like "K3D-9QZ-A1B". Characters are
// drawn uniformly from the uuid's random bytes.
func NewMeetingID() string {
	var b strings.Builder
	n := 0
	for n < 9 {
		raw := uuid.New()
		for i, v := range raw {
			// байты 6 и 8 несут версию и вариант
			if i == 6 || i == 8 || int(v) >= meetingCodeLimit {
				continue
			}
			if n > 0 && n%3 == 0 {
				b.WriteByte('-')
			}
			b.WriteByte(meetingCodeAlphabet[int(v)%len(meetingCodeAlphabet)])
			n++
			if n == 9 {
				break
			}
		}
	}
	return b.String()
}
