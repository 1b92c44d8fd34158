package http

import (
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"

	"github.com/pion/webrtc/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type OnlineResponse struct {
	Items []protocol.Presence `json:"items"`
}

type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type MeetingItem struct {
	MeetingID      string        `json:"meetingId"`
	ConversationID string        `json:"conversationId"`
	CreatedBy      domain.UserID `json:"createdBy"`
	Live           bool          `json:"live"`
	StartedAt      time.Time     `json:"startedAt"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
}

type ParticipantsResponse struct {
	MeetingID string            `json:"meetingId"`
	Items     []protocol.Member `json:"items"`
}

func meetingItem(m *domain.Meeting) MeetingItem {
	return MeetingItem{
		MeetingID:      m.ID,
		ConversationID: m.ConversationID,
		CreatedBy:      m.CreatedBy,
		Live:           m.Live,
		StartedAt:      m.StartedAt,
		EndedAt:        m.EndedAt,
	}
}
