package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	httpmw "github.com/cwrk-planet/realtime-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/pion/webrtc/v4"
)

type Sessions interface {
	Online() []protocol.Presence
}

type Meetings interface {
	StartMeeting(ctx context.Context, user domain.Identity, conversationID string) (*domain.Meeting, bool, error)
	EndMeeting(ctx context.Context, user domain.Identity, meetingID string) error
	Participants(ctx context.Context, user domain.Identity, meetingID string) ([]protocol.Member, error)
}

type Handler struct {
	sessions   Sessions
	meetings   Meetings
	iceServers []webrtc.ICEServer
}

func NewHandler(sessions Sessions, meetings Meetings, iceServers []webrtc.ICEServer) *Handler {
	return &Handler{
		sessions:   sessions,
		meetings:   meetings,
		iceServers: iceServers,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto statuses; internal details are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := protocol.ErrorFor(err)
	status := statusFor(e.Code)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("handler."+op, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: e.Message, Code: e.Code})
}

func statusFor(code string) int {
	switch code {
	case protocol.CodeUnauthorized:
		return http.StatusUnauthorized
	case protocol.CodeForbidden:
		return http.StatusForbidden
	case protocol.CodeInvalid:
		return http.StatusBadRequest
	case protocol.CodeNotFound:
		return http.StatusNotFound
	case protocol.CodeConflict, protocol.CodeEnded:
		return http.StatusConflict
	case protocol.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := httpmw.IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication error", Code: protocol.CodeUnauthorized})
	}
	return id, ok
}

// GET /api/users/online
func (h *Handler) ListOnline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OnlineResponse{Items: h.sessions.Online()})
}

// GET /api/webrtc/ice-servers
func (h *Handler) ICEServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ICEServersResponse{ICEServers: h.iceServers})
}

// POST /api/conversations/{id}/meetings
// 201 для новой встречи, 200 если в беседе уже идёт встреча.
func (h *Handler) StartMeeting(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(w, r)
	if !ok {
		return
	}

	m, created, err := h.meetings.StartMeeting(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "StartMeeting", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, meetingItem(m))
}

// POST /api/meetings/{id}/end
func (h *Handler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.meetings.EndMeeting(r.Context(), user, id); err != nil {
		writeError(w, r, "EndMeeting", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"meetingId": id, "status": "ended"})
}

// GET /api/meetings/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	items, err := h.meetings.Participants(r.Context(), user, id)
	if err != nil {
		writeError(w, r, "GetParticipants", err)
		return
	}
	writeJSON(w, http.StatusOK, ParticipantsResponse{MeetingID: id, Items: items})
}
