package http_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/config"
	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/memstore"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
	"github.com/cwrk-planet/realtime-service/internal/security"
	"github.com/cwrk-planet/realtime-service/internal/service"
	httpt "github.com/cwrk-planet/realtime-service/internal/transport/http"

	"github.com/golang-jwt/jwt"
)

var secret = []byte("http-test-secret")

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memstore.New()
	for _, u := range []domain.UserID{"u1", "u2", "u3"} {
		store.PutUser(domain.Identity{ID: u, DisplayName: "name-" + string(u)})
	}
	store.PutConversation(domain.Conversation{ID: "c1", Participants: []domain.UserID{"u1", "u2"}})
	store.PutConversation(domain.Conversation{
		ID: "g1", IsGroup: true, GroupName: "team", AdminID: "u1",
		Participants: []domain.UserID{"u1", "u2", "u3"},
	})

	hub := registry.NewHub()
	typing := registry.NewTyping()
	meetings := service.NewMeetingService(hub, registry.NewMeetings(0), store, store)
	sessions := service.NewSessionService(hub, registry.NewPresence(), typing, meetings)
	auth := security.NewAuthenticator(security.NewHS256Verifier(secret, "", "", time.Minute), store)

	h := httpt.NewHandler(sessions, meetings, config.WebRTC{ICEServers: config.DefaultICEServers()}.PeerICEServers())
	srv := httptest.NewServer(httpt.NewRouter(httpt.RouterDeps{
		Handler: h,
		Auth:    auth,
		WS:      func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, security.AccessClaims{
		StandardClaims: jwt.StandardClaims{Subject: sub, ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestRouter_HealthAndWS(t *testing.T) {
	srv := newServer(t)

	if code := do(t, srv, http.MethodGet, "/healthz", "", nil); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code := do(t, srv, http.MethodGet, "/ws", "", nil); code != http.StatusTeapot {
		t.Fatalf("/ws not routed to the ws handler: %d", code)
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	srv := newServer(t)

	var e httpt.ErrorResponse
	if code := do(t, srv, http.MethodGet, "/api/users/online", "", &e); code != http.StatusUnauthorized {
		t.Fatalf("status = %d", code)
	}
	if e.Code != protocol.CodeUnauthorized {
		t.Fatalf("code = %q", e.Code)
	}
	if code := do(t, srv, http.MethodGet, "/api/users/online", "ghost", nil); code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d", code)
	}
}

func TestRouter_ICEServers(t *testing.T) {
	srv := newServer(t)

	var resp httpt.ICEServersResponse
	if code := do(t, srv, http.MethodGet, "/api/webrtc/ice-servers", "u1", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(resp.ICEServers) != 2 || resp.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("unexpected ice servers %+v", resp.ICEServers)
	}
}

func TestRouter_MeetingLifecycle(t *testing.T) {
	srv := newServer(t)

	var m httpt.MeetingItem
	if code := do(t, srv, http.MethodPost, "/api/conversations/c1/meetings", "u2", &m); code != http.StatusCreated {
		t.Fatalf("start = %d", code)
	}
	if !m.Live || m.ConversationID != "c1" || m.CreatedBy != "u2" {
		t.Fatalf("unexpected meeting %+v", m)
	}

	var again httpt.MeetingItem
	if code := do(t, srv, http.MethodPost, "/api/conversations/c1/meetings", "u1", &again); code != http.StatusOK {
		t.Fatalf("second start = %d", code)
	}
	if again.MeetingID != m.MeetingID {
		t.Fatalf("second start created %q, want %q", again.MeetingID, m.MeetingID)
	}

	var parts httpt.ParticipantsResponse
	if code := do(t, srv, http.MethodGet, "/api/meetings/"+m.MeetingID+"/participants", "u1", &parts); code != http.StatusOK {
		t.Fatalf("participants = %d", code)
	}
	if len(parts.Items) != 0 {
		t.Fatalf("no sockets joined, got %d members", len(parts.Items))
	}
	if code := do(t, srv, http.MethodGet, "/api/meetings/"+m.MeetingID+"/participants", "u3", nil); code != http.StatusForbidden {
		t.Fatalf("outsider participants = %d", code)
	}

	if code := do(t, srv, http.MethodPost, "/api/meetings/"+m.MeetingID+"/end", "u1", nil); code != http.StatusForbidden {
		t.Fatalf("end by non-creator in 1:1 = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/api/meetings/"+m.MeetingID+"/end", "u2", nil); code != http.StatusOK {
		t.Fatalf("end = %d", code)
	}

	var e httpt.ErrorResponse
	if code := do(t, srv, http.MethodPost, "/api/meetings/"+m.MeetingID+"/end", "u2", &e); code != http.StatusConflict {
		t.Fatalf("second end = %d", code)
	}
	if e.Code != protocol.CodeEnded {
		t.Fatalf("second end code = %q", e.Code)
	}
}

func TestRouter_GroupMeetingNeedsAdmin(t *testing.T) {
	srv := newServer(t)

	if code := do(t, srv, http.MethodPost, "/api/conversations/g1/meetings", "u2", nil); code != http.StatusForbidden {
		t.Fatalf("non-admin start = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/api/conversations/nope/meetings", "u1", nil); code != http.StatusNotFound {
		t.Fatalf("unknown conversation = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/api/conversations/g1/meetings", "u1", nil); code != http.StatusCreated {
		t.Fatalf("admin start = %d", code)
	}
}
