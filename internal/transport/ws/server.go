package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
	"github.com/cwrk-planet/realtime-service/internal/security"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.Identity, error)
}

type SessionSvc interface {
	Connect(ctx context.Context, c registry.Conn) error
	Disconnect(ctx context.Context, c registry.Conn)
}

type ChatSvc interface {
	JoinRoom(ctx context.Context, c registry.Conn, roomID string) error
	LeaveRoom(ctx context.Context, c registry.Conn, roomID string)
	SendMessage(ctx context.Context, c registry.Conn, in protocol.SendMessage) (*domain.Message, error)
	StartTyping(ctx context.Context, c registry.Conn, conversationID string)
	StopTyping(ctx context.Context, c registry.Conn, conversationID string)
	MarkRead(ctx context.Context, c registry.Conn, in protocol.MessageRead) error
}

type MeetingSvc interface {
	JoinMeeting(ctx context.Context, c registry.Conn, meetingID string) error
	LeaveMeeting(ctx context.Context, c registry.Conn, meetingID string)
	Relay(ctx context.Context, kind string, c registry.Conn, sig protocol.Signal) error
	MediaState(ctx context.Context, c registry.Conn, in protocol.MediaState)
	ScreenShare(ctx context.Context, c registry.Conn, in protocol.ScreenShare)
}

type Options struct {
	PingPeriod      time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	SendBuffer      int
	InboundBuffer   int
	EventsPerSecond float64
	EventBurst      int
	AllowedOrigins  []string
}

type Server struct {
	upgrader websocket.Upgrader
	auth     Authenticator
	sessions SessionSvc
	chat     ChatSvc
	meetings MeetingSvc
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(auth Authenticator, sessions SessionSvc, chat ChatSvc, meetings MeetingSvc, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		auth:     auth,
		sessions: sessions,
		chat:     chat,
		meetings: meetings,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(s.opts.AllowedOrigins, origin)
}

// WS endpoint: GET /ws?token=...
// Credentials are checked before the upgrade; a failed check is final.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	identity, err := s.auth.Authenticate(r.Context(), security.CredentialFromRequest(r))
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, domain.ErrUnauthenticated) {
			status = http.StatusServiceUnavailable
			log.Error("ws authenticate failed", "err", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(protocol.ErrorFor(err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, identity, s.opts.SendBuffer, log)
	c.log = log.With("conn", c.id, "user", identity.ID)

	s.wg.Add(1)
	defer s.wg.Done()
	s.serve(c)
}

func (s *Server) serve(c *wsConn) {
	ctx, cancel := context.WithCancel(logger.WithContext(s.ctx, c.log))
	defer cancel()

	if err := s.sessions.Connect(ctx, c); err != nil {
		c.log.Error("ws session connect failed", "err", err)
		c.close()
		return
	}
	c.log.Info("ws connected")

	inbound := make(chan protocol.Inbound, s.opts.InboundBuffer)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for in := range inbound {
			s.dispatch(ctx, c, in)
		}
	}()
	go s.writeLoop(ctx, c)

	s.readLoop(ctx, c, inbound)
	close(inbound)
	<-dispatched
	cancel()

	// контекст соединения уже отменён, уборке нужен свой
	dctx, dcancel := context.WithTimeout(logger.WithContext(context.Background(), c.log), 5*time.Second)
	defer dcancel()
	s.sessions.Disconnect(dctx, c)
	c.close()
	c.log.Info("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, inbound chan<- protocol.Inbound) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.EventsPerSecond), s.opts.EventBurst)
	wait := 2 * s.opts.PingPeriod

	c.ws.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))

		var in protocol.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			c.Send(protocol.Envelope{
				Type:    protocol.TypeRoomError,
				Payload: protocol.Error{Message: "malformed frame", Code: protocol.CodeInvalid},
			})
			continue
		}
		if !limiter.Allow() {
			c.Send(protocol.Envelope{
				Type:    errorTypeFor(in.Type),
				Payload: protocol.Error{Message: "too many events", Code: protocol.CodeRateLimited},
			})
			continue
		}

		select {
		case inbound <- in:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(s.opts.WriteWait))
			c.close()
			return
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("ws write failed", "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// Shutdown closes every connection and waits for their cleanup or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
