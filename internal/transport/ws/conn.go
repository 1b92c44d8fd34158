package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"

	"github.com/gorilla/websocket"
)

// wsConn is the registry view of one websocket. Only writeLoop writes to ws.
type wsConn struct {
	ws       *websocket.Conn
	id       registry.ConnID
	identity domain.Identity
	log      *slog.Logger

	send   chan []byte // не закрывается: конец сигналит closed
	closed chan struct{}
	once   sync.Once
}

func newWsConn(ws *websocket.Conn, identity domain.Identity, buffer int, log *slog.Logger) *wsConn {
	return &wsConn{
		ws:       ws,
		id:       registry.NewConnID(),
		identity: identity,
		log:      log,
		send:     make(chan []byte, buffer),
		closed:   make(chan struct{}),
	}
}

func (c *wsConn) ID() registry.ConnID       { return c.id }
func (c *wsConn) Identity() domain.Identity { return c.identity }

// Send queues ev without blocking. A full queue drops the event for this connection only.
func (c *wsConn) Send(ev protocol.Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("ws encode failed", "type", ev.Type, "err", err)
		return false
	}

	select {
	case c.send <- data:
		return true
	case <-c.closed:
		return false
	default:
		c.log.Warn("ws send queue full, event dropped", "type", ev.Type)
		return false
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}
