package registry

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/samber/lo"
)

// Presence maps an identity to its open connections. An identity is online
// while it has at least one.
type Presence struct {
	mu    sync.Mutex
	conns map[domain.UserID]map[ConnID]struct{}
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[domain.UserID]map[ConnID]struct{})}
}

// Register reports whether this was the identity's first connection.
func (p *Presence) Register(user domain.UserID, id ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[user]
	if !ok {
		set = make(map[ConnID]struct{})
		p.conns[user] = set
	}
	if _, dup := set[id]; dup {
		return false
	}
	set[id] = struct{}{}
	return len(set) == 1
}

// Unregister reports whether the identity went offline with this call.
func (p *Presence) Unregister(user domain.UserID, id ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[user]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) > 0 {
		return false
	}
	delete(p.conns, user)
	return true
}

func (p *Presence) IsOnline(user domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns[user]) > 0
}

func (p *Presence) ListOnline() []domain.UserID {
	p.mu.Lock()
	out := lo.Keys(p.conns)
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Presence) Connections(user domain.UserID) []ConnID {
	p.mu.Lock()
	out := lo.Keys(p.conns[user])
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
