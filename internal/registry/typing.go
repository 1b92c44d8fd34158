package registry

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

type TypingEntry struct {
	ConversationID string
	UserID         domain.UserID
}

// Typing holds, per conversation, who is typing and from which connection.
type Typing struct {
	mu   sync.Mutex
	sets map[string]map[domain.UserID]ConnID
}

func NewTyping() *Typing {
	return &Typing{sets: make(map[string]map[domain.UserID]ConnID)}
}

// Start reports true only when the identity was not typing yet.
// A repeated start from another tab moves ownership to that connection.
func (t *Typing) Start(conversationID string, user domain.UserID, id ConnID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sets[conversationID]
	if !ok {
		set = make(map[domain.UserID]ConnID)
		t.sets[conversationID] = set
	}
	_, already := set[user]
	set[user] = id
	return !already
}

// Stop reports whether an entry was removed.
func (t *Typing) Stop(conversationID string, user domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sets[conversationID]
	if !ok {
		return false
	}
	if _, ok := set[user]; !ok {
		return false
	}
	delete(set, user)
	if len(set) == 0 {
		delete(t.sets, conversationID)
	}
	return true
}

// DropConn removes every entry owned by the connection.
func (t *Typing) DropConn(id ConnID) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []TypingEntry
	for conv, set := range t.sets {
		for user, owner := range set {
			if owner != id {
				continue
			}
			delete(set, user)
			out = append(out, TypingEntry{ConversationID: conv, UserID: user})
		}
		if len(set) == 0 {
			delete(t.sets, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConversationID != out[j].ConversationID {
			return out[i].ConversationID < out[j].ConversationID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (t *Typing) Typing(conversationID string) []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.UserID, 0, len(t.sets[conversationID]))
	for user := range t.sets[conversationID] {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
