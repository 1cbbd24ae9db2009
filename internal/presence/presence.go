// Package presence tracks which users are currently online, as pushed
// by the server. Read-only to the rest of the client.
package presence

import (
	"encoding/json"
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/nandovm/chatcore/internal/model/chat"
)

// EventSource is the subscription surface of the push channel.
type EventSource interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
}

// Tracker keeps the set of currently online user ids.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]struct{})}
}

// Bind subscribes the tracker to the onlineUsers push event.
func (t *Tracker) Bind(source EventSource) {
	source.On(chat.EventOnlineUsers, func(data json.RawMessage) {
		var ev chat.OnlineUsersEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			jww.WARN.Printf("[presence] dropping malformed onlineUsers: %v", err)
			return
		}
		t.Set(ev.UserIDs)
	})
}

// Set replaces the online set.
func (t *Tracker) Set(userIDs []string) {
	next := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		next[id] = struct{}{}
	}
	t.mu.Lock()
	t.online = next
	t.mu.Unlock()
}

// Online reports whether a user is currently online.
func (t *Tracker) Online(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// Snapshot returns the sorted online set.
func (t *Tracker) Snapshot() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}
