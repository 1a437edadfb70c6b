package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"client_go/internal/domain"
)

type typingEntry struct {
	username string
	expires  time.Time
}

// Tracker aggregates remote typing state per conversation. Entries expire
// after the TTL when no stop frame arrives. The viewer's own frames are
// ignored.
type Tracker struct {
	clock clock.Clock
	ttl   time.Duration

	mu       sync.Mutex
	viewerID int64
	typing   map[int64]map[int64]typingEntry
}

func NewTracker(clk clock.Clock, ttl time.Duration, viewerID int64) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		clock:    clk,
		ttl:      ttl,
		viewerID: viewerID,
		typing:   make(map[int64]map[int64]typingEntry),
	}
}

// SetViewer changes whose frames are ignored, e.g. after a re-login.
func (t *Tracker) SetViewer(viewerID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.viewerID = viewerID
}

// Apply records a typing frame and reports whether the set of typing users
// changed.
func (t *Tracker) Apply(conversationID int64, ev domain.TypingEvent) bool {
	if conversationID == 0 || ev.UserID == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.UserID == t.viewerID {
		return false
	}

	users := t.typing[conversationID]
	_, had := users[ev.UserID]
	if !ev.Typing {
		if !had {
			return false
		}
		delete(users, ev.UserID)
		if len(users) == 0 {
			delete(t.typing, conversationID)
		}
		return true
	}
	if users == nil {
		users = make(map[int64]typingEntry)
		t.typing[conversationID] = users
	}
	username := ev.Username
	if username == "" && had {
		username = users[ev.UserID].username
	}
	users[ev.UserID] = typingEntry{username: username, expires: t.clock.Now().Add(t.ttl)}
	return !had
}

// Leave forgets a user who left the conversation or went offline.
func (t *Tracker) Leave(conversationID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID == 0 {
		for id, users := range t.typing {
			delete(users, userID)
			if len(users) == 0 {
				delete(t.typing, id)
			}
		}
		return
	}
	if users, ok := t.typing[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, conversationID)
		}
	}
}

// TypingUsers returns the ids of users currently typing, ordered by id.
func (t *Tracker) TypingUsers(conversationID int64) []int64 {
	entries := t.live(conversationID)
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Summary renders the typing indicator line, or "" when nobody types.
func (t *Tracker) Summary(conversationID int64) string {
	entries := t.live(conversationID)
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", entries[0].name)
	case 2:
		return fmt.Sprintf("%s and %s are typing", entries[0].name, entries[1].name)
	}
	return fmt.Sprintf("%d people are typing", len(entries))
}

// Reset clears one conversation, or every conversation when id is 0.
func (t *Tracker) Reset(conversationID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID == 0 {
		t.typing = make(map[int64]map[int64]typingEntry)
		return
	}
	delete(t.typing, conversationID)
}

type liveEntry struct {
	id   int64
	name string
}

// live prunes expired entries and returns the rest ordered by user id.
func (t *Tracker) live(conversationID int64) []liveEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	users := t.typing[conversationID]
	out := make([]liveEntry, 0, len(users))
	for id, e := range users {
		if !now.Before(e.expires) {
			delete(users, id)
			continue
		}
		name := e.username
		if name == "" {
			name = fmt.Sprintf("user %d", id)
		}
		out = append(out, liveEntry{id: id, name: name})
	}
	if users != nil && len(users) == 0 {
		delete(t.typing, conversationID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
