package presence

import (
	"sort"
	"sync"

	"client_go/internal/domain"
)

// Presence is the set of users known to be online, plus per-conversation
// membership changes seen over the realtime stream.
type Presence struct {
	mu      sync.Mutex
	online  map[int64]string
	members map[int64]map[int64]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		online:  make(map[int64]string),
		members: make(map[int64]map[int64]struct{}),
	}
}

// Apply records a presence frame. conversationID is 0 for frames that are
// not scoped to a conversation.
func (p *Presence) Apply(conversationID int64, ev domain.PresenceEvent) {
	if ev.UserID == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case domain.PresenceOnline:
		p.online[ev.UserID] = ev.Username
	case domain.PresenceOffline:
		delete(p.online, ev.UserID)
	case domain.PresenceJoin:
		if conversationID == 0 {
			return
		}
		if p.members[conversationID] == nil {
			p.members[conversationID] = make(map[int64]struct{})
		}
		p.members[conversationID][ev.UserID] = struct{}{}
	case domain.PresenceLeave:
		if members, ok := p.members[conversationID]; ok {
			delete(members, ev.UserID)
		}
	}
}

func (p *Presence) IsOnline(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[userID]
	return ok
}

// Online returns the online user ids in ascending order.
func (p *Presence) Online() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Joined returns users seen joining the conversation and not leaving since.
func (p *Presence) Joined(conversationID int64) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.members[conversationID]))
	for id := range p.members[conversationID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[int64]string)
	p.members = make(map[int64]map[int64]struct{})
}
