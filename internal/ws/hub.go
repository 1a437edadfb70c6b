package ws

import (
	"sync"

	"client_go/internal/domain"
)

// Hub routes decoded events to the sinks registered for their conversation.
// A conversation may have several sinks, e.g. the active view and a
// notification badge.
type Hub struct {
	mu     sync.RWMutex
	sinks  map[int64]map[uint64]domain.EventSink
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{
		sinks: make(map[int64]map[uint64]domain.EventSink),
	}
}

// Register adds a sink for the given conversation and returns its handle.
func (h *Hub) Register(conversationID int64, sink domain.EventSink) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if h.sinks[conversationID] == nil {
		h.sinks[conversationID] = make(map[uint64]domain.EventSink)
	}
	h.sinks[conversationID][h.nextID] = sink
	return h.nextID
}

// Unregister removes a sink.
func (h *Hub) Unregister(conversationID int64, handle uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sinks, ok := h.sinks[conversationID]; ok {
		delete(sinks, handle)
		if len(sinks) == 0 {
			delete(h.sinks, conversationID)
		}
	}
}

// Deliver sends ev to every sink of the conversation. Sinks run outside the
// lock so they may register or unregister.
func (h *Hub) Deliver(conversationID int64, ev domain.Event) int {
	h.mu.RLock()
	targets := make([]domain.EventSink, 0, len(h.sinks[conversationID]))
	for _, sink := range h.sinks[conversationID] {
		targets = append(targets, sink)
	}
	h.mu.RUnlock()

	for _, sink := range targets {
		sink(ev)
	}
	return len(targets)
}

// BroadcastAll sends ev to every registered sink. Used for presence frames
// that are not scoped to a conversation.
func (h *Hub) BroadcastAll(ev domain.Event) int {
	h.mu.RLock()
	var targets []domain.EventSink
	for _, sinks := range h.sinks {
		for _, sink := range sinks {
			targets = append(targets, sink)
		}
	}
	h.mu.RUnlock()

	for _, sink := range targets {
		sink(ev)
	}
	return len(targets)
}

// Len returns the number of conversations with at least one sink.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}
