// Package realtime manages one realtime subscription per conversation.
//
// A conversation moves Unsubscribed → Subscribing → Subscribed and back to
// Unsubscribed on teardown or failure. At most one underlying subscribe call
// is made while a conversation is Subscribing or Subscribed, and events
// delivered to a subscription that has since been torn down are dropped.
package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"client_go/internal/domain"
	"client_go/internal/metrics"
)

type SubState int

const (
	Unsubscribed SubState = iota
	Subscribing
	Subscribed
)

func (s SubState) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	}
	return "unsubscribed"
}

type entry struct {
	id    uint64
	state SubState
	sub   domain.Subscription
}

// Manager owns every realtime subscription of the client.
type Manager struct {
	transport domain.Transport
	log       zerolog.Logger

	mu     sync.Mutex
	subs   map[int64]*entry
	nextID uint64

	closing sync.WaitGroup
}

func NewManager(transport domain.Transport, log zerolog.Logger) *Manager {
	return &Manager{
		transport: transport,
		log:       log.With().Str("component", "realtime").Logger(),
		subs:      make(map[int64]*entry),
	}
}

// EnsureSubscribed subscribes to the conversation unless a subscription is
// already in place or in progress. A failed subscribe leaves the
// conversation Unsubscribed so a later call can try again; it is not retried
// automatically.
func (m *Manager) EnsureSubscribed(ctx context.Context, conversationID int64, h Handlers) error {
	if conversationID == 0 {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	if e, ok := m.subs[conversationID]; ok && e.state != Unsubscribed {
		m.mu.Unlock()
		return nil
	}
	m.nextID++
	e := &entry{id: m.nextID, state: Subscribing}
	m.subs[conversationID] = e
	m.mu.Unlock()

	sink := func(ev domain.Event) {
		m.deliver(conversationID, e.id, h, ev)
	}
	sub, err := m.transport.Subscribe(ctx, conversationID, sink)

	m.mu.Lock()
	current := m.subs[conversationID] == e
	if err != nil {
		if current {
			delete(m.subs, conversationID)
		}
		m.mu.Unlock()
		metrics.SubscriptionFailures.Inc()
		m.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("subscribe failed")
		return fmt.Errorf("subscribe conversation %d: %w", conversationID, err)
	}
	if !current {
		// Torn down while the subscribe was in flight.
		m.mu.Unlock()
		if cerr := sub.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Int64("conversation_id", conversationID).Msg("closing late subscription failed")
		}
		return nil
	}
	e.state = Subscribed
	e.sub = sub
	m.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	m.log.Debug().Int64("conversation_id", conversationID).Msg("subscribed")
	return nil
}

// Teardown closes the conversation's subscription and waits for the close.
func (m *Manager) Teardown(conversationID int64) error {
	e := m.detach(conversationID)
	if e == nil {
		return nil
	}
	return m.closeEntry(conversationID, e)
}

// Switch moves the realtime focus from prev to next. The teardown of prev
// is started before subscribing to next but not awaited; its failure is
// only logged.
func (m *Manager) Switch(ctx context.Context, prev, next int64, h Handlers) error {
	if prev != 0 && prev != next {
		if e := m.detach(prev); e != nil {
			m.closing.Add(1)
			go func() {
				defer m.closing.Done()
				if err := m.closeEntry(prev, e); err != nil {
					m.log.Warn().Err(err).Int64("conversation_id", prev).Msg("teardown failed")
				}
			}()
		}
	}
	if next == 0 {
		return nil
	}
	return m.EnsureSubscribed(ctx, next, h)
}

// State returns the subscription state of the conversation.
func (m *Manager) State(conversationID int64) SubState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.subs[conversationID]; ok {
		return e.state
	}
	return Unsubscribed
}

// States returns the state of every tracked conversation, ordered by id.
func (m *Manager) States() []ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConversationState, 0, len(m.subs))
	for id, e := range m.subs {
		out = append(out, ConversationState{ConversationID: id, State: e.state.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out
}

type ConversationState struct {
	ConversationID int64  `json:"conversation_id"`
	State          string `json:"state"`
}

// Close tears down every subscription and waits for pending teardowns.
func (m *Manager) Close() error {
	m.mu.Lock()
	all := m.subs
	m.subs = make(map[int64]*entry)
	m.mu.Unlock()

	var firstErr error
	for id, e := range all {
		if err := m.closeEntry(id, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closing.Wait()
	return firstErr
}

func (m *Manager) detach(conversationID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.subs[conversationID]
	if !ok {
		return nil
	}
	delete(m.subs, conversationID)
	return e
}

// closeEntry closes a detached entry. An entry still Subscribing has no
// subscription yet; EnsureSubscribed closes it once it arrives.
func (m *Manager) closeEntry(conversationID int64, e *entry) error {
	if e.state != Subscribed || e.sub == nil {
		return nil
	}
	metrics.ActiveSubscriptions.Dec()
	if err := e.sub.Close(); err != nil {
		return fmt.Errorf("close subscription %d: %w", conversationID, err)
	}
	m.log.Debug().Int64("conversation_id", conversationID).Msg("unsubscribed")
	return nil
}

func (m *Manager) deliver(conversationID int64, entryID uint64, h Handlers, ev domain.Event) {
	m.mu.Lock()
	e, ok := m.subs[conversationID]
	live := ok && e.id == entryID
	m.mu.Unlock()

	if !live {
		metrics.RecordStale("realtime")
		m.log.Debug().
			Int64("conversation_id", conversationID).
			Str("type", string(ev.Type)).
			Msg("dropping event for inactive subscription")
		return
	}
	if ev.ConversationID != 0 && ev.ConversationID != conversationID {
		return
	}
	Dispatch(h, ev)
}
