package cache

import (
	"sync"

	"client_go/internal/domain"
)

// FetchToken identifies one in-flight page fetch. Its result is only applied
// if no cancellation happened for the conversation in between.
type FetchToken struct {
	ConversationID int64
	epoch          uint64
	generation     uint64
}

// Store is the single shared mutable resource of the client: every
// conversation's message cache plus the conversation list. All writes are
// read-modify-write callbacks executed under one lock, so merge functions
// never interleave.
type Store struct {
	mu            sync.Mutex
	messages      map[int64]MessageCache
	conversations ConversationList
	generations   map[int64]uint64
	epoch         uint64
	listeners     []func(conversationID int64)

	holds    map[int64]int
	deferred map[int64][]deferredCommit
}

type deferredCommit struct {
	token FetchToken
	fn    func(MessageCache) MessageCache
}

func NewStore() *Store {
	return &Store{
		messages:    make(map[int64]MessageCache),
		generations: make(map[int64]uint64),
		holds:       make(map[int64]int),
		deferred:    make(map[int64][]deferredCommit),
	}
}

// OnChange registers a listener called after a conversation's message cache
// changed. Listeners run outside the lock.
func (s *Store) OnChange(fn func(conversationID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Messages returns the current cache of a conversation.
func (s *Store) Messages(conversationID int64) MessageCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[conversationID]
}

// UpdateMessages atomically replaces a conversation's cache with fn's result.
func (s *Store) UpdateMessages(conversationID int64, fn func(MessageCache) MessageCache) MessageCache {
	s.mu.Lock()
	next := fn(s.messages[conversationID])
	s.messages[conversationID] = next
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(conversationID)
	}
	return next
}

// Conversations returns the current conversation list.
func (s *Store) Conversations() ConversationList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations
}

// UpdateConversations atomically replaces the conversation list with fn's result.
func (s *Store) UpdateConversations(fn func(ConversationList) ConversationList) ConversationList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = fn(s.conversations)
	return s.conversations
}

// UpdateBoth runs fn with both the conversation's message cache and the
// conversation list under one lock. Used when a realtime message must update
// the cache and the unread count without a window for redelivery to slip in.
func (s *Store) UpdateBoth(conversationID int64, fn func(MessageCache, ConversationList) (MessageCache, ConversationList)) {
	s.mu.Lock()
	msgs, convs := fn(s.messages[conversationID], s.conversations)
	s.messages[conversationID] = msgs
	s.conversations = convs
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(conversationID)
	}
}

// BeginFetch starts tracking a fetch for the conversation.
func (s *Store) BeginFetch(conversationID int64) FetchToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FetchToken{
		ConversationID: conversationID,
		epoch:          s.epoch,
		generation:     s.generations[conversationID],
	}
}

// CancelFetches invalidates every fetch begun for the conversation so far.
// Their results will be rejected by CommitFetch.
func (s *Store) CancelFetches(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[conversationID]++
}

// CommitFetch applies fn if the fetch was not cancelled since BeginFetch.
// While the conversation's fetches are held the commit is queued and the
// current cache is returned; it is applied when the hold is released.
func (s *Store) CommitFetch(t FetchToken, fn func(MessageCache) MessageCache) (MessageCache, error) {
	s.mu.Lock()
	if s.staleLocked(t) {
		cur := s.messages[t.ConversationID]
		s.mu.Unlock()
		return cur, domain.ErrStaleResult
	}
	if s.holds[t.ConversationID] > 0 {
		s.deferred[t.ConversationID] = append(s.deferred[t.ConversationID], deferredCommit{token: t, fn: fn})
		cur := s.messages[t.ConversationID]
		s.mu.Unlock()
		return cur, nil
	}
	next := fn(s.messages[t.ConversationID])
	s.messages[t.ConversationID] = next
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(t.ConversationID)
	}
	return next, nil
}

// HoldFetches pauses fetch commits for the conversation until the returned
// func is called. Holds nest. Commits queued meanwhile are applied in order
// on the last release unless the fetches were cancelled in between.
func (s *Store) HoldFetches(conversationID int64) (release func()) {
	s.mu.Lock()
	s.holds[conversationID]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.releaseHold(conversationID) })
	}
}

func (s *Store) releaseHold(conversationID int64) {
	s.mu.Lock()
	if n := s.holds[conversationID] - 1; n > 0 {
		s.holds[conversationID] = n
		s.mu.Unlock()
		return
	}
	delete(s.holds, conversationID)
	queued := s.deferred[conversationID]
	delete(s.deferred, conversationID)

	applied := false
	for _, d := range queued {
		if s.staleLocked(d.token) {
			continue
		}
		s.messages[conversationID] = d.fn(s.messages[conversationID])
		applied = true
	}
	listeners := s.listeners
	s.mu.Unlock()

	if !applied {
		return
	}
	for _, l := range listeners {
		l(conversationID)
	}
}

func (s *Store) staleLocked(t FetchToken) bool {
	return s.epoch != t.epoch || s.generations[t.ConversationID] != t.generation
}

// Reset drops all cached state. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[int64]MessageCache)
	s.conversations = nil
	s.deferred = make(map[int64][]deferredCommit)
	s.epoch++
}
