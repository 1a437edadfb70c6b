package chat

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"client_go/internal/compose"
	"client_go/internal/domain"
	"client_go/internal/presence"
	"client_go/internal/viewport"
)

// State is the UI state shared by the client's components. It is created
// once at the application root and reset on logout. Each concern is reached
// through its own narrow accessor.
type State struct {
	mu     sync.RWMutex
	active int64
	viewer domain.UserSummary

	ledger *viewport.Ledger
	typing *presence.Tracker
	drafts *compose.Drafts
}

func NewState(viewer domain.UserSummary, clk clock.Clock, typingTTL time.Duration) *State {
	return &State{
		viewer: viewer,
		ledger: viewport.NewLedger(),
		typing: presence.NewTracker(clk, typingTTL, viewer.ID),
		drafts: compose.NewDrafts(),
	}
}

// ActiveConversation returns the id of the open conversation, 0 if none.
func (s *State) ActiveConversation() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveConversation makes id the open conversation and returns the
// previous one.
func (s *State) SetActiveConversation(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.active = id
	return prev
}

func (s *State) Viewer() domain.UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

// SetViewer switches the signed-in user.
func (s *State) SetViewer(u domain.UserSummary) {
	s.mu.Lock()
	s.viewer = u
	s.mu.Unlock()
	s.typing.SetViewer(u.ID)
}

// Ledger is the per-conversation scroll position store.
func (s *State) Ledger() *viewport.Ledger { return s.ledger }

// Typing is the remote typing indicator state.
func (s *State) Typing() *presence.Tracker { return s.typing }

// Drafts is the composer text per conversation.
func (s *State) Drafts() *compose.Drafts { return s.drafts }

// Reset clears everything tied to the signed-in session.
func (s *State) Reset() {
	s.mu.Lock()
	s.active = 0
	s.viewer = domain.UserSummary{}
	s.mu.Unlock()

	s.ledger.Reset()
	s.typing.Reset(0)
	s.typing.SetViewer(0)
	s.drafts.Reset()
}
