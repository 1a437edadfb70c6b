// Package notify holds transient, dismissable user notifications.
package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Toast is one transient notification.
type Toast struct {
	ID             string    `json:"id"`
	Level          Level     `json:"level"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// Notifier surfaces errors to the user.
type Notifier interface {
	Error(conversationID int64, message string)
}

// Toasts keeps notifications until they are dismissed or expire.
type Toasts struct {
	mu    sync.Mutex
	items []Toast
	ttl   time.Duration
	clock clock.Clock
	log   zerolog.Logger
}

var _ Notifier = (*Toasts)(nil)

func NewToasts(clk clock.Clock, ttl time.Duration, log zerolog.Logger) *Toasts {
	if clk == nil {
		clk = clock.New()
	}
	return &Toasts{
		ttl:   ttl,
		clock: clk,
		log:   log.With().Str("component", "toasts").Logger(),
	}
}

// Push adds a toast and returns it.
func (t *Toasts) Push(level Level, conversationID int64, message string) Toast {
	toast := Toast{
		ID:             uuid.NewString(),
		Level:          level,
		ConversationID: conversationID,
		Message:        message,
		CreatedAt:      t.clock.Now(),
	}
	t.mu.Lock()
	t.items = append(t.items, toast)
	t.mu.Unlock()

	t.log.Debug().Str("toast_id", toast.ID).Str("level", string(level)).Msg(message)
	return toast
}

func (t *Toasts) Error(conversationID int64, message string) {
	t.Push(LevelError, conversationID, message)
}

// Dismiss removes a toast by id.
func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, item := range t.items {
		if item.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns toasts that are neither dismissed nor expired, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	kept := t.items[:0]
	for _, item := range t.items {
		if t.ttl > 0 && now.Sub(item.CreatedAt) >= t.ttl {
			continue
		}
		kept = append(kept, item)
	}
	t.items = kept
	return append([]Toast(nil), kept...)
}

// Reset drops every toast.
func (t *Toasts) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
}
