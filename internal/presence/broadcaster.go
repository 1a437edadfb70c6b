// Package presence throttles the viewer's typing notifications and
// aggregates typing and online state of other users.
package presence

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"client_go/internal/domain"
)

// Broadcaster turns composer keystrokes into typing start/stop frames.
//
// The first non-empty keystroke publishes "started" immediately. Every
// keystroke re-arms an idle timer; when it fires, or when the composer is
// emptied, "stopped" is published. At most one stop goes out per typing
// period. During long bursts a "started" refresh is re-sent no more often
// than the refresh interval so remote TTLs do not expire.
type Broadcaster struct {
	pub     domain.TypingPublisher
	clock   clock.Clock
	idle    time.Duration
	limiter *rate.Limiter
	log     zerolog.Logger

	mu             sync.Mutex
	conversationID int64
	typing         bool
	timer          *clock.Timer
	period         uint64
}

func NewBroadcaster(pub domain.TypingPublisher, clk clock.Clock, idle, refresh time.Duration, log zerolog.Logger) *Broadcaster {
	if clk == nil {
		clk = clock.New()
	}
	return &Broadcaster{
		pub:     pub,
		clock:   clk,
		idle:    idle,
		limiter: rate.NewLimiter(rate.Every(refresh), 1),
		log:     log.With().Str("component", "typing").Logger(),
	}
}

// OnLocalContentChange is called with the full composer text after every
// edit.
func (b *Broadcaster) OnLocalContentChange(ctx context.Context, conversationID int64, text string) {
	b.mu.Lock()
	var stopPrev int64
	if b.typing && b.conversationID != conversationID {
		stopPrev = b.conversationID
		b.stopLocked()
	}
	b.conversationID = conversationID

	if strings.TrimSpace(text) == "" {
		wasTyping := b.typing
		b.stopLocked()
		b.mu.Unlock()
		if stopPrev != 0 {
			b.publish(ctx, stopPrev, false)
		}
		if wasTyping {
			b.publish(ctx, conversationID, false)
		}
		return
	}

	now := b.clock.Now()
	start := !b.typing
	refresh := false
	if start {
		b.typing = true
		b.limiter.AllowN(now, 1)
	} else {
		refresh = b.limiter.AllowN(now, 1)
	}
	b.armLocked(conversationID)
	b.mu.Unlock()

	if stopPrev != 0 {
		b.publish(ctx, stopPrev, false)
	}
	if start || refresh {
		b.publish(ctx, conversationID, true)
	}
}

// Reset drops the typing state, e.g. on a conversation switch. A pending
// stop is published for the conversation being left.
func (b *Broadcaster) Reset(ctx context.Context) {
	b.mu.Lock()
	wasTyping, conversationID := b.typing, b.conversationID
	b.stopLocked()
	b.conversationID = 0
	b.mu.Unlock()

	if wasTyping && conversationID != 0 {
		b.publish(ctx, conversationID, false)
	}
}

// Typing reports whether a start has been published without its stop.
func (b *Broadcaster) Typing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typing
}

func (b *Broadcaster) armLocked(conversationID int64) {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.period++
	period := b.period
	b.timer = b.clock.AfterFunc(b.idle, func() {
		b.expire(conversationID, period)
	})
}

func (b *Broadcaster) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.period++
	b.typing = false
}

func (b *Broadcaster) expire(conversationID int64, period uint64) {
	b.mu.Lock()
	if period != b.period || !b.typing {
		b.mu.Unlock()
		return
	}
	b.typing = false
	b.timer = nil
	b.mu.Unlock()

	b.publish(context.Background(), conversationID, false)
}

func (b *Broadcaster) publish(ctx context.Context, conversationID int64, typing bool) {
	if b.pub == nil {
		return
	}
	if err := b.pub.PublishTyping(ctx, conversationID, typing); err != nil {
		b.log.Debug().Err(err).Int64("conversation_id", conversationID).Bool("typing", typing).Msg("publish typing failed")
	}
}
