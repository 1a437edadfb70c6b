package presence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/domain"
	"client_go/internal/presence"
)

type frame struct {
	conversationID int64
	typing         bool
}

type publisher struct {
	mu     sync.Mutex
	frames []frame
}

func (p *publisher) PublishTyping(_ context.Context, conversationID int64, typing bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame{conversationID, typing})
	return nil
}

func (p *publisher) snapshot() []frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]frame(nil), p.frames...)
}

const (
	idle    = 2 * time.Second
	refresh = 3 * time.Second
)

func newBroadcaster() (*presence.Broadcaster, *publisher, *clock.Mock) {
	pub := &publisher{}
	clk := clock.NewMock()
	return presence.NewBroadcaster(pub, clk, idle, refresh, zerolog.Nop()), pub, clk
}

func TestBroadcasterLeadingEdgeAndIdleStop(t *testing.T) {
	b, pub, clk := newBroadcaster()
	ctx := context.Background()

	b.OnLocalContentChange(ctx, 7, "h")
	assert.Equal(t, []frame{{7, true}}, pub.snapshot(), "start is published on the first keystroke")

	for _, text := range []string{"he", "hel", "hell"} {
		clk.Add(500 * time.Millisecond)
		b.OnLocalContentChange(ctx, 7, text)
	}
	assert.Equal(t, []frame{{7, true}}, pub.snapshot(), "keystrokes inside the idle window publish nothing")

	clk.Add(idle)
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, frame{7, false}, pub.snapshot()[1])
	assert.False(t, b.Typing())

	// No second stop for the same idle period.
	clk.Add(10 * idle)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pub.snapshot(), 2)
}

func TestBroadcasterStopsWhenEmptied(t *testing.T) {
	b, pub, clk := newBroadcaster()
	ctx := context.Background()

	b.OnLocalContentChange(ctx, 7, "hi")
	b.OnLocalContentChange(ctx, 7, "")
	assert.Equal(t, []frame{{7, true}, {7, false}}, pub.snapshot())

	// The idle timer of the emptied period must not fire a second stop.
	clk.Add(2 * idle)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pub.snapshot(), 2)

	// Emptying an already empty composer publishes nothing.
	b.OnLocalContentChange(ctx, 7, "   ")
	assert.Len(t, pub.snapshot(), 2)
}

func TestBroadcasterRefreshesDuringLongBursts(t *testing.T) {
	b, pub, clk := newBroadcaster()
	ctx := context.Background()

	b.OnLocalContentChange(ctx, 7, "a")
	text := "a"
	// Gaps stay below the idle timeout; refreshes are due at 3.5s and 7s.
	for _, gap := range []time.Duration{1000, 1000, 1500, 1000, 1000, 1500} {
		clk.Add(gap * time.Millisecond)
		text += "a"
		b.OnLocalContentChange(ctx, 7, text)
	}
	assert.Equal(t, []frame{{7, true}, {7, true}, {7, true}}, pub.snapshot())
}

func TestBroadcasterSwitchAndReset(t *testing.T) {
	b, pub, _ := newBroadcaster()
	ctx := context.Background()

	b.OnLocalContentChange(ctx, 7, "hi")
	b.OnLocalContentChange(ctx, 8, "yo")
	assert.Equal(t, []frame{{7, true}, {7, false}, {8, true}}, pub.snapshot())

	b.Reset(ctx)
	assert.Equal(t, frame{8, false}, pub.snapshot()[3])
	assert.False(t, b.Typing())

	b.Reset(ctx)
	assert.Len(t, pub.snapshot(), 4)
}

func TestTrackerSummary(t *testing.T) {
	clk := clock.NewMock()
	tr := presence.NewTracker(clk, 5*time.Second, 10)
	typing := func(id int64, name string) domain.TypingEvent {
		return domain.TypingEvent{UserID: id, Username: name, Typing: true}
	}

	assert.Equal(t, "", tr.Summary(7))

	assert.True(t, tr.Apply(7, typing(2, "bob")))
	assert.Equal(t, "bob is typing", tr.Summary(7))

	assert.False(t, tr.Apply(7, typing(10, "me")), "viewer is excluded")
	assert.Equal(t, []int64{2}, tr.TypingUsers(7))

	tr.Apply(7, typing(3, "carol"))
	assert.Equal(t, "bob and carol are typing", tr.Summary(7))

	tr.Apply(7, typing(4, "dave"))
	assert.Equal(t, "3 people are typing", tr.Summary(7))
	assert.Equal(t, "", tr.Summary(8))

	assert.True(t, tr.Apply(7, domain.TypingEvent{UserID: 4, Typing: false}))
	assert.Equal(t, []int64{2, 3}, tr.TypingUsers(7))

	tr.Leave(7, 3)
	assert.Equal(t, []int64{2}, tr.TypingUsers(7))
}

func TestTrackerExpiry(t *testing.T) {
	clk := clock.NewMock()
	tr := presence.NewTracker(clk, 5*time.Second, 10)

	tr.Apply(7, domain.TypingEvent{UserID: 2, Username: "bob", Typing: true})
	clk.Add(4 * time.Second)
	tr.Apply(7, domain.TypingEvent{UserID: 2, Typing: true})
	clk.Add(4 * time.Second)
	assert.Equal(t, "bob is typing", tr.Summary(7), "refresh extends the TTL and keeps the name")

	clk.Add(time.Second)
	assert.Empty(t, tr.TypingUsers(7))
}

func TestTrackerReset(t *testing.T) {
	tr := presence.NewTracker(clock.NewMock(), time.Minute, 10)
	tr.Apply(7, domain.TypingEvent{UserID: 2, Typing: true})
	tr.Apply(8, domain.TypingEvent{UserID: 3, Typing: true})

	tr.Reset(7)
	assert.Empty(t, tr.TypingUsers(7))
	assert.Len(t, tr.TypingUsers(8), 1)

	tr.Reset(0)
	assert.Empty(t, tr.TypingUsers(8))
}

func TestPresence(t *testing.T) {
	p := presence.NewPresence()
	p.Apply(0, domain.PresenceEvent{UserID: 3, Kind: domain.PresenceOnline})
	p.Apply(0, domain.PresenceEvent{UserID: 2, Kind: domain.PresenceOnline})
	assert.Equal(t, []int64{2, 3}, p.Online())
	assert.True(t, p.IsOnline(2))

	p.Apply(0, domain.PresenceEvent{UserID: 2, Kind: domain.PresenceOffline})
	assert.False(t, p.IsOnline(2))

	p.Apply(7, domain.PresenceEvent{UserID: 5, Kind: domain.PresenceJoin})
	assert.Equal(t, []int64{5}, p.Joined(7))
	p.Apply(7, domain.PresenceEvent{UserID: 5, Kind: domain.PresenceLeave})
	assert.Empty(t, p.Joined(7))

	p.Reset()
	assert.Empty(t, p.Online())
}
