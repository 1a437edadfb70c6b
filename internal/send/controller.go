package send

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"client_go/internal/cache"
	"client_go/internal/compose"
	"client_go/internal/domain"
	"client_go/internal/metrics"
	"client_go/internal/notify"
)

// MaxContentLength is the longest message the server accepts, in runes.
const MaxContentLength = 5000

const failedToast = "Message could not be sent. Your text was put back in the composer."

// Options carries the optional collaborators of a Controller.
type Options struct {
	Clock clock.Clock
	// NewID returns a fresh correlation id. Defaults to a random UUID.
	NewID func() string
	// OnMessageSent runs after a confirmed send, e.g. to notify peers.
	OnMessageSent func(ctx context.Context, m domain.Message)
}

// Controller sends messages optimistically.
type Controller struct {
	store    *cache.Store
	api      domain.MessageAPI
	viewer   func() domain.UserSummary
	notifier notify.Notifier
	drafts   *compose.Drafts
	clock    clock.Clock
	newID    func() string
	onSent   func(ctx context.Context, m domain.Message)
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]Op
}

func NewController(
	store *cache.Store,
	api domain.MessageAPI,
	viewer func() domain.UserSummary,
	notifier notify.Notifier,
	drafts *compose.Drafts,
	log zerolog.Logger,
	opts Options,
) *Controller {
	c := &Controller{
		store:    store,
		api:      api,
		viewer:   viewer,
		notifier: notifier,
		drafts:   drafts,
		clock:    opts.Clock,
		newID:    opts.NewID,
		onSent:   opts.OnMessageSent,
		log:      log.With().Str("component", "send").Logger(),
		pending:  make(map[string]Op),
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Send sends a text message to the conversation.
func (c *Controller) Send(ctx context.Context, conversationID int64, content string) (*domain.Message, error) {
	return c.SendReply(ctx, conversationID, content, nil)
}

// SendReply sends a text message, optionally replying to another message.
//
// A placeholder is visible in the cache before the network call starts. On
// success it is replaced by the confirmed message; on failure it is removed,
// an error toast is raised and the content goes back into the composer.
// Failed sends are not retried.
func (c *Controller) SendReply(ctx context.Context, conversationID int64, content string, replyToID *int64) (*domain.Message, error) {
	if conversationID == 0 {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, MaxContentLength)
	}

	me := c.viewer()
	op := Op{
		CorrelationID:  c.newID(),
		ConversationID: conversationID,
		Content:        content,
	}
	placeholder := domain.Message{
		OptimisticID:   op.CorrelationID,
		ConversationID: conversationID,
		SenderID:       me.ID,
		Sender:         &me,
		Content:        content,
		Type:           domain.MessageText,
		CreatedAt:      c.clock.Now(),
		ReplyToID:      replyToID,
	}
	op, err := Reduce(op, Event{Kind: EventSubmitted, Placeholder: placeholder})
	if err != nil {
		return nil, err
	}
	c.track(op)
	defer c.untrack(op.CorrelationID)

	// A refetch landing between here and the confirmation would overwrite
	// the placeholder. Its commit is paused until the send settles.
	release := c.store.HoldFetches(conversationID)
	defer release()
	c.store.UpdateMessages(conversationID, func(mc cache.MessageCache) cache.MessageCache {
		return cache.AppendOptimistic(mc, placeholder)
	})
	c.drafts.Clear(conversationID)
	started := c.clock.Now()

	confirmed, err := c.api.CreateMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversationID,
		Content:        content,
		Type:           domain.MessageText,
		SenderID:       me.ID,
		ReplyToID:      replyToID,
	})
	if err == nil {
		err = validateConfirmed(confirmed, conversationID)
	}
	if err != nil {
		return nil, c.fail(op, err, started)
	}

	if confirmed.Sender == nil {
		confirmed.Sender = &me
	}
	op, err = Reduce(op, Event{Kind: EventSucceeded, Confirmed: confirmed})
	if err != nil {
		return nil, c.fail(op, err, started)
	}
	final := *op.Confirmed
	c.store.UpdateBoth(conversationID, func(mc cache.MessageCache, list cache.ConversationList) (cache.MessageCache, cache.ConversationList) {
		mc, _ = cache.ReplaceOptimistic(mc, op.CorrelationID, final)
		return mc, cache.UpdateConversationLastMessage(list, conversationID, final, me.ID, true)
	})
	metrics.RecordSend("confirmed", c.clock.Since(started).Seconds())
	c.log.Debug().
		Int64("conversation_id", conversationID).
		Str("correlation_id", op.CorrelationID).
		Int64("message_id", final.ID).
		Msg("message confirmed")

	if c.onSent != nil {
		c.onSent(ctx, final)
	}
	return &final, nil
}

// Pending returns the sends that have not settled yet, oldest first.
func (c *Controller) Pending() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Op, 0, len(c.pending))
	for _, op := range c.pending {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Placeholder.CreatedAt.Before(out[j].Placeholder.CreatedAt)
	})
	return out
}

func (c *Controller) fail(op Op, cause error, started time.Time) error {
	failed, err := Reduce(op, Event{Kind: EventFailed, Err: cause})
	if err != nil {
		c.log.Error().Err(err).Str("correlation_id", op.CorrelationID).Msg("send state machine rejected failure")
	}
	c.store.UpdateMessages(op.ConversationID, func(mc cache.MessageCache) cache.MessageCache {
		mc, _ = cache.RemoveOptimistic(mc, op.CorrelationID)
		return mc
	})
	c.notifier.Error(op.ConversationID, failedToast)
	c.drafts.Restore(op.ConversationID, op.Content)
	metrics.RecordSend("failed", c.clock.Since(started).Seconds())

	c.log.Warn().
		Err(cause).
		Int64("conversation_id", op.ConversationID).
		Str("correlation_id", op.CorrelationID).
		Str("state", failed.State.String()).
		Msg("send failed, placeholder rolled back")
	return fmt.Errorf("send message: %w", cause)
}

func (c *Controller) track(op Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[op.CorrelationID] = op
}

func (c *Controller) untrack(correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, correlationID)
}

func validateConfirmed(m *domain.Message, conversationID int64) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: empty create-message response", domain.ErrMalformedResponse)
	case m.ID == 0:
		return fmt.Errorf("%w: message id missing", domain.ErrMalformedResponse)
	case m.ConversationID == 0:
		return fmt.Errorf("%w: conversation id missing", domain.ErrMalformedResponse)
	case m.ConversationID != conversationID:
		return fmt.Errorf("%w: conversation id %d does not match %d", domain.ErrMalformedResponse, m.ConversationID, conversationID)
	}
	return nil
}
