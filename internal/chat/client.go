// Package chat wires the sync engine together: it owns the open
// conversation and routes user input, realtime events and fetch results
// through the cache into the message list.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"client_go/internal/backfill"
	"client_go/internal/cache"
	"client_go/internal/domain"
	"client_go/internal/notify"
	"client_go/internal/presence"
	"client_go/internal/realtime"
	"client_go/internal/send"
	"client_go/internal/viewport"
)

type Options struct {
	PageSize int
	List     viewport.Config
	// NearTop is the distance from the top, in pixels, under which older
	// history is loaded.
	NearTop       int
	TypingIdle    time.Duration
	TypingRefresh time.Duration
	ToastTTL      time.Duration
	// Measurer, when set, measures newly visible rows after every layout.
	Measurer viewport.Measurer
	Clock    clock.Clock
	NewID    func() string
}

func DefaultOptions() Options {
	return Options{
		PageSize:      backfill.DefaultPageSize,
		List:          viewport.DefaultConfig(),
		NearTop:       200,
		TypingIdle:    2 * time.Second,
		TypingRefresh: 3 * time.Second,
		ToastTTL:      5 * time.Second,
	}
}

type Client struct {
	state    *State
	store    *cache.Store
	api      domain.MessageAPI
	realtime *realtime.Manager
	history  *backfill.Controller
	sender   *send.Controller
	typing   *presence.Broadcaster
	peers    domain.MessagePublisher
	presence *presence.Presence
	toasts   *notify.Toasts
	list     *viewport.List
	measurer viewport.Measurer
	nearTop  int
	log      zerolog.Logger
}

func NewClient(
	state *State,
	store *cache.Store,
	api domain.MessageAPI,
	transport domain.Transport,
	publisher domain.Publisher,
	opts Options,
	log zerolog.Logger,
) *Client {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.NearTop <= 0 {
		opts.NearTop = 200
	}
	c := &Client{
		state:    state,
		store:    store,
		api:      api,
		realtime: realtime.NewManager(transport, log),
		history:  backfill.NewController(store, api, opts.PageSize, log),
		typing:   presence.NewBroadcaster(publisher, opts.Clock, opts.TypingIdle, opts.TypingRefresh, log),
		peers:    publisher,
		presence: presence.NewPresence(),
		toasts:   notify.NewToasts(opts.Clock, opts.ToastTTL, log),
		list:     viewport.NewList(opts.List, state.Ledger(), log),
		measurer: opts.Measurer,
		nearTop:  opts.NearTop,
		log:      log.With().Str("component", "chat").Logger(),
	}
	c.sender = send.NewController(store, api, state.Viewer, c.toasts, state.Drafts(), log, send.Options{
		Clock:         opts.Clock,
		NewID:         opts.NewID,
		OnMessageSent: c.messageSent,
	})
	c.list.SetViewer(state.Viewer().ID)
	store.OnChange(c.cacheChanged)
	return c
}

// List exposes the message list so the host can subscribe to scroll
// commands and read the visible rows.
func (c *Client) List() *viewport.List { return c.list }

func (c *Client) Toasts() *notify.Toasts { return c.toasts }

func (c *Client) Presence() *presence.Presence { return c.presence }

// LoadConversations replaces the conversation list with the server's.
func (c *Client) LoadConversations(ctx context.Context) error {
	convs, err := c.api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	c.store.UpdateConversations(func(cache.ConversationList) cache.ConversationList {
		return cache.ConversationList(convs)
	})
	return nil
}

// Open switches to a conversation.
//
// The previous conversation's scroll position is saved and its typing state,
// in-flight fetches and subscription are dropped. The list opens from the
// cache right away, restoring the saved position if there is one, and is
// then refreshed with the newest page. A failed subscribe leaves the
// conversation readable without realtime updates.
func (c *Client) Open(ctx context.Context, conversationID int64) error {
	if conversationID == 0 {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	prev := c.state.SetActiveConversation(conversationID)
	if prev == conversationID {
		return nil
	}
	if prev != 0 {
		c.typing.Reset(ctx)
		c.state.Typing().Reset(prev)
		c.store.CancelFetches(prev)
	}

	c.list.SetViewer(c.state.Viewer().ID)
	c.list.Open(conversationID, cache.Flatten(c.store.Messages(conversationID)))
	c.measure()

	if err := c.realtime.Switch(ctx, prev, conversationID, c.handlers()); err != nil {
		c.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("realtime unavailable")
	}
	if err := c.history.LoadLatest(ctx, conversationID); err != nil {
		c.toasts.Error(conversationID, "Messages could not be loaded.")
		return fmt.Errorf("open conversation %d: %w", conversationID, err)
	}
	c.markReadIfCaughtUp(ctx)
	return nil
}

// Send sends content to the open conversation.
func (c *Client) Send(ctx context.Context, content string) (*domain.Message, error) {
	return c.sender.Send(ctx, c.state.ActiveConversation(), content)
}

// Reply sends content to the open conversation as a reply.
func (c *Client) Reply(ctx context.Context, content string, replyToID int64) (*domain.Message, error) {
	return c.sender.SendReply(ctx, c.state.ActiveConversation(), content, &replyToID)
}

// ComposerChanged records the composer text and drives the viewer's typing
// indicator.
func (c *Client) ComposerChanged(ctx context.Context, text string) {
	id := c.state.ActiveConversation()
	if id == 0 {
		return
	}
	c.state.Drafts().Set(id, text)
	c.typing.OnLocalContentChange(ctx, id, text)
}

// Draft returns the composer text of the open conversation.
func (c *Client) Draft() string {
	return c.state.Drafts().Get(c.state.ActiveConversation())
}

// Scrolled records a user scroll. Near the top older history is fetched;
// at the bottom the conversation is marked as read.
func (c *Client) Scrolled(ctx context.Context, top int) error {
	id := c.state.ActiveConversation()
	if id == 0 {
		return nil
	}
	c.list.ScrollTo(top)
	c.measure()
	if c.list.IsNearTop(c.nearTop) {
		if _, err := c.history.OnScrollNearTop(ctx, id); err != nil {
			return err
		}
	}
	c.markReadIfCaughtUp(ctx)
	return nil
}

// ScrollToBottom jumps to the newest message.
func (c *Client) ScrollToBottom(ctx context.Context) {
	c.list.ScrollToBottom()
	c.measure()
	c.markReadIfCaughtUp(ctx)
}

// Measured feeds back the rendered height of a row.
func (c *Client) Measured(key string, height int) {
	c.list.Measured(key, height)
}

// Resize records the viewport size.
func (c *Client) Resize(height, width int) {
	c.list.SetViewport(height, width)
	c.measure()
}

// Logout drops every piece of session state: subscriptions, cache, scroll
// ledger, drafts, typing and toasts.
func (c *Client) Logout(ctx context.Context) {
	c.typing.Reset(ctx)
	if err := c.realtime.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing subscriptions failed")
	}
	c.list.Close()
	c.state.Reset()
	c.store.Reset()
	c.toasts.Reset()
	c.presence.Reset()
	c.log.Info().Msg("logged out")
}

// Close releases the realtime subscriptions.
func (c *Client) Close(ctx context.Context) error {
	c.typing.Reset(ctx)
	return c.realtime.Close()
}

// messageSent ends the typing indicator and tells the other participants
// about the confirmed message. The send has succeeded either way.
func (c *Client) messageSent(ctx context.Context, m domain.Message) {
	c.typing.Reset(ctx)
	if err := c.peers.PublishMessage(ctx, m); err != nil {
		c.log.Warn().Err(err).
			Int64("conversation_id", m.ConversationID).
			Int64("message_id", m.ID).
			Msg("notifying peers failed")
	}
}

func (c *Client) handlers() realtime.Handlers {
	return realtime.Handlers{
		OnMessage:       c.onMessage,
		OnMessageUpdate: c.onMessageUpdate,
		OnMessageDelete: c.onMessageDelete,
		OnTyping: func(conversationID int64, ev domain.TypingEvent) {
			c.state.Typing().Apply(conversationID, ev)
		},
		OnPresence: c.onPresence,
	}
}

// onMessage merges a realtime message. The conversation summary and unread
// count are only touched for ids the cache did not hold yet, so a
// redelivered message is not counted twice.
func (c *Client) onMessage(m domain.Message) {
	viewerID := c.state.Viewer().ID
	active := m.ConversationID == c.state.ActiveConversation()
	c.store.UpdateBoth(m.ConversationID, func(mc cache.MessageCache, l cache.ConversationList) (cache.MessageCache, cache.ConversationList) {
		known := cache.Contains(mc, m.ID)
		next, _ := cache.MergeMessage(mc, m)
		if !known {
			l = cache.UpdateConversationLastMessage(l, m.ConversationID, m, viewerID, active)
		}
		return next, l
	})
	// A message ends the sender's typing indicator.
	c.state.Typing().Apply(m.ConversationID, domain.TypingEvent{UserID: m.SenderID, Typing: false})
}

func (c *Client) onMessageUpdate(conversationID int64, u domain.MessageUpdate) {
	c.store.UpdateBoth(conversationID, func(mc cache.MessageCache, l cache.ConversationList) (cache.MessageCache, cache.ConversationList) {
		next, ok := cache.ApplyEdit(mc, u.MessageID, u.Content, u.EditedAt)
		if !ok {
			return mc, l
		}
		return next, cache.ApplyLastMessageEdit(l, conversationID, u.MessageID, u.Content)
	})
}

func (c *Client) onMessageDelete(conversationID int64, d domain.MessageDelete) {
	c.store.UpdateBoth(conversationID, func(mc cache.MessageCache, l cache.ConversationList) (cache.MessageCache, cache.ConversationList) {
		next, _ := cache.ApplyDelete(mc, d.MessageID, d.DeletedAt)
		return next, cache.RecomputeLastMessage(l, conversationID, next)
	})
}

func (c *Client) onPresence(conversationID int64, ev domain.PresenceEvent) {
	c.presence.Apply(conversationID, ev)
	switch ev.Kind {
	case domain.PresenceOffline:
		c.state.Typing().Leave(0, ev.UserID)
	case domain.PresenceLeave:
		c.state.Typing().Leave(conversationID, ev.UserID)
	}
}

// cacheChanged re-lays out the list when the open conversation's cache
// changed.
func (c *Client) cacheChanged(conversationID int64) {
	if conversationID == 0 || conversationID != c.list.ConversationID() {
		return
	}
	c.list.Update(cache.Flatten(c.store.Messages(conversationID)))
	c.measure()
}

// markReadIfCaughtUp marks the open conversation as read when the list
// shows its newest messages and the server still counts unread ones.
func (c *Client) markReadIfCaughtUp(ctx context.Context) {
	id := c.state.ActiveConversation()
	if id == 0 || !c.list.IsNearBottom() {
		return
	}
	conv, ok := c.store.Conversations().Find(id)
	if !ok || conv.UnreadCount == 0 {
		return
	}
	unread, err := c.api.MarkRead(ctx, id)
	if err != nil {
		c.log.Warn().Err(err).Int64("conversation_id", id).Msg("mark read failed")
		return
	}
	c.store.UpdateConversations(func(l cache.ConversationList) cache.ConversationList {
		return cache.SetUnread(l, id, unread)
	})
}

func (c *Client) measure() {
	if c.measurer != nil {
		c.list.MeasureWith(c.measurer)
	}
}
