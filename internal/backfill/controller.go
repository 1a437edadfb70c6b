// Package backfill loads message history into the cache: the newest page when
// a conversation is opened and older pages as the list is scrolled to the top.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"client_go/internal/cache"
	"client_go/internal/domain"
	"client_go/internal/metrics"
)

const DefaultPageSize = 50

type Controller struct {
	store    *cache.Store
	api      domain.MessageAPI
	log      zerolog.Logger
	pageSize int

	mu      sync.Mutex
	loading map[int64]bool
}

func NewController(store *cache.Store, api domain.MessageAPI, pageSize int, log zerolog.Logger) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		store:    store,
		api:      api,
		log:      log.With().Str("component", "backfill").Logger(),
		pageSize: pageSize,
		loading:  make(map[int64]bool),
	}
}

// LoadLatest fetches the newest page of a conversation and merges it into
// the cache with cache.ReplaceLatest: a page that continues the cached
// history keeps the backfilled pages, otherwise it replaces them. A result
// that arrives after the conversation's fetches were cancelled is dropped.
func (c *Controller) LoadLatest(ctx context.Context, conversationID int64) error {
	token := c.store.BeginFetch(conversationID)
	page, err := c.api.ListMessages(ctx, conversationID, "", c.pageSize)
	if err != nil {
		metrics.RecordBackfill("error")
		return fmt.Errorf("load latest messages: %w", err)
	}
	_, err = c.store.CommitFetch(token, func(mc cache.MessageCache) cache.MessageCache {
		return cache.ReplaceLatest(mc, toPage(page))
	})
	if errors.Is(err, domain.ErrStaleResult) {
		metrics.RecordStale("latest")
		c.log.Debug().Int64("conversation_id", conversationID).Msg("dropped stale latest page")
		return nil
	}
	if err != nil {
		return err
	}
	metrics.RecordBackfill("ok")
	return nil
}

// OnScrollNearTop fetches the page before the oldest cached one. It does
// nothing while a fetch for the conversation is in flight or when the
// server reported no older history. It reports whether a page was added.
func (c *Controller) OnScrollNearTop(ctx context.Context, conversationID int64) (bool, error) {
	current := c.store.Messages(conversationID)
	if !cache.HasMoreOlder(current) {
		return false, nil
	}
	if !c.begin(conversationID) {
		return false, nil
	}
	defer c.end(conversationID)

	token := c.store.BeginFetch(conversationID)
	cursor := cache.OldestCursor(current)
	page, err := c.api.ListMessages(ctx, conversationID, cursor, c.pageSize)
	if err != nil {
		metrics.RecordBackfill("error")
		c.log.Warn().Err(err).
			Int64("conversation_id", conversationID).
			Str("cursor", cursor).
			Msg("failed to load older messages")
		return false, fmt.Errorf("load older messages: %w", err)
	}

	older := toPage(page)
	added := 0
	_, err = c.store.CommitFetch(token, func(mc cache.MessageCache) cache.MessageCache {
		next, n := cache.PrependPage(mc, older)
		added = n
		return next
	})
	if errors.Is(err, domain.ErrStaleResult) {
		metrics.RecordBackfill("stale")
		metrics.RecordStale("backfill")
		c.log.Debug().Int64("conversation_id", conversationID).Msg("dropped stale history page")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.RecordBackfill("ok")
	c.log.Debug().
		Int64("conversation_id", conversationID).
		Int("added", added).
		Bool("has_more", older.HasMore).
		Msg("loaded older messages")
	return true, nil
}

// Loading reports whether an older-page fetch is in flight.
func (c *Controller) Loading(conversationID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[conversationID]
}

func (c *Controller) begin(conversationID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading[conversationID] {
		return false
	}
	c.loading[conversationID] = true
	return true
}

func (c *Controller) end(conversationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, conversationID)
}

func toPage(p *domain.MessagePage) cache.Page {
	if p == nil {
		return cache.Page{}
	}
	return cache.Page{Messages: p.Messages, NextCursor: p.NextCursor, HasMore: p.HasMore}
}
