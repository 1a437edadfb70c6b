package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/cache"
	"client_go/internal/domain"
)

func TestStoreNotifiesListeners(t *testing.T) {
	s := cache.NewStore()
	var changed []int64
	s.OnChange(func(id int64) { changed = append(changed, id) })

	s.UpdateMessages(7, func(c cache.MessageCache) cache.MessageCache {
		next, _ := cache.MergeMessage(c, msg(1, 1, 0, "a"))
		return next
	})
	s.UpdateConversations(func(cache.ConversationList) cache.ConversationList {
		return cache.ConversationList{{ID: 7}}
	})
	s.UpdateBoth(7, func(c cache.MessageCache, l cache.ConversationList) (cache.MessageCache, cache.ConversationList) {
		next, _ := cache.MergeMessage(c, msg(2, 1, 0, "b"))
		return next, l
	})

	assert.Equal(t, []int64{7, 7}, changed)
	assert.Equal(t, 2, s.Messages(7).Len())
	assert.Len(t, s.Conversations(), 1)
}

func TestStoreFetchTokens(t *testing.T) {
	page := cache.Page{Messages: []domain.Message{msg(1, 1, 0, "a")}}
	replace := func(c cache.MessageCache) cache.MessageCache { return cache.ReplaceLatest(c, page) }

	t.Run("CommitApplies", func(t *testing.T) {
		s := cache.NewStore()
		tok := s.BeginFetch(7)
		got, err := s.CommitFetch(tok, replace)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Len())
	})

	t.Run("CancelledFetchIsRejected", func(t *testing.T) {
		s := cache.NewStore()
		var changed []int64
		s.OnChange(func(id int64) { changed = append(changed, id) })
		tok := s.BeginFetch(7)
		s.CancelFetches(7)
		_, err := s.CommitFetch(tok, replace)
		assert.ErrorIs(t, err, domain.ErrStaleResult)
		assert.Equal(t, 0, s.Messages(7).Len())
		assert.Empty(t, changed)

		// Fetches begun after the cancel are fine.
		_, err = s.CommitFetch(s.BeginFetch(7), replace)
		assert.NoError(t, err)
	})

	t.Run("CancelIsPerConversation", func(t *testing.T) {
		s := cache.NewStore()
		tok := s.BeginFetch(7)
		s.CancelFetches(8)
		_, err := s.CommitFetch(tok, replace)
		assert.NoError(t, err)
	})

	t.Run("ResetRejectsEverythingInFlight", func(t *testing.T) {
		s := cache.NewStore()
		tok := s.BeginFetch(7)
		s.Reset()
		_, err := s.CommitFetch(tok, replace)
		assert.ErrorIs(t, err, domain.ErrStaleResult)
		assert.Nil(t, s.Conversations())
	})
}

func TestStoreHoldFetches(t *testing.T) {
	page := cache.Page{Messages: []domain.Message{msg(1, 1, 0, "a"), msg(2, 1, 0, "b")}}
	replace := func(c cache.MessageCache) cache.MessageCache { return cache.ReplaceLatest(c, page) }

	t.Run("CommitWaitsForRelease", func(t *testing.T) {
		s := cache.NewStore()
		var changed []int64
		s.OnChange(func(id int64) { changed = append(changed, id) })

		release := s.HoldFetches(7)
		_, err := s.CommitFetch(s.BeginFetch(7), replace)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Messages(7).Len())
		assert.Empty(t, changed)

		release()
		assert.Equal(t, 2, s.Messages(7).Len())
		assert.Equal(t, []int64{7}, changed)

		release()
		assert.Equal(t, []int64{7}, changed, "release is idempotent")
	})

	t.Run("HoldsNest", func(t *testing.T) {
		s := cache.NewStore()
		first := s.HoldFetches(7)
		second := s.HoldFetches(7)
		_, err := s.CommitFetch(s.BeginFetch(7), replace)
		require.NoError(t, err)

		first()
		assert.Equal(t, 0, s.Messages(7).Len())
		second()
		assert.Equal(t, 2, s.Messages(7).Len())
	})

	t.Run("OtherConversationsAreNotHeld", func(t *testing.T) {
		s := cache.NewStore()
		release := s.HoldFetches(8)
		defer release()
		_, err := s.CommitFetch(s.BeginFetch(7), replace)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Messages(7).Len())
	})

	t.Run("CancelDropsQueuedCommit", func(t *testing.T) {
		s := cache.NewStore()
		release := s.HoldFetches(7)
		_, err := s.CommitFetch(s.BeginFetch(7), replace)
		require.NoError(t, err)
		s.CancelFetches(7)

		release()
		assert.Equal(t, 0, s.Messages(7).Len())
	})
}
