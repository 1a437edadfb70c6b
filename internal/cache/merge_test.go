package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/cache"
	"client_go/internal/domain"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id int64, sender int64, offset time.Duration, content string) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: 7,
		SenderID:       sender,
		Content:        content,
		Type:           domain.MessageText,
		CreatedAt:      base.Add(offset),
	}
}

func idsPerPage(c cache.MessageCache) [][]int64 {
	out := make([][]int64, 0, len(c.Pages))
	for _, p := range c.Pages {
		ids := make([]int64, 0, len(p.Messages))
		for _, m := range p.Messages {
			ids = append(ids, m.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestMergeMessage(t *testing.T) {
	t.Run("EmptyCacheCreatesFirstPage", func(t *testing.T) {
		c, updated := cache.MergeMessage(cache.MessageCache{}, msg(1, 10, 0, "hi"))
		assert.True(t, updated)
		require.Len(t, c.Pages, 1)
		assert.Equal(t, [][]int64{{1}}, idsPerPage(c))
	})

	t.Run("Idempotent", func(t *testing.T) {
		start := cache.MessageCache{Pages: []cache.Page{{Messages: []domain.Message{msg(1, 10, 0, "a")}}}}
		m := msg(2, 11, time.Minute, "b")

		once, _ := cache.MergeMessage(start, m)
		twice, _ := cache.MergeMessage(once, m)
		assert.Equal(t, once, twice)
		assert.Equal(t, [][]int64{{1, 2}}, idsPerPage(twice))
	})

	t.Run("ReplacesInPlaceOnIDMatch", func(t *testing.T) {
		start := cache.MessageCache{Pages: []cache.Page{{Messages: []domain.Message{msg(1, 10, 0, "a"), msg(2, 10, time.Second, "b")}}}}
		c, updated := cache.MergeMessage(start, msg(1, 10, 0, "a edited"))
		assert.True(t, updated)
		assert.Equal(t, "a edited", c.Pages[0].Messages[0].Content)
		assert.Equal(t, "a", start.Pages[0].Messages[0].Content, "input cache must not be mutated")
	})

	t.Run("NoOpWithoutConversationID", func(t *testing.T) {
		start := cache.MessageCache{}
		m := msg(3, 10, 0, "x")
		m.ConversationID = 0
		c, updated := cache.MergeMessage(start, m)
		assert.False(t, updated)
		assert.Empty(t, c.Pages)
	})

	t.Run("NeverTouchesEarlierPages", func(t *testing.T) {
		start := cache.MessageCache{Pages: []cache.Page{
			{Messages: []domain.Message{msg(1, 10, 0, "old")}},
			{Messages: []domain.Message{msg(5, 10, time.Hour, "new")}},
		}}
		c, updated := cache.MergeMessage(start, msg(1, 10, 0, "changed"))
		assert.False(t, updated)
		assert.Equal(t, start, c)
	})

	t.Run("NoDuplicateIDsAcrossSequences", func(t *testing.T) {
		c := cache.MessageCache{}
		seq := []domain.Message{
			msg(1, 10, 0, "a"), msg(2, 11, time.Second, "b"), msg(1, 10, 0, "a2"),
			msg(3, 10, 2*time.Second, "c"), msg(2, 11, time.Second, "b2"), msg(3, 10, 2*time.Second, "c"),
		}
		for _, m := range seq {
			c, _ = cache.MergeMessage(c, m)
		}
		for _, p := range c.Pages {
			seen := map[int64]bool{}
			for _, m := range p.Messages {
				assert.False(t, seen[m.ID], "duplicate id %d", m.ID)
				seen[m.ID] = true
			}
		}
		assert.Equal(t, 3, c.Len())
	})

	t.Run("OutOfOrderArrivalStaysChronological", func(t *testing.T) {
		c, _ := cache.MergeMessage(cache.MessageCache{}, msg(2, 10, time.Minute, "later"))
		c, _ = cache.MergeMessage(c, msg(1, 10, 0, "earlier"))
		assert.Equal(t, [][]int64{{1, 2}}, idsPerPage(c))
	})
}

func TestOptimisticLifecycle(t *testing.T) {
	placeholder := domain.Message{
		OptimisticID:   "corr-1",
		ConversationID: 7,
		SenderID:       10,
		Content:        "hello",
		CreatedAt:      base.Add(time.Minute),
	}
	confirmed := msg(42, 10, time.Minute, "hello")

	t.Run("ConfirmationReplacesPlaceholder", func(t *testing.T) {
		c := cache.AppendOptimistic(cache.MessageCache{}, placeholder)
		c, ok := cache.ReplaceOptimistic(c, "corr-1", confirmed)
		require.True(t, ok)
		msgs := cache.Flatten(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, int64(42), msgs[0].ID)
		assert.Empty(t, msgs[0].OptimisticID)
	})

	t.Run("EchoBeforeConfirmationConverges", func(t *testing.T) {
		c := cache.AppendOptimistic(cache.MessageCache{}, placeholder)
		c, _ = cache.MergeMessage(c, confirmed)
		require.Equal(t, 2, c.Len())

		c, ok := cache.ReplaceOptimistic(c, "corr-1", confirmed)
		require.True(t, ok)
		msgs := cache.Flatten(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, int64(42), msgs[0].ID)
	})

	t.Run("EchoAfterConfirmationIsNoOp", func(t *testing.T) {
		c := cache.AppendOptimistic(cache.MessageCache{}, placeholder)
		c, _ = cache.ReplaceOptimistic(c, "corr-1", confirmed)
		after, _ := cache.MergeMessage(c, confirmed)
		assert.Equal(t, c, after)
	})

	t.Run("ConfirmationFindsPlaceholderInEarlierPage", func(t *testing.T) {
		c := cache.AppendOptimistic(cache.MessageCache{Pages: []cache.Page{{}}}, placeholder)
		c, _ = cache.MergeMessage(cache.MessageCache{Pages: append(c.Pages, cache.Page{})}, msg(50, 11, time.Hour, "other"))
		c, ok := cache.ReplaceOptimistic(c, "corr-1", confirmed)
		require.True(t, ok)
		assert.Equal(t, [][]int64{{42}, {50}}, idsPerPage(c))
	})

	t.Run("FailureRemovesPlaceholderEverywhere", func(t *testing.T) {
		c := cache.AppendOptimistic(cache.MessageCache{}, placeholder)
		c, ok := cache.RemoveOptimistic(c, "corr-1")
		require.True(t, ok)
		assert.Equal(t, 0, c.Len())

		_, ok = cache.RemoveOptimistic(c, "corr-1")
		assert.False(t, ok)
	})
}

func TestDeleteIsSticky(t *testing.T) {
	c, _ := cache.MergeMessage(cache.MessageCache{}, msg(1, 10, 0, "secret"))
	c, ok := cache.ApplyDelete(c, 1, base.Add(time.Hour))
	require.True(t, ok)

	got, found := cache.FindByID(c, 1)
	require.True(t, found)
	assert.True(t, got.IsDeleted())
	assert.Empty(t, got.Content)

	t.Run("RedeliveryDoesNotResurrect", func(t *testing.T) {
		again, _ := cache.MergeMessage(c, msg(1, 10, 0, "secret"))
		m, _ := cache.FindByID(again, 1)
		assert.True(t, m.IsDeleted())
		assert.Empty(t, m.Content)
	})

	t.Run("DeleteBeforeArrivalTombstones", func(t *testing.T) {
		c, ok := cache.ApplyDelete(cache.MessageCache{}, 9, base)
		assert.False(t, ok)
		c, _ = cache.MergeMessage(c, msg(9, 11, 0, "late"))
		m, _ := cache.FindByID(c, 9)
		assert.True(t, m.IsDeleted())
	})

	t.Run("EditOfDeletedIgnored", func(t *testing.T) {
		_, ok := cache.ApplyEdit(c, 1, "new", base)
		assert.False(t, ok)
	})
}

func TestApplyEdit(t *testing.T) {
	c := cache.MessageCache{Pages: []cache.Page{
		{Messages: []domain.Message{msg(1, 10, 0, "old page")}},
		{Messages: []domain.Message{msg(2, 10, time.Hour, "new page")}},
	}}
	edited, ok := cache.ApplyEdit(c, 1, "fixed", base.Add(2*time.Hour))
	require.True(t, ok)
	m, _ := cache.FindByID(edited, 1)
	assert.Equal(t, "fixed", m.Content)
	require.NotNil(t, m.EditedAt)

	_, ok = cache.ApplyEdit(c, 99, "x", base)
	assert.False(t, ok)
}

func TestPrependPage(t *testing.T) {
	c := cache.MessageCache{Pages: []cache.Page{{
		Messages:   []domain.Message{msg(3, 10, 3*time.Minute, "c"), msg(4, 10, 4*time.Minute, "d")},
		NextCursor: "cur-3",
		HasMore:    true,
	}}}

	older := cache.Page{
		Messages:   []domain.Message{msg(1, 10, time.Minute, "a"), msg(2, 10, 2*time.Minute, "b"), msg(3, 10, 3*time.Minute, "c")},
		NextCursor: "cur-1",
		HasMore:    false,
	}
	out, added := cache.PrependPage(c, older)
	assert.Equal(t, 2, added)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, idsPerPage(out))
	assert.False(t, cache.HasMoreOlder(out))
	assert.Equal(t, "cur-1", cache.OldestCursor(out))
	assert.Equal(t, [][]int64{{3, 4}}, idsPerPage(c))
}

func TestReplaceLatestKeepsLocalEntries(t *testing.T) {
	local := cache.AppendOptimistic(cache.MessageCache{}, domain.Message{OptimisticID: "p", ConversationID: 7, CreatedAt: base.Add(time.Hour)})
	local, _ = cache.MergeMessage(local, msg(9, 11, 30*time.Minute, "realtime"))

	out := cache.ReplaceLatest(local, cache.Page{
		Messages: []domain.Message{msg(1, 10, 0, "a"), msg(2, 10, time.Minute, "b")},
		HasMore:  true,
	})
	msgs := cache.Flatten(out)
	require.Len(t, msgs, 4)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, int64(9), msgs[2].ID)
	assert.Equal(t, "p", msgs[3].OptimisticID)
	assert.True(t, cache.HasMoreOlder(out))
}

func TestReplaceLatestKeepsBackfilledHistory(t *testing.T) {
	c := cache.ReplaceLatest(cache.MessageCache{}, cache.Page{
		Messages:   []domain.Message{msg(3, 10, 3*time.Minute, "c"), msg(4, 11, 4*time.Minute, "d")},
		NextCursor: "cur-3",
		HasMore:    true,
	})
	c, _ = cache.PrependPage(c, cache.Page{
		Messages:   []domain.Message{msg(1, 10, time.Minute, "a"), msg(2, 11, 2*time.Minute, "b")},
		NextCursor: "cur-1",
		HasMore:    true,
	})
	c = cache.AppendOptimistic(c, domain.Message{OptimisticID: "p", ConversationID: 7, CreatedAt: base.Add(time.Hour)})

	t.Run("OverlappingPageIsFolded", func(t *testing.T) {
		edited := msg(4, 11, 4*time.Minute, "d edited")
		out := cache.ReplaceLatest(c, cache.Page{
			Messages:   []domain.Message{msg(3, 10, 3*time.Minute, "c"), edited, msg(5, 10, 5*time.Minute, "e")},
			NextCursor: "cur-3",
			HasMore:    true,
		})

		assert.Equal(t, [][]int64{{1, 2}, {3, 4, 5, 0}}, idsPerPage(out))
		assert.Equal(t, "cur-1", cache.OldestCursor(out))
		assert.True(t, cache.HasMoreOlder(out))
		got, ok := cache.FindByID(out, 4)
		require.True(t, ok)
		assert.Equal(t, "d edited", got.Content)
		assert.Equal(t, [][]int64{{1, 2}, {3, 4, 0}}, idsPerPage(c))
	})

	t.Run("SameContentIsStable", func(t *testing.T) {
		out := cache.ReplaceLatest(c, cache.Page{
			Messages: []domain.Message{msg(3, 10, 3*time.Minute, "c"), msg(4, 11, 4*time.Minute, "d")},
			HasMore:  true,
		})
		assert.Equal(t, idsPerPage(c), idsPerPage(out))
	})

	t.Run("GapReplacesHistory", func(t *testing.T) {
		out := cache.ReplaceLatest(c, cache.Page{
			Messages:   []domain.Message{msg(20, 10, 20*time.Minute, "t"), msg(21, 11, 21*time.Minute, "u")},
			NextCursor: "cur-20",
			HasMore:    true,
		})
		assert.Equal(t, [][]int64{{20, 21, 0}}, idsPerPage(out))
		assert.Equal(t, "cur-20", cache.OldestCursor(out))
	})
}

func TestResolveReply(t *testing.T) {
	parent := msg(1, 10, 0, "question")
	child := msg(2, 11, time.Minute, "answer")
	child.ReplyToID = &parent.ID
	c, _ := cache.MergeMessage(cache.MessageCache{}, parent)
	c, _ = cache.MergeMessage(c, child)

	got, ok := cache.ResolveReply(c, child)
	require.True(t, ok)
	assert.Equal(t, "question", got.Content)

	_, ok = cache.ResolveReply(c, parent)
	assert.False(t, ok)
}
