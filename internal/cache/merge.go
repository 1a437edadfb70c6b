package cache

import (
	"time"

	"client_go/internal/domain"
)

// MergeMessage merges a confirmed message into the newest page.
//
// A message already in the last page is replaced in place (edit or
// confirmation path); otherwise it is appended. Earlier pages are never
// written: an id that already lives there is left alone and reported as not
// updated, which keeps ids unique across pages. Messages without a
// conversation id or server id are ignored.
func MergeMessage(c MessageCache, m domain.Message) (MessageCache, bool) {
	if m.ConversationID == 0 || m.ID == 0 {
		return c, false
	}
	m.OptimisticID = ""
	if at, ok := c.Tombstones[m.ID]; ok && m.DeletedAt == nil {
		m = markDeleted(m, at)
	}

	if len(c.Pages) == 0 {
		return MessageCache{
			Pages:      []Page{{Messages: []domain.Message{m}}},
			Tombstones: c.Tombstones,
		}, true
	}

	last := len(c.Pages) - 1
	for i := 0; i < last; i++ {
		if indexOfID(c.Pages[i].Messages, m.ID) >= 0 {
			return c, false
		}
	}

	msgs := c.Pages[last].Messages
	if idx := indexOfID(msgs, m.ID); idx >= 0 {
		next := cloneMessages(msgs)
		next[idx] = reconcile(msgs[idx], m)
		return c.withPage(last, next), true
	}
	return c.withPage(last, insertChronological(msgs, m)), true
}

// AppendOptimistic appends a placeholder to the newest page. Placeholders
// carry no server id, so id-based dedup does not apply; a second append with
// the same optimistic id replaces the first.
func AppendOptimistic(c MessageCache, m domain.Message) MessageCache {
	if m.OptimisticID == "" {
		return c
	}
	m.ID = 0
	if pi, mi, ok := locateOptimistic(c, m.OptimisticID); ok {
		next := cloneMessages(c.Pages[pi].Messages)
		next[mi] = m
		return c.withPage(pi, next)
	}
	if len(c.Pages) == 0 {
		return MessageCache{
			Pages:      []Page{{Messages: []domain.Message{m}}},
			Tombstones: c.Tombstones,
		}
	}
	last := len(c.Pages) - 1
	next := append(cloneMessages(c.Pages[last].Messages), m)
	return c.withPage(last, next)
}

// ReplaceOptimistic promotes the placeholder with the given optimistic id to
// the confirmed message. All pages are searched because a slow confirmation
// can arrive after a backfill or refetch moved page boundaries.
//
// If the realtime echo of the same message got there first, the echo entry
// is updated and the placeholder dropped, so both orders converge.
func ReplaceOptimistic(c MessageCache, optimisticID string, confirmed domain.Message) (MessageCache, bool) {
	confirmed.OptimisticID = ""
	if confirmed.ID == 0 {
		return c, false
	}
	if at, ok := c.Tombstones[confirmed.ID]; ok && confirmed.DeletedAt == nil {
		confirmed = markDeleted(confirmed, at)
	}

	ppi, pmi, hasPlaceholder := locateOptimistic(c, optimisticID)
	epi, emi, hasEcho := locateID(c, confirmed.ID)

	switch {
	case hasEcho:
		next := cloneMessages(c.Pages[epi].Messages)
		next[emi] = reconcile(next[emi], confirmed)
		out := c.withPage(epi, next)
		if hasPlaceholder {
			out = out.withPage(ppi, removeAt(out.Pages[ppi].Messages, pmi))
		}
		return out, true
	case hasPlaceholder:
		next := cloneMessages(c.Pages[ppi].Messages)
		next[pmi] = confirmed
		return c.withPage(ppi, next), true
	default:
		return MergeMessage(c, confirmed)
	}
}

// RemoveOptimistic drops the placeholder with the given optimistic id from
// every page.
func RemoveOptimistic(c MessageCache, optimisticID string) (MessageCache, bool) {
	if optimisticID == "" {
		return c, false
	}
	removed := false
	out := c
	for pi := range c.Pages {
		msgs := out.Pages[pi].Messages
		changed := false
		for mi := len(msgs) - 1; mi >= 0; mi-- {
			if msgs[mi].ID == 0 && msgs[mi].OptimisticID == optimisticID {
				msgs = removeAt(msgs, mi)
				changed = true
			}
		}
		if changed {
			out = out.withPage(pi, msgs)
			removed = true
		}
	}
	return out, removed
}

// ApplyEdit updates content and edit time of a cached message in place.
// Deleted messages cannot be edited.
func ApplyEdit(c MessageCache, id int64, content string, editedAt time.Time) (MessageCache, bool) {
	pi, mi, ok := locateID(c, id)
	if !ok {
		return c, false
	}
	cur := c.Pages[pi].Messages[mi]
	if cur.IsDeleted() {
		return c, false
	}
	if cur.Content == content && cur.EditedAt != nil && cur.EditedAt.Equal(editedAt) {
		return c, false
	}
	next := cloneMessages(c.Pages[pi].Messages)
	at := editedAt
	next[mi].Content = content
	next[mi].EditedAt = &at
	return c.withPage(pi, next), true
}

// ApplyDelete soft-deletes a message: the row stays in place so the list
// layout does not shift, its content is dropped and DeletedAt is set. The id
// is tombstoned even when it is not cached yet.
func ApplyDelete(c MessageCache, id int64, deletedAt time.Time) (MessageCache, bool) {
	if id == 0 {
		return c, false
	}
	out := c
	if _, ok := c.Tombstones[id]; !ok {
		tomb := make(map[int64]time.Time, len(c.Tombstones)+1)
		for k, v := range c.Tombstones {
			tomb[k] = v
		}
		tomb[id] = deletedAt
		out = MessageCache{Pages: c.Pages, Tombstones: tomb}
	}
	pi, mi, ok := locateID(out, id)
	if !ok || out.Pages[pi].Messages[mi].IsDeleted() {
		return out, false
	}
	next := cloneMessages(out.Pages[pi].Messages)
	next[mi] = markDeleted(next[mi], deletedAt)
	return out.withPage(pi, next), true
}

// PrependPage inserts an older page in front of the cache. Messages whose id
// is already cached are filtered out, guarding against overlapping windows.
// The returned count is the number of messages actually added.
func PrependPage(c MessageCache, p Page) (MessageCache, int) {
	seen := make(map[int64]struct{}, c.Len())
	for _, pg := range c.Pages {
		for _, m := range pg.Messages {
			if m.ID != 0 {
				seen[m.ID] = struct{}{}
			}
		}
	}
	fresh := make([]domain.Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		if m.ID == 0 {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if at, ok := c.Tombstones[m.ID]; ok && m.DeletedAt == nil {
			m = markDeleted(m, at)
		}
		fresh = append(fresh, m)
	}
	pages := make([]Page, 0, len(c.Pages)+1)
	pages = append(pages, Page{Messages: fresh, NextCursor: p.NextCursor, HasMore: p.HasMore})
	pages = append(pages, c.Pages...)
	return MessageCache{Pages: pages, Tombstones: c.Tombstones}, len(fresh)
}

// ReplaceLatest installs a freshly fetched newest page.
//
// When the oldest message of the page is already cached, the page continues
// the cached history: known messages are refreshed in place, new ones join
// the last page and older pages keep their cursors, so backfilled history
// survives a revisit. Otherwise the page becomes the only page. Local
// entries the server page does not know yet (placeholders and realtime
// messages newer than the page) are carried over either way.
func ReplaceLatest(c MessageCache, p Page) MessageCache {
	msgs := latestMessages(c, p)
	if continuesCache(c, msgs) {
		return foldLatest(c, msgs)
	}

	var newest time.Time
	ids := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		ids[m.ID] = struct{}{}
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	for _, pg := range c.Pages {
		for _, m := range pg.Messages {
			if m.IsOptimistic() {
				msgs = append(msgs, m)
				continue
			}
			if _, known := ids[m.ID]; known {
				continue
			}
			if m.CreatedAt.After(newest) {
				msgs = insertChronological(msgs, m)
			}
		}
	}
	return MessageCache{
		Pages:      []Page{{Messages: msgs, NextCursor: p.NextCursor, HasMore: p.HasMore}},
		Tombstones: c.Tombstones,
	}
}

// latestMessages returns the confirmed, de-duplicated messages of a fetched
// page with tombstones applied.
func latestMessages(c MessageCache, p Page) []domain.Message {
	ids := make(map[int64]struct{}, len(p.Messages))
	msgs := make([]domain.Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		if m.ID == 0 {
			continue
		}
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		m.OptimisticID = ""
		if at, ok := c.Tombstones[m.ID]; ok && m.DeletedAt == nil {
			m = markDeleted(m, at)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// continuesCache reports whether msgs overlap the cached history, i.e. the
// oldest of them is already cached.
func continuesCache(c MessageCache, msgs []domain.Message) bool {
	if len(msgs) == 0 || len(c.Pages) == 0 {
		return false
	}
	oldest := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.Before(oldest.CreatedAt) {
			oldest = m
		}
	}
	return Contains(c, oldest.ID)
}

func foldLatest(c MessageCache, msgs []domain.Message) MessageCache {
	pages := make([]Page, len(c.Pages))
	copy(pages, c.Pages)
	out := MessageCache{Pages: pages, Tombstones: c.Tombstones}
	last := len(pages) - 1
	for _, m := range msgs {
		if pi, mi, ok := locateID(out, m.ID); ok {
			next := cloneMessages(out.Pages[pi].Messages)
			next[mi] = reconcile(next[mi], m)
			out.Pages[pi].Messages = next
			continue
		}
		out.Pages[last].Messages = insertChronological(out.Pages[last].Messages, m)
	}
	return out
}

// reconcile merges an incoming copy of a message over the cached one.
// Deletion is sticky and a missing sender profile is filled from the cache.
func reconcile(cur, incoming domain.Message) domain.Message {
	if cur.IsDeleted() && !incoming.IsDeleted() {
		incoming = markDeleted(incoming, *cur.DeletedAt)
	}
	if incoming.Sender == nil {
		incoming.Sender = cur.Sender
	}
	return incoming
}

func markDeleted(m domain.Message, at time.Time) domain.Message {
	t := at
	m.DeletedAt = &t
	m.Content = ""
	return m
}
