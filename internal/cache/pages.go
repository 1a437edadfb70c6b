// Package cache holds the client-side message cache and the pure functions
// that merge server and local state into it.
//
// Pages are ordered oldest to newest and messages inside a page are
// chronological. Realtime traffic only ever touches the last page and
// backfilled history is inserted as a new first page.
package cache

import (
	"time"

	"client_go/internal/domain"
)

// Page is one fetched batch of messages.
type Page struct {
	Messages   []domain.Message
	NextCursor string
	HasMore    bool
}

// MessageCache is the paginated cache of one conversation. Values are
// treated as immutable: every function returns a new cache and never writes
// through a slice it did not allocate.
type MessageCache struct {
	Pages []Page
	// Tombstones remembers deleted ids so a late echo or refetch cannot
	// bring a deleted message back.
	Tombstones map[int64]time.Time
}

// Len returns the number of cached messages across all pages.
func (c MessageCache) Len() int {
	n := 0
	for _, p := range c.Pages {
		n += len(p.Messages)
	}
	return n
}

// Flatten returns all messages oldest first.
func Flatten(c MessageCache) []domain.Message {
	out := make([]domain.Message, 0, c.Len())
	for _, p := range c.Pages {
		out = append(out, p.Messages...)
	}
	return out
}

// Contains reports whether a confirmed message with the given id is cached.
func Contains(c MessageCache, id int64) bool {
	_, _, ok := locateID(c, id)
	return ok
}

// FindByID returns the cached message with the given id.
func FindByID(c MessageCache, id int64) (domain.Message, bool) {
	pi, mi, ok := locateID(c, id)
	if !ok {
		return domain.Message{}, false
	}
	return c.Pages[pi].Messages[mi], true
}

// ResolveReply returns the message m replies to, if it is cached.
func ResolveReply(c MessageCache, m domain.Message) (domain.Message, bool) {
	if m.ReplyToID == nil {
		return domain.Message{}, false
	}
	return FindByID(c, *m.ReplyToID)
}

// HasMoreOlder reports whether the server has history older than the first page.
func HasMoreOlder(c MessageCache) bool {
	return len(c.Pages) > 0 && c.Pages[0].HasMore
}

// OldestCursor returns the cursor to fetch the page before the first cached
// page. It falls back to the oldest confirmed message timestamp when the
// server did not provide a cursor.
func OldestCursor(c MessageCache) string {
	if len(c.Pages) == 0 {
		return ""
	}
	if cur := c.Pages[0].NextCursor; cur != "" {
		return cur
	}
	for _, p := range c.Pages {
		for _, m := range p.Messages {
			if m.ID != 0 {
				return m.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
		}
	}
	return ""
}

func locateID(c MessageCache, id int64) (int, int, bool) {
	if id == 0 {
		return 0, 0, false
	}
	for pi, p := range c.Pages {
		if mi := indexOfID(p.Messages, id); mi >= 0 {
			return pi, mi, true
		}
	}
	return 0, 0, false
}

func locateOptimistic(c MessageCache, optimisticID string) (int, int, bool) {
	if optimisticID == "" {
		return 0, 0, false
	}
	for pi, p := range c.Pages {
		for mi, m := range p.Messages {
			if m.ID == 0 && m.OptimisticID == optimisticID {
				return pi, mi, true
			}
		}
	}
	return 0, 0, false
}

func indexOfID(msgs []domain.Message, id int64) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// withPage returns a copy of c whose page i holds msgs.
func (c MessageCache) withPage(i int, msgs []domain.Message) MessageCache {
	pages := make([]Page, len(c.Pages))
	copy(pages, c.Pages)
	pages[i].Messages = msgs
	return MessageCache{Pages: pages, Tombstones: c.Tombstones}
}

func cloneMessages(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func removeAt(msgs []domain.Message, i int) []domain.Message {
	out := make([]domain.Message, 0, len(msgs)-1)
	out = append(out, msgs[:i]...)
	return append(out, msgs[i+1:]...)
}

// insertChronological appends m after the last message not newer than it.
// Realtime messages almost always land at the end.
func insertChronological(msgs []domain.Message, m domain.Message) []domain.Message {
	pos := len(msgs)
	for pos > 0 && msgs[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}
	out := make([]domain.Message, 0, len(msgs)+1)
	out = append(out, msgs[:pos]...)
	out = append(out, m)
	return append(out, msgs[pos:]...)
}
