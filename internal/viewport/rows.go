// Package viewport lays out a virtualized, chronologically ordered message
// list: it derives display rows, estimates and caches their heights, decides
// which rows intersect the viewport and keeps the scroll position anchored
// across switches, appends and backfills.
package viewport

import (
	"time"

	"client_go/internal/domain"
)

type RowKind int

const (
	RowMessage RowKind = iota
	RowSeparator
)

// Row is one display row. Separator rows are derived, never stored.
type Row struct {
	Key     string
	Kind    RowKind
	Message domain.Message
	// Date is the local calendar day a separator introduces.
	Date time.Time
	// Grouped rows continue the previous message's group and render without
	// a sender header.
	Grouped bool
}

// BuildRows turns chronological messages into display rows, inserting a
// date separator whenever the local calendar day changes.
func BuildRows(messages []domain.Message, loc *time.Location, window time.Duration) []Row {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]Row, 0, len(messages)+4)
	var prev *domain.Message
	var prevDay time.Time

	for i := range messages {
		m := messages[i]
		day := startOfDay(m.CreatedAt, loc)
		newDay := prev == nil || !day.Equal(prevDay)
		if newDay {
			rows = append(rows, Row{
				Key:  "d:" + day.Format("2006-01-02"),
				Kind: RowSeparator,
				Date: day,
			})
		}
		rows = append(rows, Row{
			Key:     m.Key(),
			Kind:    RowMessage,
			Message: m,
			Grouped: !newDay && prev != nil && IsGrouped(*prev, m, window),
		})
		prev = &messages[i]
		prevDay = day
	}
	return rows
}

// IsGrouped reports whether cur continues prev's group: same sender and
// created strictly less than window after it. System messages never group.
func IsGrouped(prev, cur domain.Message, window time.Duration) bool {
	if prev.SenderID != cur.SenderID {
		return false
	}
	if prev.Type == domain.MessageSystem || cur.Type == domain.MessageSystem {
		return false
	}
	delta := cur.CreatedAt.Sub(prev.CreatedAt)
	return delta >= 0 && delta < window
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
