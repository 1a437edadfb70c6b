package viewport

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"client_go/internal/domain"
)

// Estimator guesses row heights before they are measured.
type Estimator struct {
	Grouped   int
	NewGroup  int
	Separator int
	// Extra height for rich bodies.
	Image int
	File  int
}

func DefaultEstimator() Estimator {
	return Estimator{
		Grouped:   28,
		NewGroup:  56,
		Separator: 32,
		Image:     180,
		File:      40,
	}
}

// Estimate returns the estimated height of r in pixels.
func (e Estimator) Estimate(r Row) int {
	if r.Kind == RowSeparator {
		return e.Separator
	}
	h := e.NewGroup
	if r.Grouped {
		h = e.Grouped
	}
	if r.Message.IsDeleted() {
		return h
	}
	extra := bodyExtra{est: e}
	r.Message.Body().Accept(&extra)
	return h + extra.px
}

type bodyExtra struct {
	est Estimator
	px  int
}

func (b *bodyExtra) VisitText(domain.TextBody)     {}
func (b *bodyExtra) VisitImage(domain.ImageBody)   { b.px = b.est.Image }
func (b *bodyExtra) VisitFile(domain.FileBody)     { b.px = b.est.File }
func (b *bodyExtra) VisitSystem(domain.SystemBody) {}

// Fingerprint identifies the rendered content of a row. A measured height
// is only reused while the fingerprint is unchanged.
func Fingerprint(r Row) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.Key)
	if r.Kind == RowSeparator {
		return d.Sum64()
	}
	m := r.Message
	_, _ = d.WriteString("\x00" + string(m.Type) + "\x00" + m.Content)
	if r.Grouped {
		_, _ = d.WriteString("\x00g")
	}
	if m.EditedAt != nil {
		_, _ = d.WriteString("\x00e" + strconv.FormatInt(m.EditedAt.UnixNano(), 10))
	}
	if m.DeletedAt != nil {
		_, _ = d.WriteString("\x00x")
	}
	if m.Sender != nil {
		_, _ = d.WriteString("\x00s" + m.Sender.DisplayName())
	}
	return d.Sum64()
}

type measurement struct {
	fingerprint uint64
	height      int
}

// HeightCache keeps measured heights by row key, bounded in size. Entries
// whose row content changed since the measurement are ignored.
type HeightCache struct {
	entries *lru.Cache
}

func NewHeightCache(size int) *HeightCache {
	if size <= 0 {
		size = 4096
	}
	entries, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &HeightCache{entries: entries}
}

// Get returns the measured height of r if its content is unchanged.
func (c *HeightCache) Get(r Row) (int, bool) {
	v, ok := c.entries.Get(r.Key)
	if !ok {
		return 0, false
	}
	m := v.(measurement)
	if m.fingerprint != Fingerprint(r) {
		return 0, false
	}
	return m.height, true
}

// Set records a measured height. It reports whether the cached height
// changed.
func (c *HeightCache) Set(r Row, height int) bool {
	if prev, ok := c.Get(r); ok && prev == height {
		return false
	}
	c.entries.Add(r.Key, measurement{fingerprint: Fingerprint(r), height: height})
	return true
}

// Purge drops every measurement, e.g. after the viewport width changed.
func (c *HeightCache) Purge() {
	c.entries.Purge()
}

func (c *HeightCache) Len() int {
	return c.entries.Len()
}
