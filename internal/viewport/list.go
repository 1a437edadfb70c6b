package viewport

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"client_go/internal/domain"
)

type ScrollBehavior string

const (
	ScrollInstant ScrollBehavior = "instant"
	ScrollSmooth  ScrollBehavior = "smooth"
)

type ScrollReason string

const (
	ReasonRestore ScrollReason = "restore"
	ReasonBottom  ScrollReason = "bottom"
	ReasonAppend  ScrollReason = "append"
	ReasonPrepend ScrollReason = "prepend"
	ReasonMeasure ScrollReason = "measure"
	ReasonResize  ScrollReason = "resize"
	ReasonJump    ScrollReason = "jump"
)

// ScrollEvent is a scroll position the host must apply.
type ScrollEvent struct {
	ConversationID int64          `json:"conversation_id"`
	Offset         int            `json:"offset"`
	Behavior       ScrollBehavior `json:"behavior"`
	Reason         ScrollReason   `json:"reason"`
}

// Measurer computes the real height of a row at a given width.
type Measurer interface {
	Measure(r Row, width int) int
}

type Config struct {
	GroupingWindow time.Duration
	// NearBottom is the distance from the bottom, in pixels, under which the
	// list follows new messages.
	NearBottom      int
	Overscan        int
	Estimator       Estimator
	Location        *time.Location
	ReducedMotion   bool
	HeightCacheSize int
}

func DefaultConfig() Config {
	return Config{
		GroupingWindow:  5 * time.Minute,
		NearBottom:      100,
		Overscan:        200,
		Estimator:       DefaultEstimator(),
		Location:        time.Local,
		HeightCacheSize: 4096,
	}
}

// PositionedRow is a row with its layout position.
type PositionedRow struct {
	Row
	Top    int `json:"top"`
	Height int `json:"height"`
}

// Window describes the rendered slice of the list.
type Window struct {
	ConversationID int64 `json:"conversation_id"`
	Start          int   `json:"start"`
	End            int   `json:"end"`
	Rows           int   `json:"rows"`
	ScrollTop      int   `json:"scroll_top"`
	ViewportHeight int   `json:"viewport_height"`
	TotalHeight    int   `json:"total_height"`
	Unread         int   `json:"unread"`
	NearBottom     bool  `json:"near_bottom"`
}

// List is the layout state of the message list of the open conversation.
type List struct {
	cfg     Config
	ledger  *Ledger
	heights *HeightCache
	log     zerolog.Logger

	mu             sync.Mutex
	conversationID int64
	rows           []Row
	offsets        []int
	index          map[string]int
	scrollTop      int
	height         int
	width          int
	unread         int
	viewerID       int64
	// pendingRestore holds a ledger offset for a conversation opened before
	// its messages were loaded.
	pendingRestore *int
	listeners      []func(ScrollEvent)
}

func NewList(cfg Config, ledger *Ledger, log zerolog.Logger) *List {
	if ledger == nil {
		ledger = NewLedger()
	}
	l := &List{
		cfg:     cfg,
		ledger:  ledger,
		heights: NewHeightCache(cfg.HeightCacheSize),
		log:     log.With().Str("component", "viewport").Logger(),
	}
	l.layoutLocked()
	return l
}

// OnScroll registers a listener for programmatic scroll changes.
func (l *List) OnScroll(fn func(ScrollEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// SetViewer sets the signed-in user. Their messages never count as unread
// arrivals.
func (l *List) SetViewer(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viewerID = userID
}

// SetReducedMotion makes every programmatic scroll instant.
func (l *List) SetReducedMotion(reduced bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.ReducedMotion = reduced
}

// Open shows a conversation. The saved offset from the ledger is restored
// exactly; without one the list starts at the bottom. The conversation
// shown before is closed first.
func (l *List) Open(conversationID int64, messages []domain.Message) {
	l.mu.Lock()
	if l.conversationID != 0 && l.conversationID != conversationID {
		l.ledger.Save(l.conversationID, l.scrollTop)
	}
	l.conversationID = conversationID
	l.rows = BuildRows(messages, l.cfg.Location, l.cfg.GroupingWindow)
	l.layoutLocked()
	l.unread = 0
	l.pendingRestore = nil

	reason := ReasonBottom
	if offset, ok := l.ledger.Load(conversationID); ok {
		l.scrollTop = l.clamp(offset)
		reason = ReasonRestore
		if len(l.rows) == 0 {
			l.pendingRestore = &offset
		}
	} else {
		l.scrollTop = l.maxScroll()
	}
	ev := l.eventLocked(reason, ScrollInstant)
	listeners := l.listeners
	l.mu.Unlock()

	emit(listeners, ev)
}

// Update re-lays out the list after the conversation's messages changed.
//
// Older rows inserted above the first row shift the offset by their height
// so the visible content does not move. Newly arrived rows at the end
// scroll to the bottom if the list was near the bottom before the update,
// otherwise they add to the unread count. The viewer's own placeholders
// always scroll to the bottom.
func (l *List) Update(messages []domain.Message) {
	l.mu.Lock()
	if l.conversationID == 0 {
		l.mu.Unlock()
		return
	}
	wasNear := l.nearBottomLocked()
	oldRows, oldOffsets, oldIndex := l.rows, l.offsets, l.index

	l.rows = BuildRows(messages, l.cfg.Location, l.cfg.GroupingWindow)
	l.layoutLocked()

	var events []ScrollEvent
	oldFirst := firstMessageKey(oldRows)
	if oldFirst != "" && firstMessageKey(l.rows) != oldFirst {
		if ni, ok := l.index[oldFirst]; ok {
			if delta := l.offsets[ni] - oldOffsets[oldIndex[oldFirst]]; delta != 0 {
				l.scrollTop = l.clamp(l.scrollTop + delta)
				events = append(events, l.eventLocked(ReasonPrepend, ScrollInstant))
			}
		}
	}

	arrived, own, mine := l.arrivalsLocked(oldRows, oldIndex)
	switch {
	case oldFirst == "" && len(l.rows) > 0:
		// First content for a conversation opened while empty.
		if l.pendingRestore != nil {
			l.scrollTop = l.clamp(*l.pendingRestore)
			l.pendingRestore = nil
			events = append(events, l.eventLocked(ReasonRestore, ScrollInstant))
		} else if wasNear {
			l.scrollTop = l.maxScroll()
			events = append(events, l.eventLocked(ReasonBottom, ScrollInstant))
		}
	case own > 0 || (arrived+mine > 0 && wasNear):
		l.scrollTop = l.maxScroll()
		l.unread = 0
		events = append(events, l.eventLocked(ReasonAppend, l.behavior()))
	case arrived > 0:
		l.unread += arrived
		l.scrollTop = l.clamp(l.scrollTop)
	default:
		l.scrollTop = l.clamp(l.scrollTop)
	}
	listeners := l.listeners
	l.mu.Unlock()

	for _, ev := range events {
		emit(listeners, ev)
	}
}

// SetViewport records the viewport size. A width change invalidates every
// measured height. A list resting at the bottom stays there.
func (l *List) SetViewport(height, width int) {
	l.mu.Lock()
	atBottom := l.scrollTop >= l.maxScroll()
	if width != l.width && l.width != 0 {
		l.heights.Purge()
	}
	l.height, l.width = height, width
	l.layoutLocked()

	var events []ScrollEvent
	if atBottom && l.conversationID != 0 {
		if next := l.maxScroll(); next != l.scrollTop {
			l.scrollTop = next
			events = append(events, l.eventLocked(ReasonResize, ScrollInstant))
		}
	} else {
		l.scrollTop = l.clamp(l.scrollTop)
	}
	listeners := l.listeners
	l.mu.Unlock()

	for _, ev := range events {
		emit(listeners, ev)
	}
}

// ScrollTo records a user scroll. Reaching the bottom clears the unread
// count.
func (l *List) ScrollTo(top int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scrollTop = l.clamp(top)
	if l.nearBottomLocked() {
		l.unread = 0
	}
}

// ScrollToBottom jumps to the last row and clears the unread count.
func (l *List) ScrollToBottom() {
	l.mu.Lock()
	l.scrollTop = l.maxScroll()
	l.unread = 0
	ev := l.eventLocked(ReasonJump, l.behavior())
	listeners := l.listeners
	l.mu.Unlock()

	emit(listeners, ev)
}

// Measured feeds back the real height of a rendered row. Growth of a row
// above the viewport is compensated so the visible content does not move.
func (l *List) Measured(key string, height int) {
	l.mu.Lock()
	i, ok := l.index[key]
	if !ok || height <= 0 {
		l.mu.Unlock()
		return
	}
	row := l.rows[i]
	oldHeight := l.offsets[i+1] - l.offsets[i]
	atBottom := l.scrollTop >= l.maxScroll()
	if !l.heights.Set(row, height) || oldHeight == height {
		l.mu.Unlock()
		return
	}
	l.layoutLocked()

	var events []ScrollEvent
	switch {
	case atBottom:
		l.scrollTop = l.maxScroll()
		events = append(events, l.eventLocked(ReasonMeasure, ScrollInstant))
	case l.offsets[i] < l.scrollTop:
		l.scrollTop = l.clamp(l.scrollTop + height - oldHeight)
		events = append(events, l.eventLocked(ReasonMeasure, ScrollInstant))
	}
	listeners := l.listeners
	l.mu.Unlock()

	for _, ev := range events {
		emit(listeners, ev)
	}
}

// MeasureWith measures the visible rows that have no cached height yet.
func (l *List) MeasureWith(m Measurer) {
	l.mu.Lock()
	width := l.width
	start, end := l.windowLocked()
	var pending []Row
	for i := start; i < end; i++ {
		if _, ok := l.heights.Get(l.rows[i]); !ok {
			pending = append(pending, l.rows[i])
		}
	}
	l.mu.Unlock()

	for _, r := range pending {
		l.Measured(r.Key, m.Measure(r, width))
	}
}

// Close saves the scroll offset to the ledger and empties the list.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conversationID != 0 {
		l.ledger.Save(l.conversationID, l.scrollTop)
	}
	l.conversationID = 0
	l.rows = nil
	l.unread = 0
	l.scrollTop = 0
	l.pendingRestore = nil
	l.layoutLocked()
}

func (l *List) ConversationID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID
}

func (l *List) ScrollTop() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scrollTop
}

func (l *List) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}

// IsNearBottom reports whether the distance from the bottom is below the
// near-bottom threshold.
func (l *List) IsNearBottom() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nearBottomLocked()
}

// IsNearTop reports whether fewer than threshold pixels are above the
// viewport.
func (l *List) IsNearTop(threshold int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID != 0 && l.scrollTop < threshold
}

// ShowScrollToBottom reports whether the scroll-to-bottom button is shown.
func (l *List) ShowScrollToBottom() bool {
	return !l.IsNearBottom()
}

func (l *List) Window() Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	start, end := l.windowLocked()
	return Window{
		ConversationID: l.conversationID,
		Start:          start,
		End:            end,
		Rows:           len(l.rows),
		ScrollTop:      l.scrollTop,
		ViewportHeight: l.height,
		TotalHeight:    l.total(),
		Unread:         l.unread,
		NearBottom:     l.nearBottomLocked(),
	}
}

// VisibleRows returns the rows intersecting the viewport plus overscan.
func (l *List) VisibleRows() []PositionedRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	start, end := l.windowLocked()
	out := make([]PositionedRow, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, PositionedRow{
			Row:    l.rows[i],
			Top:    l.offsets[i],
			Height: l.offsets[i+1] - l.offsets[i],
		})
	}
	return out
}

func (l *List) layoutLocked() {
	l.offsets = make([]int, len(l.rows)+1)
	l.index = make(map[string]int, len(l.rows))
	for i, r := range l.rows {
		h, ok := l.heights.Get(r)
		if !ok {
			h = l.cfg.Estimator.Estimate(r)
		}
		l.offsets[i+1] = l.offsets[i] + h
		l.index[r.Key] = i
	}
}

func (l *List) windowLocked() (int, int) {
	top := l.scrollTop - l.cfg.Overscan
	bottom := l.scrollTop + l.height + l.cfg.Overscan
	n := len(l.rows)
	start := sort.Search(n, func(i int) bool { return l.offsets[i+1] > top })
	end := sort.Search(n, func(i int) bool { return l.offsets[i] >= bottom })
	if end < start {
		end = start
	}
	return start, end
}

// arrivalsLocked counts message rows appended after the newest row that was
// already shown: messages of other users, the viewer's new placeholders and
// the viewer's confirmed messages. Only the first are unread arrivals.
// Without a known viewer, a placeholder that disappeared was replaced by its
// confirmed message, which then does not count either.
func (l *List) arrivalsLocked(oldRows []Row, oldIndex map[string]int) (arrived, own, mine int) {
	if len(oldRows) == 0 {
		return 0, 0, 0
	}
	lastSurvivor := -1
	for i := len(l.rows) - 1; i >= 0; i-- {
		if l.rows[i].Kind != RowMessage {
			continue
		}
		if _, ok := oldIndex[l.rows[i].Key]; ok {
			lastSurvivor = i
			break
		}
	}
	for i := lastSurvivor + 1; i < len(l.rows); i++ {
		r := l.rows[i]
		if r.Kind != RowMessage {
			continue
		}
		if _, ok := oldIndex[r.Key]; ok {
			continue
		}
		switch {
		case r.Message.IsOptimistic():
			own++
		case l.viewerID != 0 && r.Message.SenderID == l.viewerID:
			mine++
		default:
			arrived++
		}
	}
	if l.viewerID == 0 {
		for _, r := range oldRows {
			if r.Kind == RowMessage && r.Message.IsOptimistic() {
				if _, ok := l.index[r.Key]; !ok {
					arrived--
				}
			}
		}
	}
	if arrived < 0 {
		arrived = 0
	}
	return arrived, own, mine
}

func (l *List) nearBottomLocked() bool {
	if l.height == 0 {
		return true
	}
	return l.total()-(l.scrollTop+l.height) < l.cfg.NearBottom
}

func (l *List) total() int {
	return l.offsets[len(l.offsets)-1]
}

func (l *List) maxScroll() int {
	if m := l.total() - l.height; m > 0 {
		return m
	}
	return 0
}

func (l *List) clamp(top int) int {
	if top < 0 {
		return 0
	}
	if m := l.maxScroll(); top > m {
		return m
	}
	return top
}

func (l *List) behavior() ScrollBehavior {
	if l.cfg.ReducedMotion {
		return ScrollInstant
	}
	return ScrollSmooth
}

func (l *List) eventLocked(reason ScrollReason, behavior ScrollBehavior) ScrollEvent {
	l.log.Debug().
		Int64("conversation_id", l.conversationID).
		Int("offset", l.scrollTop).
		Str("reason", string(reason)).
		Msg("scroll")
	return ScrollEvent{
		ConversationID: l.conversationID,
		Offset:         l.scrollTop,
		Behavior:       behavior,
		Reason:         reason,
	}
}

func emit(listeners []func(ScrollEvent), ev ScrollEvent) {
	for _, fn := range listeners {
		fn(ev)
	}
}

func firstMessageKey(rows []Row) string {
	for _, r := range rows {
		if r.Kind == RowMessage {
			return r.Key
		}
	}
	return ""
}
