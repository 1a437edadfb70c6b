package viewport

import "sync"

// Ledger remembers the last scroll offset of each conversation so returning
// to it restores the reading position.
type Ledger struct {
	mu      sync.Mutex
	offsets map[int64]int
}

func NewLedger() *Ledger {
	return &Ledger{offsets: make(map[int64]int)}
}

func (l *Ledger) Save(conversationID int64, offset int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offsets[conversationID] = offset
}

func (l *Ledger) Load(conversationID int64) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset, ok := l.offsets[conversationID]
	return offset, ok
}

func (l *Ledger) Forget(conversationID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.offsets, conversationID)
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offsets = make(map[int64]int)
}
