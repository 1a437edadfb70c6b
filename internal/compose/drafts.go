// Package compose keeps the composer text of every conversation.
package compose

import "sync"

// Drafts maps conversation ids to unsent composer text.
type Drafts struct {
	mu   sync.Mutex
	text map[int64]string
}

func NewDrafts() *Drafts {
	return &Drafts{text: make(map[int64]string)}
}

func (d *Drafts) Get(conversationID int64) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text[conversationID]
}

func (d *Drafts) Set(conversationID int64, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == "" {
		delete(d.text, conversationID)
		return
	}
	d.text[conversationID] = text
}

// Clear empties the composer, typically right after submitting.
func (d *Drafts) Clear(conversationID int64) {
	d.Set(conversationID, "")
}

// Restore puts the content of a failed send back into the composer. Text
// typed since the submit is kept after it.
func (d *Drafts) Restore(conversationID int64, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur := d.text[conversationID]; cur != "" {
		d.text[conversationID] = content + "\n" + cur
		return
	}
	d.text[conversationID] = content
}

// Reset drops every draft.
func (d *Drafts) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = make(map[int64]string)
}
