package chat

import (
	"fmt"

	"client_go/internal/cache"
	"client_go/internal/domain"
	"client_go/internal/notify"
	"client_go/internal/realtime"
	"client_go/internal/viewport"
)

// Snapshot is a read-only view of the client for debugging.
type Snapshot struct {
	ActiveConversation int64                        `json:"active_conversation"`
	Viewer             domain.UserSummary           `json:"viewer"`
	Subscriptions      []realtime.ConversationState `json:"subscriptions"`
	Typing             string                       `json:"typing,omitempty"`
	TypingUsers        []int64                      `json:"typing_users"`
	Online             []int64                      `json:"online"`
	Conversations      []ConversationSummary        `json:"conversations"`
	PendingSends       int                          `json:"pending_sends"`
	Toasts             []notify.Toast               `json:"toasts"`
	List               viewport.Window              `json:"list"`
}

type ConversationSummary struct {
	ID       int64  `json:"id"`
	Title    string `json:"title,omitempty"`
	Unread   int    `json:"unread_count"`
	Messages int    `json:"cached_messages"`
}

// WindowView is the layout of the open conversation's visible rows.
type WindowView struct {
	viewport.Window
	Visible []viewport.PositionedRow `json:"visible"`
}

func (c *Client) Snapshot() Snapshot {
	active := c.state.ActiveConversation()
	snap := Snapshot{
		ActiveConversation: active,
		Viewer:             c.state.Viewer(),
		Subscriptions:      c.realtime.States(),
		Online:             c.presence.Online(),
		PendingSends:       len(c.sender.Pending()),
		Toasts:             c.toasts.Active(),
		List:               c.list.Window(),
	}
	if active != 0 {
		snap.Typing = c.state.Typing().Summary(active)
		snap.TypingUsers = c.state.Typing().TypingUsers(active)
	}
	for _, conv := range c.store.Conversations() {
		s := ConversationSummary{
			ID:       conv.ID,
			Unread:   conv.UnreadCount,
			Messages: c.store.Messages(conv.ID).Len(),
		}
		if conv.Title != nil {
			s.Title = *conv.Title
		}
		snap.Conversations = append(snap.Conversations, s)
	}
	return snap
}

// Window returns the visible rows of a conversation. Only the open
// conversation has a layout.
func (c *Client) Window(conversationID int64) (WindowView, error) {
	if conversationID == 0 || conversationID != c.list.ConversationID() {
		return WindowView{}, fmt.Errorf("%w: conversation %d is not open", domain.ErrNotFound, conversationID)
	}
	return WindowView{Window: c.list.Window(), Visible: c.list.VisibleRows()}, nil
}

// Messages returns the cached messages of a conversation, oldest first.
func (c *Client) Messages(conversationID int64) []domain.Message {
	return cache.Flatten(c.store.Messages(conversationID))
}
