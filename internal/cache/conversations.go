package cache

import (
	"client_go/internal/domain"
)

// ConversationList is the viewer's conversation list, most recently active
// first.
type ConversationList []domain.Conversation

// Find returns the conversation with the given id.
func (l ConversationList) Find(id int64) (domain.Conversation, bool) {
	for _, c := range l {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

func (l ConversationList) index(id int64) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateConversationLastMessage records m as the newest message of the
// conversation and returns a new list.
//
// unread_count goes up by exactly one when the sender is not the viewer and
// the conversation is not the active one; it is never decremented here.
// Callers dedupe redelivered messages by checking the message cache before
// calling; a message already recorded as last message is a no-op on its own.
// Messages older than the current last message bump unread but do not
// replace the summary.
func UpdateConversationLastMessage(
	l ConversationList,
	conversationID int64,
	m domain.Message,
	viewerID int64,
	isActiveConversation bool,
) ConversationList {
	if conversationID == 0 || m.ID == 0 || m.IsDeleted() {
		return l
	}
	idx := l.index(conversationID)
	if idx < 0 {
		return l
	}
	conv := l[idx]
	if conv.LastMessage != nil && conv.LastMessage.ID == m.ID {
		return l
	}

	newer := conv.LastMessageAt == nil || !m.CreatedAt.Before(*conv.LastMessageAt)
	if newer {
		summary := m.Summary()
		at := m.CreatedAt
		conv.LastMessage = &summary
		conv.LastMessageAt = &at
		if m.CreatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = m.CreatedAt
		}
	}
	if m.SenderID != viewerID && !isActiveConversation {
		conv.UnreadCount++
	}

	out := make(ConversationList, 0, len(l))
	if newer {
		out = append(out, conv)
		out = append(out, l[:idx]...)
		out = append(out, l[idx+1:]...)
		return out
	}
	out = append(out, l...)
	out[idx] = conv
	return out
}

// ApplyLastMessageEdit keeps the summary in sync when the last message is
// edited.
func ApplyLastMessageEdit(l ConversationList, conversationID, messageID int64, content string) ConversationList {
	idx := l.index(conversationID)
	if idx < 0 || l[idx].LastMessage == nil || l[idx].LastMessage.ID != messageID {
		return l
	}
	out := append(ConversationList(nil), l...)
	summary := *out[idx].LastMessage
	summary.Content = content
	out[idx].LastMessage = &summary
	return out
}

// RecomputeLastMessage points the summary at the newest non-deleted cached
// message. Used after the current last message is deleted.
func RecomputeLastMessage(l ConversationList, conversationID int64, c MessageCache) ConversationList {
	idx := l.index(conversationID)
	if idx < 0 {
		return l
	}
	out := append(ConversationList(nil), l...)
	msgs := Flatten(c)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == 0 || msgs[i].IsDeleted() {
			continue
		}
		summary := msgs[i].Summary()
		at := msgs[i].CreatedAt
		out[idx].LastMessage = &summary
		out[idx].LastMessageAt = &at
		return out
	}
	out[idx].LastMessage = nil
	return out
}

// SetUnread applies the unread count reported by the server.
func SetUnread(l ConversationList, conversationID int64, unread int) ConversationList {
	idx := l.index(conversationID)
	if idx < 0 {
		return l
	}
	if unread < 0 {
		unread = 0
	}
	out := append(ConversationList(nil), l...)
	out[idx].UnreadCount = unread
	return out
}
