package realtime

import (
	"client_go/internal/domain"
	"client_go/internal/metrics"
)

// Handlers receive the events of one subscription. Nil handlers drop their
// event type.
type Handlers struct {
	OnMessage       func(m domain.Message)
	OnMessageUpdate func(conversationID int64, u domain.MessageUpdate)
	OnMessageDelete func(conversationID int64, d domain.MessageDelete)
	OnTyping        func(conversationID int64, t domain.TypingEvent)
	OnPresence      func(conversationID int64, p domain.PresenceEvent)
}

// Dispatch routes ev to the matching handler. It reports whether a handler
// ran.
func Dispatch(h Handlers, ev domain.Event) bool {
	handled := false
	switch ev.Type {
	case domain.EventMessage:
		if ev.Message != nil && h.OnMessage != nil {
			m := *ev.Message
			if m.ConversationID == 0 {
				m.ConversationID = ev.ConversationID
			}
			h.OnMessage(m)
			handled = true
		}
	case domain.EventMessageUpdate:
		if ev.Update != nil && h.OnMessageUpdate != nil {
			h.OnMessageUpdate(ev.ConversationID, *ev.Update)
			handled = true
		}
	case domain.EventMessageDelete:
		if ev.Delete != nil && h.OnMessageDelete != nil {
			h.OnMessageDelete(ev.ConversationID, *ev.Delete)
			handled = true
		}
	case domain.EventTyping:
		if ev.Typing != nil && h.OnTyping != nil {
			h.OnTyping(ev.ConversationID, *ev.Typing)
			handled = true
		}
	case domain.EventPresence:
		if ev.Presence != nil && h.OnPresence != nil {
			h.OnPresence(ev.ConversationID, *ev.Presence)
			handled = true
		}
	}
	if handled {
		metrics.RecordEvent(string(ev.Type))
	}
	return handled
}
