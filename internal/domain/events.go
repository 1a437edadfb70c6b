package domain

import "time"

// EventType names an inbound realtime event.
type EventType string

const (
	EventMessage       EventType = "message"
	EventMessageUpdate EventType = "message_update"
	EventMessageDelete EventType = "message_delete"
	EventTyping        EventType = "typing"
	EventPresence      EventType = "presence"
)

// Event is an inbound realtime event. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type           EventType
	ConversationID int64

	Message  *Message
	Update   *MessageUpdate
	Delete   *MessageDelete
	Typing   *TypingEvent
	Presence *PresenceEvent
}

type MessageUpdate struct {
	MessageID int64
	Content   string
	EditedAt  time.Time
}

type MessageDelete struct {
	MessageID int64
	DeletedAt time.Time
}

type TypingEvent struct {
	UserID   int64
	Username string
	Typing   bool
	At       time.Time
}

type PresenceKind string

const (
	PresenceOnline  PresenceKind = "online"
	PresenceOffline PresenceKind = "offline"
	PresenceJoin    PresenceKind = "join"
	PresenceLeave   PresenceKind = "leave"
)

type PresenceEvent struct {
	UserID   int64
	Username string
	Kind     PresenceKind
}
