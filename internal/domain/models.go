package domain

import (
	"strconv"
	"time"
)

// UserSummary is the joined sender profile returned with every message.
type UserSummary struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// DisplayName prefers the full name over the username.
func (u UserSummary) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}

type ConversationType string

const (
	ConversationDirect  ConversationType = "direct"
	ConversationGroup   ConversationType = "group"
	ConversationChannel ConversationType = "channel"
)

// LastMessage is the summary a conversation list row shows.
type LastMessage struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    UserSummary `json:"sender"`
}

// Conversation represents a chat conversation as seen by the viewer.
type Conversation struct {
	ID               int64            `json:"id"`
	Type             ConversationType `json:"type"`
	Title            *string          `json:"title,omitempty"`
	LastMessage      *LastMessage     `json:"last_message,omitempty"`
	LastMessageAt    *time.Time       `json:"last_message_at,omitempty"`
	UnreadCount      int              `json:"unread_count"`
	ParticipantCount int              `json:"participant_count"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsOptimistic reports whether the conversation is a local placeholder that
// has not been confirmed by the server yet. Placeholders use negative ids.
func (c Conversation) IsOptimistic() bool {
	return c.ID < 0
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message represents a single chat message. Exactly one of ID and
// OptimisticID is set: OptimisticID while the send is in flight, ID once the
// server has confirmed it.
type Message struct {
	ID             int64          `json:"id,omitempty"`
	OptimisticID   string         `json:"optimistic_id,omitempty"`
	ConversationID int64          `json:"conversation_id"`
	SenderID       int64          `json:"sender_id"`
	Sender         *UserSummary   `json:"sender,omitempty"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"message_type"`
	CreatedAt      time.Time      `json:"created_at"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
	ReplyToID      *int64         `json:"reply_to_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// IsOptimistic reports whether the message is a local placeholder.
func (m Message) IsOptimistic() bool {
	return m.ID == 0 && m.OptimisticID != ""
}

func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Key returns an identifier that is stable for the lifetime of a cache entry.
func (m Message) Key() string {
	if m.ID != 0 {
		return "m:" + strconv.FormatInt(m.ID, 10)
	}
	return "o:" + m.OptimisticID
}

// Summary converts the message into a conversation list summary.
func (m Message) Summary() LastMessage {
	var sender UserSummary
	if m.Sender != nil {
		sender = *m.Sender
	} else {
		sender = UserSummary{ID: m.SenderID}
	}
	return LastMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Sender:    sender,
	}
}

// MessagePage is one page of history as returned by the server.
type MessagePage struct {
	Messages   []Message
	HasMore    bool
	NextCursor string
}

// CreateMessageInput is the outbound create-message call.
type CreateMessageInput struct {
	ConversationID int64
	Content        string
	Type           MessageType
	SenderID       int64
	ReplyToID      *int64
}
