package api

import (
	"time"

	"client_go/internal/domain"
)

type createMessageRequest struct {
	ConversationID int64              `json:"conversation_id"`
	Content        string             `json:"content"`
	MessageType    domain.MessageType `json:"message_type"`
	SenderID       int64              `json:"sender_id,omitempty"`
	ReplyToID      *int64             `json:"reply_to_id,omitempty"`
}

type senderDTO struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// messageDTO accepts both the joined sender object and the flat
// sender_username field older servers send.
type messageDTO struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversation_id"`
	SenderID       int64          `json:"sender_id"`
	Sender         *senderDTO     `json:"sender"`
	SenderUsername string         `json:"sender_username"`
	Content        string         `json:"content"`
	MessageType    string         `json:"message_type"`
	CreatedAt      time.Time      `json:"created_at"`
	EditedAt       *time.Time     `json:"edited_at"`
	IsEdited       bool           `json:"is_edited"`
	DeletedAt      *time.Time     `json:"deleted_at"`
	IsDeleted      bool           `json:"is_deleted"`
	ReplyToID      *int64         `json:"reply_to_id"`
	FilePath       *string        `json:"file_path"`
	FileType       *string        `json:"file_type"`
	Metadata       map[string]any `json:"metadata"`
}

type messagePageDTO struct {
	Messages   []messageDTO `json:"messages"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type markReadResponse struct {
	UnreadCount int `json:"unread_count"`
}

type conversationDTO struct {
	ID               int64               `json:"id"`
	Type             string              `json:"type"`
	Title            *string             `json:"title"`
	Name             *string             `json:"name"`
	IsGroup          bool                `json:"is_group"`
	LastMessage      *domain.LastMessage `json:"last_message"`
	LastMessageAt    *time.Time          `json:"last_message_at"`
	UnreadCount      int                 `json:"unread_count"`
	ParticipantCount int                 `json:"participant_count"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (b *errorBody) message() string {
	if b == nil {
		return ""
	}
	if b.Error != "" {
		return b.Error
	}
	return b.Detail
}

func (d messageDTO) toDomain() domain.Message {
	m := domain.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Type:           domain.MessageType(d.MessageType),
		CreatedAt:      d.CreatedAt,
		EditedAt:       d.EditedAt,
		DeletedAt:      d.DeletedAt,
		ReplyToID:      d.ReplyToID,
		Metadata:       d.Metadata,
	}
	switch {
	case d.Sender != nil:
		m.Sender = &domain.UserSummary{
			ID:        d.Sender.ID,
			Username:  d.Sender.Username,
			FullName:  d.Sender.FullName,
			AvatarURL: d.Sender.AvatarURL,
		}
		if m.SenderID == 0 {
			m.SenderID = d.Sender.ID
		}
	case d.SenderUsername != "":
		m.Sender = &domain.UserSummary{ID: d.SenderID, Username: d.SenderUsername}
	}
	if d.FilePath != nil && *d.FilePath != "" {
		fileType := ""
		if d.FileType != nil {
			fileType = *d.FileType
		}
		meta := make(map[string]any, len(d.Metadata)+2)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta["file_path"] = *d.FilePath
		meta["file_type"] = fileType
		m.Metadata = meta
		if m.Type == "" {
			m.Type = domain.FileMessageType(fileType)
		}
	}
	if m.Type == "" {
		m.Type = domain.MessageText
	}
	if m.EditedAt == nil && d.IsEdited {
		at := d.CreatedAt
		m.EditedAt = &at
	}
	if m.DeletedAt == nil && d.IsDeleted {
		at := d.CreatedAt
		m.DeletedAt = &at
	}
	if m.DeletedAt != nil {
		m.Content = ""
	}
	return m
}

func (d conversationDTO) toDomain() domain.Conversation {
	c := domain.Conversation{
		ID:               d.ID,
		Type:             domain.ConversationType(d.Type),
		Title:            d.Title,
		LastMessage:      d.LastMessage,
		LastMessageAt:    d.LastMessageAt,
		UnreadCount:      d.UnreadCount,
		ParticipantCount: d.ParticipantCount,
		UpdatedAt:        d.UpdatedAt,
	}
	if c.Title == nil {
		c.Title = d.Name
	}
	if c.Type == "" {
		c.Type = domain.ConversationDirect
		if d.IsGroup {
			c.Type = domain.ConversationGroup
		}
	}
	if c.LastMessageAt == nil && c.LastMessage != nil {
		at := c.LastMessage.CreatedAt
		c.LastMessageAt = &at
	}
	return c
}
