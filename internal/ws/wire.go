package ws

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"client_go/internal/domain"
)

// decodeFrame turns one server frame into an event. Frames the client does
// not consume (read receipts, call signaling, errors) return ok == false.
//
// Inbound frame types:
//   - message, message_sent              -> EventMessage
//   - message_update / message_edited    -> EventMessageUpdate
//   - message_delete / message_deleted   -> EventMessageDelete
//   - typing                             -> EventTyping
//   - presence, user_online, user_offline,
//     user_joined, user_left             -> EventPresence
func decodeFrame(data []byte) (domain.Event, bool, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Event{}, false, fmt.Errorf("decode frame: %w", err)
	}
	msgType, _ := payload["type"].(string)
	convID := num(payload, "conversation_id")

	switch msgType {

	case "message", "message_sent":
		if nested, ok := payload["message"].(map[string]any); ok {
			payload = nested
			if c := num(payload, "conversation_id"); c != 0 {
				convID = c
			}
		}
		id := num(payload, "message_id")
		if id == 0 {
			id = num(payload, "id")
		}
		if id == 0 || convID == 0 {
			return domain.Event{}, false, fmt.Errorf("%w: message frame without ids", domain.ErrMalformedResponse)
		}
		m := domain.Message{
			ID:             id,
			ConversationID: convID,
			SenderID:       num(payload, "sender_id"),
			Content:        str(payload, "content"),
			Type:           domain.MessageType(str(payload, "message_type")),
			CreatedAt:      timestamp(payload, "timestamp", "created_at"),
		}
		if username := str(payload, "sender_username"); username != "" {
			m.Sender = &domain.UserSummary{ID: m.SenderID, Username: username}
		}
		if filePath := str(payload, "file_path"); filePath != "" {
			m.Metadata = map[string]any{
				"file_path": filePath,
				"file_type": str(payload, "file_type"),
			}
			if m.Type == "" {
				m.Type = domain.FileMessageType(str(payload, "file_type"))
			}
		}
		if m.Type == "" {
			m.Type = domain.MessageText
		}
		if replyTo := num(payload, "reply_to_id"); replyTo != 0 {
			m.ReplyToID = &replyTo
		}
		if deleted, _ := payload["is_deleted"].(bool); deleted {
			at := m.CreatedAt
			m.DeletedAt = &at
			m.Content = ""
		}
		return domain.Event{Type: domain.EventMessage, ConversationID: convID, Message: &m}, true, nil

	case "message_update", "message_edited":
		id := num(payload, "message_id")
		if id == 0 {
			return domain.Event{}, false, fmt.Errorf("%w: edit frame without message id", domain.ErrMalformedResponse)
		}
		return domain.Event{
			Type:           domain.EventMessageUpdate,
			ConversationID: convID,
			Update: &domain.MessageUpdate{
				MessageID: id,
				Content:   str(payload, "content"),
				EditedAt:  timestamp(payload, "edited_at", "timestamp"),
			},
		}, true, nil

	case "message_delete", "message_deleted":
		id := num(payload, "message_id")
		if id == 0 {
			return domain.Event{}, false, fmt.Errorf("%w: delete frame without message id", domain.ErrMalformedResponse)
		}
		return domain.Event{
			Type:           domain.EventMessageDelete,
			ConversationID: convID,
			Delete: &domain.MessageDelete{
				MessageID: id,
				DeletedAt: timestamp(payload, "deleted_at", "timestamp"),
			},
		}, true, nil

	case "typing":
		typing := true
		if v, ok := payload["is_typing"].(bool); ok {
			typing = v
		}
		return domain.Event{
			Type:           domain.EventTyping,
			ConversationID: convID,
			Typing: &domain.TypingEvent{
				UserID:   num(payload, "user_id"),
				Username: str(payload, "username"),
				Typing:   typing,
				At:       timestamp(payload, "timestamp"),
			},
		}, true, nil

	case "presence", "user_online", "user_offline", "user_joined", "user_left":
		kind := presenceKind(msgType, str(payload, "status"))
		if kind == "" {
			return domain.Event{}, false, nil
		}
		return domain.Event{
			Type:           domain.EventPresence,
			ConversationID: convID,
			Presence: &domain.PresenceEvent{
				UserID:   num(payload, "user_id"),
				Username: str(payload, "username"),
				Kind:     kind,
			},
		}, true, nil
	}
	return domain.Event{}, false, nil
}

func presenceKind(msgType, status string) domain.PresenceKind {
	switch msgType {
	case "user_online":
		return domain.PresenceOnline
	case "user_offline":
		return domain.PresenceOffline
	case "user_joined":
		return domain.PresenceJoin
	case "user_left":
		return domain.PresenceLeave
	}
	switch domain.PresenceKind(status) {
	case domain.PresenceOnline, domain.PresenceOffline, domain.PresenceJoin, domain.PresenceLeave:
		return domain.PresenceKind(status)
	}
	return ""
}

func num(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func str(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// timestamp returns the first parseable RFC 3339 value among keys, or the
// current time if none is present.
func timestamp(payload map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		s := str(payload, key)
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// typingFrame is the outbound typing notification.
func typingFrame(conversationID int64, typing bool) map[string]any {
	return map[string]any{
		"type":            "typing",
		"conversation_id": conversationID,
		"is_typing":       typing,
	}
}

// messageSentFrame announces a message that was already created over REST.
// It uses its own type: a "message" frame asks the server to create one.
func messageSentFrame(m domain.Message) map[string]any {
	frame := map[string]any{
		"type":            "message_sent",
		"conversation_id": m.ConversationID,
		"message_id":      m.ID,
		"content":         m.Content,
		"sender_id":       m.SenderID,
		"message_type":    string(m.Type),
		"timestamp":       m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if m.Sender != nil {
		frame["sender_username"] = m.Sender.Username
	}
	if m.ReplyToID != nil {
		frame["reply_to_id"] = *m.ReplyToID
	}
	if path, ok := m.Metadata["file_path"].(string); ok {
		frame["file_path"] = path
	}
	if fileType, ok := m.Metadata["file_type"].(string); ok {
		frame["file_type"] = fileType
	}
	return frame
}
