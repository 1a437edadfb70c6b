package domain

import (
	"context"
)

// MessageAPI defines the server operations the client relies on.
type MessageAPI interface {
	CreateMessage(ctx context.Context, in CreateMessageInput) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64, before string, limit int) (*MessagePage, error)
	MarkRead(ctx context.Context, conversationID int64) (int, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
}

// EventSink receives realtime events for one subscription.
type EventSink func(Event)

// Subscription is a live realtime subscription for one conversation.
type Subscription interface {
	Close() error
}

// Transport opens realtime subscriptions.
type Transport interface {
	Subscribe(ctx context.Context, conversationID int64, sink EventSink) (Subscription, error)
}

// TypingPublisher broadcasts the viewer's typing state.
type TypingPublisher interface {
	PublishTyping(ctx context.Context, conversationID int64, typing bool) error
}

// MessagePublisher tells the other participants about a message the viewer
// created over REST.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, m Message) error
}

// Publisher is everything the client sends over the realtime connection.
type Publisher interface {
	TypingPublisher
	MessagePublisher
}
