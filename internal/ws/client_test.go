package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/domain"
	"client_go/internal/ws"
)

const token = "test-token"

type server struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan map[string]any
	auth     chan string
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		conns:    make(chan *websocket.Conn, 1),
		received: make(chan map[string]any, 8),
		auth:     make(chan string, 1),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{"bearer"}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.auth <- r.Header.Get("Sec-WebSocket-Protocol")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				return
			}
			s.received <- payload
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

type sinkRecorder chan domain.Event

func (r sinkRecorder) sink(ev domain.Event) { r <- ev }

func (r sinkRecorder) next(t *testing.T) domain.Event {
	t.Helper()
	select {
	case ev := <-r:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func (r sinkRecorder) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientRoutesFramesByConversation(t *testing.T) {
	srv := newServer(t)
	client := ws.NewClient(ws.Options{URL: srv.wsURL(), Token: token, PingInterval: time.Second}, zerolog.Nop())
	defer client.Close()

	seven, eight := make(sinkRecorder, 8), make(sinkRecorder, 8)
	ctx := context.Background()
	sub7, err := client.Subscribe(ctx, 7, seven.sink)
	require.NoError(t, err)
	_, err = client.Subscribe(ctx, 8, eight.sink)
	require.NoError(t, err)

	assert.Equal(t, "bearer, "+token, <-srv.auth)
	conn := <-srv.conns

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":            "message",
		"conversation_id": 7,
		"message_id":      101,
		"content":         "hi",
		"sender_id":       2,
		"sender_username": "bob",
		"timestamp":       "2024-03-01T12:00:00Z",
	}))
	ev := seven.next(t)
	require.Equal(t, domain.EventMessage, ev.Type)
	assert.Equal(t, int64(101), ev.Message.ID)
	assert.Equal(t, "bob", ev.Message.Sender.Username)
	eight.none(t)

	// Presence is not scoped to a conversation and reaches every sink.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "user_online", "user_id": 2, "username": "bob"}))
	assert.Equal(t, domain.PresenceOnline, seven.next(t).Presence.Kind)
	assert.Equal(t, domain.PresenceOnline, eight.next(t).Presence.Kind)

	require.NoError(t, sub7.Close())
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message_deleted", "conversation_id": 7, "message_id": 101}))
	seven.none(t)
}

func TestClientPublishTyping(t *testing.T) {
	srv := newServer(t)
	client := ws.NewClient(ws.Options{URL: srv.wsURL(), Token: token}, zerolog.Nop())
	defer client.Close()

	require.NoError(t, client.PublishTyping(context.Background(), 7, true))
	require.NoError(t, client.PublishTyping(context.Background(), 7, false))

	first := <-srv.received
	assert.Equal(t, "typing", first["type"])
	assert.Equal(t, float64(7), first["conversation_id"])
	assert.Equal(t, true, first["is_typing"])
	second := <-srv.received
	assert.Equal(t, false, second["is_typing"])
}

func TestClientPublishMessage(t *testing.T) {
	srv := newServer(t)
	client := ws.NewClient(ws.Options{URL: srv.wsURL(), Token: token}, zerolog.Nop())
	defer client.Close()

	replyTo := int64(40)
	m := domain.Message{
		ID:             55,
		ConversationID: 7,
		SenderID:       10,
		Sender:         &domain.UserSummary{ID: 10, Username: "alice"},
		Content:        "hello",
		Type:           domain.MessageText,
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ReplyToID:      &replyTo,
	}
	require.NoError(t, client.PublishMessage(context.Background(), m))

	frame := <-srv.received
	assert.Equal(t, "message_sent", frame["type"])
	assert.Equal(t, float64(7), frame["conversation_id"])
	assert.Equal(t, float64(55), frame["message_id"])
	assert.Equal(t, "hello", frame["content"])
	assert.Equal(t, "alice", frame["sender_username"])
	assert.Equal(t, float64(40), frame["reply_to_id"])

	placeholder := domain.Message{OptimisticID: "corr-1", ConversationID: 7, Content: "x"}
	assert.ErrorIs(t, client.PublishMessage(context.Background(), placeholder), domain.ErrInvalidInput)
}

func TestClientUnauthorized(t *testing.T) {
	srv := newServer(t)
	client := ws.NewClient(ws.Options{URL: srv.wsURL(), Token: "wrong"}, zerolog.Nop())

	_, err := client.Subscribe(context.Background(), 7, func(domain.Event) {})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClientClosed(t *testing.T) {
	srv := newServer(t)
	client := ws.NewClient(ws.Options{URL: srv.wsURL(), Token: token}, zerolog.Nop())
	_, err := client.Subscribe(context.Background(), 7, func(domain.Event) {})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.Subscribe(context.Background(), 7, func(domain.Event) {})
	assert.ErrorIs(t, err, domain.ErrTransportClosed)
	assert.ErrorIs(t, client.PublishTyping(context.Background(), 7, true), domain.ErrTransportClosed)
	assert.ErrorIs(t, client.PublishMessage(context.Background(), domain.Message{ID: 1, ConversationID: 7}), domain.ErrTransportClosed)
}

func TestHub(t *testing.T) {
	h := ws.NewHub()
	var got []int64
	a := h.Register(7, func(ev domain.Event) { got = append(got, 7) })
	h.Register(8, func(ev domain.Event) { got = append(got, 8) })

	assert.Equal(t, 1, h.Deliver(7, domain.Event{}))
	assert.Equal(t, 0, h.Deliver(9, domain.Event{}))
	assert.Equal(t, 2, h.BroadcastAll(domain.Event{}))
	assert.Equal(t, 2, h.Len())

	h.Unregister(7, a)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Deliver(7, domain.Event{}))
	assert.Len(t, got, 3)
}
