package httpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/chat"
	"client_go/internal/config"
	"client_go/internal/domain"
	"client_go/internal/httpserver"
	"client_go/internal/viewport"
)

type fakeClient struct {
	open    int64
	sent    []string
	top     int
	height  int
	width   int
	sendErr error
}

func (f *fakeClient) Snapshot() chat.Snapshot {
	return chat.Snapshot{ActiveConversation: f.open, List: viewport.Window{ConversationID: f.open}}
}

func (f *fakeClient) Window(id int64) (chat.WindowView, error) {
	if id != f.open {
		return chat.WindowView{}, fmt.Errorf("%w: conversation %d is not open", domain.ErrNotFound, id)
	}
	return chat.WindowView{Window: viewport.Window{ConversationID: id}}, nil
}

func (f *fakeClient) Open(_ context.Context, id int64) error {
	f.open = id
	return nil
}

func (f *fakeClient) Send(_ context.Context, content string) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &domain.Message{ID: 1, ConversationID: f.open, Content: content}, nil
}

func (f *fakeClient) Scrolled(_ context.Context, top int) error {
	f.top = top
	return nil
}

func (f *fakeClient) Resize(height, width int) {
	f.height, f.width = height, width
}

func newRouter(client *fakeClient) http.Handler {
	return httpserver.NewRouter(&config.Config{CORSOrigins: []string{"http://localhost:3000"}}, client)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newRouter(&fakeClient{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := do(t, newRouter(&fakeClient{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenAndWindow(t *testing.T) {
	client := &fakeClient{}
	h := newRouter(client)

	rec := do(t, h, http.MethodGet, "/debug/conversations/7/window", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/debug/conversations/7/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), client.open)

	var snap chat.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(7), snap.ActiveConversation)

	rec = do(t, h, http.MethodGet, "/debug/conversations/7/window", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/debug/conversations/abc/window", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSend(t *testing.T) {
	client := &fakeClient{open: 3}
	h := newRouter(client)

	rec := do(t, h, http.MethodPost, "/debug/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"hi"}, client.sent)

	rec = do(t, h, http.MethodPost, "/debug/messages", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	client.sendErr = fmt.Errorf("%w: message content is empty", domain.ErrInvalidInput)
	rec = do(t, h, http.MethodPost, "/debug/messages", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	client.sendErr = fmt.Errorf("send message: %w", domain.ErrUnauthorized)
	rec = do(t, h, http.MethodPost, "/debug/messages", `{"content":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	client.sendErr = fmt.Errorf("boom")
	rec = do(t, h, http.MethodPost, "/debug/messages", `{"content":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestScrollAndResize(t *testing.T) {
	client := &fakeClient{open: 3}
	h := newRouter(client)

	rec := do(t, h, http.MethodPost, "/debug/viewport", `{"height":400,"width":80}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 400, client.height)
	assert.Equal(t, 80, client.width)

	rec = do(t, h, http.MethodPost, "/debug/viewport", `{"height":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/debug/scroll", `{"top":120}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 120, client.top)
}
