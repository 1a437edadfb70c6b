// Package api is the REST client for the chat server.
package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"client_go/internal/domain"
)

// Client implements domain.MessageAPI over the server's REST API.
type Client struct {
	baseURL    string
	httpClient *resty.Client
	log        zerolog.Logger
}

var _ domain.MessageAPI = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "chat-client/1.0").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if token != "" {
		httpClient.SetAuthToken(token)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// SetAccessToken replaces the bearer token sent with every request.
func (c *Client) SetAccessToken(token string) {
	c.httpClient.SetAuthToken(token)
}

func (c *Client) CreateMessage(ctx context.Context, in domain.CreateMessageInput) (*domain.Message, error) {
	var out messageDTO
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createMessageRequest{
			ConversationID: in.ConversationID,
			Content:        in.Content,
			MessageType:    in.Type,
			SenderID:       in.SenderID,
			ReplyToID:      in.ReplyToID,
		}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post(conversationPath(in.ConversationID, "messages"))
	if err != nil {
		return nil, fmt.Errorf("create message request failed: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if out.ID == 0 || out.ConversationID == 0 {
		return nil, fmt.Errorf("create message: %w: missing id or conversation_id", domain.ErrMalformedResponse)
	}
	m := out.toDomain()
	return &m, nil
}

// ListMessages fetches one page of history before the cursor; an empty
// cursor fetches the newest page. The server returns newest first; the
// returned page is oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID int64, before string, limit int) (*domain.MessagePage, error) {
	var out messagePageDTO
	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{})
	if before != "" {
		req.SetQueryParam("before", before)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get(conversationPath(conversationID, "messages"))
	if err != nil {
		return nil, fmt.Errorf("list messages request failed: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	page := &domain.MessagePage{
		Messages:   make([]domain.Message, 0, len(out.Messages)),
		HasMore:    out.HasMore,
		NextCursor: out.NextCursor,
	}
	for i := len(out.Messages) - 1; i >= 0; i-- {
		d := out.Messages[i]
		if d.ID == 0 {
			return nil, fmt.Errorf("list messages: %w: message without id", domain.ErrMalformedResponse)
		}
		if d.ConversationID == 0 {
			d.ConversationID = conversationID
		}
		page.Messages = append(page.Messages, d.toDomain())
	}
	c.log.Debug().
		Int64("conversation_id", conversationID).
		Str("before", before).
		Int("count", len(page.Messages)).
		Bool("has_more", page.HasMore).
		Msg("listed messages")
	return page, nil
}

// MarkRead sets the viewer's read marker to now and returns the remaining
// unread count.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) (int, error) {
	var out markReadResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Post(conversationPath(conversationID, "read"))
	if err != nil {
		return 0, fmt.Errorf("mark read request failed: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return out.UnreadCount, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []conversationDTO
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/conversations")
	if err != nil {
		return nil, fmt.Errorf("list conversations request failed: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]domain.Conversation, 0, len(out))
	for _, d := range out {
		convs = append(convs, d.toDomain())
	}
	return convs, nil
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	body, _ := resp.Error().(*errorBody)
	msg := body.message()
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	return &StatusError{StatusCode: resp.StatusCode(), Message: msg}
}

func conversationPath(conversationID int64, rest string) string {
	return "/api/conversations/" + strconv.FormatInt(conversationID, 10) + "/" + rest
}
