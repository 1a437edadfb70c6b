package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"client_go/internal/domain"
)

const writeWait = 10 * time.Second

// Options configures a Client.
type Options struct {
	URL          string
	Token        string
	PingInterval time.Duration
	Dialer       *websocket.Dialer
}

// Client is the realtime transport. It keeps one connection, dialed lazily
// on the first subscription, and fans decoded frames out through a Hub.
// A dropped connection is not re-dialed until the next Subscribe or
// publish call.
type Client struct {
	url          string
	token        string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	hub          *Hub
	log          zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
	loops   sync.WaitGroup
}

var (
	_ domain.Transport = (*Client)(nil)
	_ domain.Publisher = (*Client)(nil)
)

func NewClient(opts Options, log zerolog.Logger) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{
		url:          opts.URL,
		token:        opts.Token,
		pingInterval: opts.PingInterval,
		dialer:       dialer,
		hub:          NewHub(),
		log:          log.With().Str("component", "ws").Logger(),
	}
}

type subscription struct {
	once           sync.Once
	hub            *Hub
	conversationID int64
	handle         uint64
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.hub.Unregister(s.conversationID, s.handle)
	})
	return nil
}

// Subscribe registers sink for the conversation's events.
func (c *Client) Subscribe(ctx context.Context, conversationID int64, sink domain.EventSink) (domain.Subscription, error) {
	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}
	handle := c.hub.Register(conversationID, sink)
	return &subscription{hub: c.hub, conversationID: conversationID, handle: handle}, nil
}

// PublishTyping tells the other participants whether the viewer is typing.
func (c *Client) PublishTyping(ctx context.Context, conversationID int64, typing bool) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := c.writeJSON(ctx, conn, typingFrame(conversationID, typing)); err != nil {
		return fmt.Errorf("publish typing: %w", err)
	}
	return nil
}

// PublishMessage announces a confirmed message to the other participants.
func (c *Client) PublishMessage(ctx context.Context, m domain.Message) error {
	if m.ID == 0 || m.ConversationID == 0 {
		return fmt.Errorf("%w: only confirmed messages can be published", domain.ErrInvalidInput)
	}
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := c.writeJSON(ctx, conn, messageSentFrame(m)); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close closes the connection. Subsequent calls fail with
// domain.ErrTransportClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		c.loops.Wait()
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := conn.Close()
	c.loops.Wait()
	return err
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrTransportClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	dialer := *c.dialer
	dialer.Subprotocols = []string{"bearer", c.token}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: %w", c.url, domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	done := make(chan struct{})

	c.loops.Add(1)
	go c.readLoop(conn, done)
	if c.pingInterval > 0 {
		c.loops.Add(1)
		go c.keepAliveLoop(conn, done)
	}
	c.log.Info().Str("url", c.url).Msg("connected")
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.loops.Done()
	defer close(done)

	if c.pingInterval > 0 {
		pongWait := 2 * c.pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}
		if c.pingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
		}

		ev, ok, err := decodeFrame(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		if !ok {
			continue
		}
		if ev.Type == domain.EventPresence && ev.ConversationID == 0 {
			c.hub.BroadcastAll(ev)
			continue
		}
		c.hub.Deliver(ev.ConversationID, ev)
	}
}

func (c *Client) keepAliveLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.loops.Done()
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func (c *Client) dropped(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if closed || !current {
		return
	}
	_ = conn.Close()
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
		c.log.Info().Msg("connection closed by server")
		return
	}
	c.log.Warn().Err(err).Msg("connection lost")
}

func (c *Client) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(v)
}
