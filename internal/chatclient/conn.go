// Package chatclient is the client side of the chat: the websocket
// transport and a small client for the roster/history endpoints.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/ws"
)

var ErrNotConnected = errors.New("chat transport is not connected")

const writeWait = 10 * time.Second

// Identity is what the transport announces with joinRoom.
type Identity struct {
	ID      int64
	IsAdmin bool
}

type SendFailure = ws.MessageFailedPayload

// Conn is a websocket transport that is connected at most once at a time.
// With reconnect enabled, a dropped socket is redialed with backoff and the
// room joined again. Handlers run on the read goroutine.
type Conn struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	url       string
	self      Identity
	active    bool
	stop      chan struct{}
	done      chan struct{}
	onMessage func(messages.Message)
	onFailure func(SendFailure)

	writeMu  sync.Mutex
	dialer   *websocket.Dialer
	minDelay time.Duration
	maxDelay time.Duration
	log      *slog.Logger
}

type Option func(*Conn)

// WithReconnect redials a dropped connection, waiting first at the start
// and doubling up to limit between attempts.
func WithReconnect(first, limit time.Duration) Option {
	return func(c *Conn) {
		c.minDelay = max(first, time.Millisecond)
		c.maxDelay = max(limit, c.minDelay)
	}
}

var (
	defaultConn *Conn
	defaultOnce sync.Once
)

// Default returns the process-wide transport. It reconnects on its own.
func Default() *Conn {
	defaultOnce.Do(func() {
		defaultConn = NewConn(slog.Default(), WithReconnect(time.Second, 30*time.Second))
	})
	return defaultConn
}

func NewConn(log *slog.Logger, opts ...Option) *Conn {
	done := make(chan struct{})
	close(done)

	c := &Conn{
		done:   done,
		dialer: websocket.DefaultDialer,
		log:    log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Conn) OnMessage(fn func(messages.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *Conn) OnFailure(fn func(SendFailure)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailure = fn
}

// Connect dials url and joins self's room. It does nothing until Close
// once it has succeeded, even while a reconnect is pending.
func (c *Conn) Connect(ctx context.Context, url string, self Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return nil
	}

	conn, err := c.dial(ctx, url, self)
	if err != nil {
		return err
	}

	c.ws = conn
	c.url = url
	c.self = self
	c.active = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.run(conn, c.stop, c.done)

	c.log.Info("chat connected", slog.Int64("participant_id", self.ID), slog.Bool("is_admin", self.IsAdmin))

	return nil
}

func (c *Conn) dial(ctx context.Context, url string, self Identity) (*websocket.Conn, error) {
	const op = "chatclient.Conn.dial"

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	join, err := ws.NewEvent(ws.EventJoinRoom, ws.JoinRoomPayload{UserID: self.ID, IsAdmin: self.IsAdmin})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: join: %w", op, err)
	}

	return conn, nil
}

// Connected reports whether a socket is open right now.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Done is closed when the transport stops for good: after Close, or after a
// drop when reconnect is off.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Send submits a message. Before Connect, or while the connection is down,
// it returns ErrNotConnected and sends nothing.
func (c *Conn) Send(p ws.SendMessagePayload) error {
	const op = "chatclient.Conn.Send"

	c.mu.Lock()
	conn := c.ws
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	frame, err := ws.NewEvent(ws.EventSendMessage, p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}

	return nil
}

// Close tears the transport down and stops reconnecting. The Conn may be
// connected again after.
func (c *Conn) Close() error {
	c.mu.Lock()
	conn := c.ws
	c.ws = nil
	if c.active {
		c.active = false
		close(c.stop)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()

	return conn.Close()
}

func (c *Conn) run(conn *websocket.Conn, stop, done chan struct{}) {
	defer close(done)

	for conn != nil {
		c.read(conn)

		c.mu.Lock()
		if c.ws == conn {
			c.ws = nil
		}
		if c.maxDelay <= 0 && c.stop == stop && c.active {
			c.active = false
			close(stop)
		}
		c.mu.Unlock()

		_ = conn.Close()

		conn = c.redial(stop)
	}
}

func (c *Conn) read(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("chat connection lost", sl.Err(err))
			}
			return
		}

		c.dispatch(raw)
	}
}

// redial returns a joined connection, or nil once stop is closed.
func (c *Conn) redial(stop chan struct{}) *websocket.Conn {
	if c.maxDelay <= 0 {
		return nil
	}

	delay := c.minDelay

	for {
		select {
		case <-stop:
			return nil
		case <-time.After(delay):
		}

		c.mu.Lock()
		url, self := c.url, c.self
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		conn, err := c.dial(ctx, url, self)
		cancel()

		if err == nil {
			c.mu.Lock()
			if c.stop != stop || !c.active {
				c.mu.Unlock()
				_ = conn.Close()
				return nil
			}
			c.ws = conn
			c.mu.Unlock()

			c.log.Info("chat reconnected", slog.Int64("participant_id", self.ID))
			return conn
		}

		c.log.Warn("chat reconnect failed", sl.Err(err), slog.Duration("retry_in", delay))

		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

func (c *Conn) dispatch(raw []byte) {
	var env ws.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("bad frame", sl.Err(err))
		return
	}

	c.mu.Lock()
	onMessage, onFailure := c.onMessage, c.onFailure
	c.mu.Unlock()

	switch env.Type {
	case ws.EventNewMessage:
		var msg messages.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			c.log.Warn("bad newMessage", sl.Err(err))
			return
		}
		if msg.SenderID == 0 {
			c.log.Debug("newMessage without sender dropped")
			return
		}
		if onMessage != nil {
			onMessage(msg)
		}

	case ws.EventMessageFailed:
		var f SendFailure
		if err := json.Unmarshal(env.Data, &f); err != nil {
			c.log.Warn("bad messageFailed", sl.Err(err))
			return
		}
		if onFailure != nil {
			onFailure(f)
		}

	case ws.EventHello:
		c.log.Debug("server hello")

	default:
		c.log.Debug("unknown event", slog.String("type", env.Type))
	}
}
