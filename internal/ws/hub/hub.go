package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kgellert/portal-chat/internal/ws"
)

var ErrStopped = errors.New("hub stopped")

type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	// owned by the Run goroutine
	rooms  map[string]struct{}
	closed bool

	mu            sync.Mutex
	participantID int64
	isAdmin       bool
}

func NewConnection(conn *websocket.Conn, sendBuffer int) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 128
	}

	return &Connection{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

// ParticipantID is zero until the connection has joined a room.
func (c *Connection) ParticipantID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

func (c *Connection) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAdmin
}

type JoinResult int

const (
	Joined JoinResult = iota
	AlreadyJoined
	Conflict
	Invalid
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyJoined:
		return "already_joined"
	case Conflict:
		return "conflict"
	default:
		return "invalid"
	}
}

// bind ties the connection to a participant once. Later calls with the same
// id are no-ops and calls with another id are refused.
func (c *Connection) bind(participantID int64, isAdmin bool) JoinResult {
	if participantID <= 0 {
		return Invalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.participantID {
	case 0:
		c.participantID = participantID
		c.isAdmin = isAdmin
		return Joined
	case participantID:
		return AlreadyJoined
	default:
		return Conflict
	}
}

func (c *Connection) Send(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

type Stats struct {
	Connections int            `json:"connections"`
	Rooms       map[string]int `json:"rooms"`
}

type command interface {
	apply(h *Hub)
}

type registerCmd struct{ c *Connection }

type unregisterCmd struct{ c *Connection }

type joinCmd struct {
	c    *Connection
	room string
}

type publishCmd struct {
	rooms   []string
	payload []byte
}

type sendToCmd struct {
	c       *Connection
	payload []byte
}

type statsCmd struct{ reply chan Stats }

// Hub is the process-wide connection registry. All room state lives in the
// Run goroutine and every mutation or publish goes through a single FIFO
// queue, so a join enqueued before a publish is applied first.
type Hub struct {
	commands chan command
	done     chan struct{}
	conns    map[*Connection]struct{}
	rooms    map[string]map[*Connection]struct{}
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		commands: make(chan command, 256),
		done:     make(chan struct{}),
		conns:    make(map[*Connection]struct{}),
		rooms:    make(map[string]map[*Connection]struct{}),
		log:      log,
	}
}

// Run applies commands until ctx is cancelled. After it returns, every
// method is a no-op and Stats reports ErrStopped.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			cmd.apply(h)
		}
	}
}

func (h *Hub) enqueue(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

func (h *Hub) Register(c *Connection) {
	h.enqueue(registerCmd{c: c})
}

func (h *Hub) Unregister(c *Connection) {
	h.enqueue(unregisterCmd{c: c})
}

// Join binds c to participantID and subscribes it to that participant's
// room. Admin tabs join the admin's own room like everyone else.
func (h *Hub) Join(c *Connection, participantID int64, isAdmin bool) JoinResult {
	res := c.bind(participantID, isAdmin)
	if res == Joined {
		h.enqueue(joinCmd{c: c, room: ws.RoomName(participantID)})
	}
	return res
}

func (h *Hub) Publish(rooms []string, payload []byte) {
	h.enqueue(publishCmd{rooms: rooms, payload: payload})
}

func (h *Hub) SendTo(c *Connection, payload []byte) {
	h.enqueue(sendToCmd{c: c, payload: payload})
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)

	select {
	case h.commands <- statsCmd{reply: reply}:
	case <-h.done:
		return Stats{}, ErrStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, ErrStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (cmd registerCmd) apply(h *Hub) {
	h.conns[cmd.c] = struct{}{}
}

func (cmd unregisterCmd) apply(h *Hub) {
	c := cmd.c
	for name := range c.rooms {
		room := h.rooms[name]
		if room == nil {
			continue
		}
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, name)
		}
	}
	clear(c.rooms)
	delete(h.conns, c)

	if id := c.ParticipantID(); id != 0 {
		h.log.Info("participant left", slog.Int64("participant_id", id))
	}

	c.closed = true
	c.CloseSend()
}

func (cmd joinCmd) apply(h *Hub) {
	c := cmd.c
	if c.closed {
		return
	}

	room := h.rooms[cmd.room]
	if room == nil {
		room = make(map[*Connection]struct{})
		h.rooms[cmd.room] = room
	}
	room[c] = struct{}{}
	c.rooms[cmd.room] = struct{}{}

	role := "applicant"
	if c.IsAdmin() {
		role = "admin"
	}

	h.log.Info("participant joined room",
		slog.String("room", cmd.room),
		slog.String("role", role),
		slog.Int("members", len(room)),
	)
}

func (cmd publishCmd) apply(h *Hub) {
	sent := make(map[*Connection]struct{})

	for _, name := range cmd.rooms {
		for c := range h.rooms[name] {
			if _, ok := sent[c]; ok {
				continue
			}
			sent[c] = struct{}{}
			c.Send(cmd.payload)
		}
	}
}

func (cmd sendToCmd) apply(h *Hub) {
	if cmd.c.closed {
		return
	}
	cmd.c.Send(cmd.payload)
}

func (cmd statsCmd) apply(h *Hub) {
	s := Stats{
		Connections: len(h.conns),
		Rooms:       make(map[string]int, len(h.rooms)),
	}
	for name, room := range h.rooms {
		s.Rooms[name] = len(room)
	}
	cmd.reply <- s
}
