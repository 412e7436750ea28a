// Package chatview holds the presentation state of a chat client. One View
// serves both sides of the conversation: the admin's multi-peer roster and
// the applicant's single conversation with the admin.
//
// A View is not safe for concurrent use; drive it from one goroutine.
package chatview

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/ws"
)

type Mode int

const (
	// MultiPeer is the admin inbox: many applicants, one open at a time.
	MultiPeer Mode = iota
	// SinglePeer is the applicant side: the admin is the only counterpart.
	SinglePeer
)

var (
	ErrUnknownPeer  = errors.New("unknown peer")
	ErrNoActivePeer = errors.New("no conversation is open")
	ErrEmptyMessage = errors.New("message is empty")
)

type Self struct {
	ID       int64
	FullName string
	Avatar   string
}

// Entry is a peer's roster line.
type Entry struct {
	ID              int64
	FullName        string
	Avatar          string
	LastMessage     string
	LastMessageTime time.Time
	Unread          int
}

func (e Entry) HasLastMessage() bool { return !e.LastMessageTime.IsZero() }

type Line struct {
	messages.Message
	Own     bool
	Pending bool
	Failed  bool
	// FailCode is set together with Failed.
	FailCode string
}

type Outcome int

const (
	Ignored Outcome = iota
	Appended
	Reconciled
	Counted
	SummaryOnly
)

type Notifier interface {
	Notify(msg messages.Message)
}

type NotifierFunc func(msg messages.Message)

func (f NotifierFunc) Notify(msg messages.Message) { f(msg) }

type Option func(*View)

func WithNotifier(n Notifier) Option {
	return func(v *View) { v.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(v *View) { v.newID = newID }
}

// WithPeer sets the counterpart of a SinglePeer view.
func WithPeer(peer Entry) Option {
	return func(v *View) { v.addPeer(peer) }
}

type View struct {
	mode     Mode
	self     Self
	peers    []*Entry
	index    map[int64]*Entry
	active   int64
	loading  bool
	lines    []Line
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

func New(mode Mode, self Self, opts ...Option) *View {
	v := &View{
		mode:     mode,
		self:     self,
		index:    make(map[int64]*Entry),
		notifier: NotifierFunc(func(messages.Message) {}),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(v)
	}

	if mode == SinglePeer && len(v.peers) > 0 {
		v.active = v.peers[0].ID
	}

	return v
}

func (v *View) Mode() Mode { return v.mode }

func (v *View) Self() Self { return v.self }

// Active returns the open peer or zero.
func (v *View) Active() int64 { return v.active }

func (v *View) Loading() bool { return v.loading }

func (v *View) addPeer(e Entry) *Entry {
	if p, ok := v.index[e.ID]; ok {
		*p = e
		return p
	}

	p := &e
	v.peers = append(v.peers, p)
	v.index[e.ID] = p
	return p
}

// LoadRoster replaces the roster with a fresh server read. Counters come
// from the server except for the open conversation, which stays at zero.
func (v *View) LoadRoster(summaries []chats.Summary) {
	v.peers = v.peers[:0]
	clear(v.index)

	for _, s := range summaries {
		e := Entry{
			ID:       s.ID,
			FullName: s.FullName,
			Avatar:   s.Avatar,
			Unread:   int(s.UnreadCount),
		}
		if s.LastMessage != nil {
			e.LastMessage = *s.LastMessage
		}
		if s.LastMessageTime != nil {
			e.LastMessageTime = *s.LastMessageTime
		}
		if e.ID == v.active {
			e.Unread = 0
		}
		v.addPeer(e)
	}
}

// Select makes peerID the open conversation and zeroes its counter before
// its history arrives.
func (v *View) Select(peerID int64) error {
	p, ok := v.index[peerID]
	if !ok {
		return ErrUnknownPeer
	}
	if v.mode == SinglePeer && peerID != v.active {
		return ErrUnknownPeer
	}

	p.Unread = 0
	v.active = peerID
	v.loading = true
	v.lines = nil
	return nil
}

// ApplyHistory renders a fetched transcript for peerID. A response for a
// conversation that is no longer open is dropped. Lines that arrived while
// the history was loading are merged in by id, and an optimistic line the
// history already holds is replaced by the stored row.
func (v *View) ApplyHistory(peerID int64, history []messages.Message) bool {
	if peerID != v.active {
		return false
	}

	seen := make(map[int64]bool, len(history))
	confirmed := make([]messages.Message, 0, len(history)+len(v.lines))
	keep := func(m messages.Message) {
		if m.ID != 0 {
			if seen[m.ID] {
				return
			}
			seen[m.ID] = true
		}
		confirmed = append(confirmed, m)
	}

	for _, m := range history {
		keep(m)
	}

	var pending []Line
	for _, l := range v.lines {
		if l.Pending || l.Failed {
			pending = append(pending, l)
			continue
		}
		keep(l.Message)
	}

	pending = v.dropStored(pending, history)

	sort.SliceStable(confirmed, func(i, j int) bool {
		if !confirmed[i].CreatedAt.Equal(confirmed[j].CreatedAt) {
			return confirmed[i].CreatedAt.Before(confirmed[j].CreatedAt)
		}
		return confirmed[i].ID < confirmed[j].ID
	})

	v.lines = make([]Line, 0, len(confirmed)+len(pending))
	for _, m := range confirmed {
		v.lines = append(v.lines, Line{Message: m, Own: m.SenderID == v.self.ID})
	}
	v.lines = append(v.lines, pending...)
	v.loading = false

	if p, ok := v.index[peerID]; ok {
		p.Unread = 0
		if len(confirmed) > 0 {
			tail := confirmed[len(confirmed)-1]
			p.LastMessage = tail.Message
			p.LastMessageTime = tail.CreatedAt
		}
	}

	return true
}

// dropStored removes pending lines whose message the history already holds:
// an own row to the same receiver with the same text, stored no earlier
// than the line was composed. Each row absorbs at most one line.
func (v *View) dropStored(pending []Line, history []messages.Message) []Line {
	used := make(map[int64]bool)
	out := pending[:0]

	for _, l := range pending {
		stored := false
		if l.Pending {
			for _, m := range history {
				if used[m.ID] || m.SenderID != v.self.ID || m.ReceiverID != l.ReceiverID {
					continue
				}
				if m.Message == l.Message.Message && !m.CreatedAt.Before(l.CreatedAt) {
					used[m.ID] = true
					stored = true
					break
				}
			}
		}
		if !stored {
			out = append(out, l)
		}
	}

	return out
}

// Open is Select followed by ApplyHistory.
func (v *View) Open(peerID int64, history []messages.Message) error {
	if err := v.Select(peerID); err != nil {
		return err
	}
	v.ApplyHistory(peerID, history)
	return nil
}

// FailHistory ends a failed load; the transcript stays empty.
func (v *View) FailHistory(peerID int64) {
	if peerID == v.active {
		v.loading = false
	}
}

// Close clears the open conversation. Counters are left as they are.
func (v *View) Close() {
	if v.mode == SinglePeer {
		return
	}
	v.active = 0
	v.loading = false
	v.lines = nil
}

// Receive applies a live push. A message already in the transcript is
// ignored, so a push the history fetch also returned shows once.
func (v *View) Receive(msg messages.Message) Outcome {
	if msg.SenderID == 0 {
		return Ignored
	}

	if msg.SenderID == v.self.ID {
		return v.receiveOwn(msg)
	}

	p, ok := v.index[msg.SenderID]
	if !ok || msg.ReceiverID != v.self.ID {
		return Ignored
	}

	if v.hasLine(msg.ID) {
		return Ignored
	}

	p.LastMessage = msg.Message
	p.LastMessageTime = msg.CreatedAt

	switch {
	case v.mode == SinglePeer:
		v.lines = append(v.lines, Line{Message: msg})
		p.Unread++
		v.notifier.Notify(msg)
		return Counted

	case msg.SenderID == v.active:
		v.lines = append(v.lines, Line{Message: msg})
		p.Unread = 0
		return Appended

	default:
		p.Unread++
		v.notifier.Notify(msg)
		return Counted
	}
}

// receiveOwn replaces the optimistic copy of a message this client sent,
// matched by correlation id or, failing that, by receiver and text. Echoes
// of messages sent from another tab are appended.
func (v *View) receiveOwn(msg messages.Message) Outcome {
	p, ok := v.index[msg.ReceiverID]
	if !ok {
		return Ignored
	}

	p.LastMessage = msg.Message
	p.LastMessageTime = msg.CreatedAt

	if msg.ReceiverID != v.active {
		return SummaryOnly
	}

	// already shown, for instance by a history fetch: the optimistic copy
	// is redundant
	if v.hasLine(msg.ID) {
		if i := v.findPending(msg); i >= 0 {
			v.lines = append(v.lines[:i], v.lines[i+1:]...)
		}
		return Ignored
	}

	if i := v.findPending(msg); i >= 0 {
		v.lines[i] = Line{Message: msg, Own: true}
		return Reconciled
	}

	v.lines = append(v.lines, Line{Message: msg, Own: true})
	return Appended
}

func (v *View) hasLine(id int64) bool {
	if id == 0 {
		return false
	}
	for _, l := range v.lines {
		if l.ID == id && !l.Pending && !l.Failed {
			return true
		}
	}
	return false
}

func (v *View) findPending(msg messages.Message) int {
	if msg.ClientID != "" {
		for i, l := range v.lines {
			if l.Pending && l.ClientID == msg.ClientID {
				return i
			}
		}
	}

	for i, l := range v.lines {
		if l.Pending && l.ReceiverID == msg.ReceiverID && l.Message.Message == msg.Message {
			return i
		}
	}

	return -1
}

// Compose renders text optimistically in the open conversation and returns
// the request to hand to the transport.
func (v *View) Compose(text string) (ws.SendMessagePayload, error) {
	if strings.TrimSpace(text) == "" {
		return ws.SendMessagePayload{}, ErrEmptyMessage
	}

	p, ok := v.index[v.active]
	if v.active == 0 || !ok {
		return ws.SendMessagePayload{}, ErrNoActivePeer
	}

	now := v.now()
	clientID := v.newID()

	v.lines = append(v.lines, Line{
		Message: messages.Message{
			SenderID:   v.self.ID,
			ReceiverID: v.active,
			Message:    text,
			FullName:   v.self.FullName,
			Avatar:     v.self.Avatar,
			CreatedAt:  now,
			ClientID:   clientID,
		},
		Own:     true,
		Pending: true,
	})

	p.LastMessage = text
	p.LastMessageTime = now

	if v.mode == SinglePeer {
		p.Unread = 0
	}

	return ws.SendMessagePayload{
		SenderID:   v.self.ID,
		ReceiverID: v.active,
		Message:    text,
		Avatar:     v.self.Avatar,
		CreatedAt:  &now,
		ClientID:   clientID,
	}, nil
}

// Fail marks the optimistic line with clientID as undelivered.
func (v *View) Fail(clientID, code string) bool {
	for i := range v.lines {
		l := &v.lines[i]
		if l.Pending && l.ClientID == clientID {
			l.Pending = false
			l.Failed = true
			l.FailCode = code
			return true
		}
	}
	return false
}

// Focus resets the applicant's counter when the window regains focus.
func (v *View) Focus() {
	if v.mode != SinglePeer {
		return
	}
	if p, ok := v.index[v.active]; ok {
		p.Unread = 0
	}
}

func (v *View) Unread(peerID int64) int {
	if p, ok := v.index[peerID]; ok {
		return p.Unread
	}
	return 0
}

func (v *View) TotalUnread() int {
	n := 0
	for _, p := range v.peers {
		n += p.Unread
	}
	return n
}

func (v *View) Peer(peerID int64) (Entry, bool) {
	p, ok := v.index[peerID]
	if !ok {
		return Entry{}, false
	}
	return *p, true
}

// Roster returns the peers with unread conversations first, then by most
// recent message. Ties keep roster order.
func (v *View) Roster() []Entry {
	return sortEntries(v.peers, func(Entry) bool { return true })
}

// Filter is Roster restricted to names containing term, case-insensitively.
func (v *View) Filter(term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return v.Roster()
	}

	return sortEntries(v.peers, func(e Entry) bool {
		return strings.Contains(strings.ToLower(e.FullName), term)
	})
}

func sortEntries(peers []*Entry, keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(peers))
	for _, p := range peers {
		if keep(*p) {
			out = append(out, *p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Unread != out[j].Unread {
			return out[i].Unread > out[j].Unread
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})

	return out
}

func (v *View) Transcript() []Line {
	out := make([]Line, len(v.lines))
	copy(out, v.lines)
	return out
}

// Title is the applicant's window title.
func (v *View) Title() string {
	n := v.TotalUnread()
	if n > 0 {
		return fmt.Sprintf("(%d) New message(s) - Chat", n)
	}
	return "Chat with Administrator"
}
