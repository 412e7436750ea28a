package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kgellert/portal-chat/internal/lib/validate"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/kgellert/portal-chat/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []messages.ChatMessage
	err    error
}

func (s *fakeStore) Insert(_ context.Context, senderID, receiverID int64, text string) (messages.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return messages.ChatMessage{}, s.err
	}

	s.nextID++
	m := messages.ChatMessage{
		ID:         s.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    text,
		CreatedAt:  time.Now().UTC(),
	}
	s.rows = append(s.rows, m)
	return m, nil
}

type fakeLookup struct {
	byID map[int64]participants.Participant
	err  error
}

func (l *fakeLookup) GetParticipant(_ context.Context, id int64) (participants.Participant, error) {
	if l.err != nil {
		return participants.Participant{}, l.err
	}
	p, ok := l.byID[id]
	if !ok {
		return participants.Participant{}, fmt.Errorf("lookup %d: %w", id, participants.ErrParticipantNotFound)
	}
	return p, nil
}

type published struct {
	rooms []string
	msg   messages.Message
}

type fakePublisher struct {
	mu  sync.Mutex
	out []published
}

func (p *fakePublisher) Publish(rooms []string, payload []byte) {
	var env ws.Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Type != ws.EventNewMessage {
		panic("unexpected payload")
	}
	var m messages.Message
	if err := json.Unmarshal(env.Data, &m); err != nil {
		panic(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, published{rooms: rooms, msg: m})
}

func avatar(s string) *string { return &s }

func newRelay(store *fakeStore, lookup *fakeLookup, pub *fakePublisher) *Relay {
	return New(store, lookup, pub, validate.New(), Options{
		DefaultAvatar:    "/uploads/default-avatar.png",
		MaxMessageLength: 20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func applicants() *fakeLookup {
	return &fakeLookup{byID: map[int64]participants.Participant{
		1: {ID: 1, FullName: "Admin", Role: participants.RoleAdmin},
		7: {ID: 7, FullName: "Jane Applicant", Avatar: avatar("uploads/jane.png"), Role: participants.RoleUser},
	}}
}

func TestRelay_Send_PublishesToBothRooms(t *testing.T) {
	store, pub := &fakeStore{}, &fakePublisher{}
	r := newRelay(store, applicants(), pub)
	before := time.Now().UTC().Add(-time.Millisecond)

	msg, err := r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: "Hello", ClientID: "c-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), msg.ID)
	assert.False(t, msg.CreatedAt.Before(before))
	assert.Equal(t, "Jane Applicant", msg.FullName)
	assert.Equal(t, "/uploads/jane.png", msg.Avatar)
	assert.Equal(t, "c-1", msg.ClientID)

	require.Len(t, pub.out, 1)
	assert.Equal(t, []string{"user_7", "user_1"}, pub.out[0].rooms)
	got := pub.out[0].msg
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "Hello", got.Message)
	assert.Equal(t, "c-1", got.ClientID)
	assert.True(t, msg.CreatedAt.Equal(got.CreatedAt))
}

func TestRelay_Send_ReflectsCurrentProfile(t *testing.T) {
	lookup := applicants()
	pub := &fakePublisher{}
	r := newRelay(&fakeStore{}, lookup, pub)

	_, err := r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: "one"})
	require.NoError(t, err)

	lookup.byID[7] = participants.Participant{ID: 7, FullName: "Jane Renamed"}

	_, err = r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: "two"})
	require.NoError(t, err)

	require.Len(t, pub.out, 2)
	assert.Equal(t, "Jane Applicant", pub.out[0].msg.FullName)
	assert.Equal(t, "Jane Renamed", pub.out[1].msg.FullName)
	assert.Equal(t, "/uploads/default-avatar.png", pub.out[1].msg.Avatar)
}

func TestRelay_Send_UnknownSenderFallsBack(t *testing.T) {
	pub := &fakePublisher{}
	r := newRelay(&fakeStore{}, applicants(), pub)

	msg, err := r.Send(context.Background(), SendRequest{SenderID: 99, ReceiverID: 1, Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, participants.UnknownName, msg.FullName)
	assert.Equal(t, "/uploads/default-avatar.png", msg.Avatar)
	assert.Len(t, pub.out, 1)
}

func TestRelay_Send_LookupErrorStillDelivers(t *testing.T) {
	pub := &fakePublisher{}
	r := newRelay(&fakeStore{}, &fakeLookup{err: errors.New("conn reset")}, pub)

	msg, err := r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, participants.UnknownName, msg.FullName)
	assert.Len(t, pub.out, 1)
}

func TestRelay_Send_StoreFailurePublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	r := newRelay(&fakeStore{err: errors.New("insert failed")}, applicants(), pub)

	_, err := r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: "hi"})
	require.Error(t, err)

	assert.Empty(t, pub.out)
}

func TestRelay_Send_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"missing sender", SendRequest{ReceiverID: 1, Message: "hi"}, messages.ErrInvalidMessage},
		{"missing receiver", SendRequest{SenderID: 7, Message: "hi"}, messages.ErrInvalidMessage},
		{"self addressed", SendRequest{SenderID: 7, ReceiverID: 7, Message: "hi"}, messages.ErrInvalidMessage},
		{"blank", SendRequest{SenderID: 7, ReceiverID: 1, Message: "   "}, messages.ErrInvalidMessage},
		{"too long", SendRequest{SenderID: 7, ReceiverID: 1, Message: strings.Repeat("я", 21)}, messages.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, pub := &fakeStore{}, &fakePublisher{}
			r := newRelay(store, applicants(), pub)

			_, err := r.Send(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.rows)
			assert.Empty(t, pub.out)
		})
	}
}

func TestRelay_Send_PairOrderMatchesStoreOrder(t *testing.T) {
	store, pub := &fakeStore{}, &fakePublisher{}
	r := newRelay(store, applicants(), pub)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Send(context.Background(), SendRequest{SenderID: 7, ReceiverID: 1, Message: fmt.Sprintf("m%d", i)})
		}()
	}
	wg.Wait()

	require.Len(t, pub.out, 20)
	for i, p := range pub.out {
		assert.Equal(t, store.rows[i].ID, p.msg.ID)
	}
}

func TestNewSendRequest(t *testing.T) {
	now := time.Now()
	req := NewSendRequest(ws.SendMessagePayload{
		SenderID: 7, ReceiverID: 1, Message: " hi ", Avatar: "/uploads/x.png", CreatedAt: &now, ClientID: " c-1 ",
	})

	assert.Equal(t, SendRequest{SenderID: 7, ReceiverID: 1, Message: " hi ", ClientID: "c-1"}, req)
}
