// Package relay persists chat messages and fans them out to the sender's
// and the receiver's rooms.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/kgellert/portal-chat/internal/ws"
)

type MessageStore interface {
	Insert(ctx context.Context, senderID, receiverID int64, text string) (messages.ChatMessage, error)
}

type ParticipantLookup interface {
	GetParticipant(ctx context.Context, id int64) (participants.Participant, error)
}

type Publisher interface {
	Publish(rooms []string, payload []byte)
}

type SendRequest struct {
	SenderID   int64  `validate:"gt=0"`
	ReceiverID int64  `validate:"gt=0,nefield=SenderID"`
	Message    string `validate:"notblank"`
	ClientID   string `validate:"omitempty,max=64"`
}

type Options struct {
	DefaultAvatar    string
	MaxMessageLength int
}

type Relay struct {
	mu       sync.Mutex
	store    MessageStore
	lookup   ParticipantLookup
	pub      Publisher
	validate *validator.Validate
	opts     Options
	log      *slog.Logger
}

func New(
	store MessageStore,
	lookup ParticipantLookup,
	pub Publisher,
	validate *validator.Validate,
	opts Options,
	log *slog.Logger,
) *Relay {
	return &Relay{
		store:    store,
		lookup:   lookup,
		pub:      pub,
		validate: validate,
		opts:     opts,
		log:      log,
	}
}

// Send stores the message, resolves the sender's current name and avatar
// and publishes one newMessage to user_<sender> and user_<receiver>.
// Sends are serialised, so two messages of the same pair are published in
// the order they were stored. Nothing is published when storing fails.
func (r *Relay) Send(ctx context.Context, req SendRequest) (messages.Message, error) {
	const op = "relay.Send"

	log := r.log.With(
		slog.String("op", op),
		slog.Int64("sender_id", req.SenderID),
		slog.Int64("receiver_id", req.ReceiverID),
	)

	if err := r.validate.Struct(req); err != nil {
		log.Warn("rejected message", sl.Err(err))
		return messages.Message{}, fmt.Errorf("%s: %w: %s", op, messages.ErrInvalidMessage, err)
	}

	if r.opts.MaxMessageLength > 0 && utf8.RuneCountInString(req.Message) > r.opts.MaxMessageLength {
		log.Warn("rejected message", slog.Int("length", utf8.RuneCountInString(req.Message)))
		return messages.Message{}, fmt.Errorf("%s: %w", op, messages.ErrMessageTooLong)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.Insert(ctx, req.SenderID, req.ReceiverID, req.Message)
	if err != nil {
		log.Error("failed to store message", sl.Err(err))
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	sender, err := r.lookup.GetParticipant(ctx, req.SenderID)
	if err != nil {
		// the row is already stored; deliver it with the placeholder identity
		if !errors.Is(err, participants.ErrParticipantNotFound) {
			log.Warn("failed to resolve sender", sl.Err(err))
		}
		sender = participants.Participant{ID: req.SenderID, FullName: participants.UnknownName}
	}

	msg := messages.NewMessage(stored, sender, r.opts.DefaultAvatar)
	msg.ClientID = req.ClientID

	payload, err := ws.NewEvent(ws.EventNewMessage, msg)
	if err != nil {
		log.Error("failed to build event", sl.Err(err))
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	r.pub.Publish([]string{
		ws.RoomName(req.SenderID),
		ws.RoomName(req.ReceiverID),
	}, payload)

	log.Debug("message relayed", slog.Int64("message_id", msg.ID))

	return msg, nil
}

// NewSendRequest keeps the message body as typed. The client avatar and
// timestamp are dropped; the stored row is authoritative.
func NewSendRequest(p ws.SendMessagePayload) SendRequest {
	return SendRequest{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Message:    p.Message,
		ClientID:   strings.TrimSpace(p.ClientID),
	}
}
