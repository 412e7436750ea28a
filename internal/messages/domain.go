package messages

import (
	"context"
	"time"

	"github.com/kgellert/portal-chat/internal/participants"
)

// ChatMessage is the persisted row. ID and CreatedAt are assigned by the
// database and never change afterwards.
type ChatMessage struct {
	ID         int64     `db:"id"`
	SenderID   int64     `db:"sender_id"`
	ReceiverID int64     `db:"receiver_id"`
	Message    string    `db:"message"`
	CreatedAt  time.Time `db:"created_at"`
	IsRead     bool      `db:"is_read"`
}

// Message is a ChatMessage enriched with the sender's display identity. It
// is the shape of both the newMessage push and history entries.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Message    string    `json:"message"`
	FullName   string    `json:"full_name"`
	Avatar     string    `json:"avatar"`
	CreatedAt  time.Time `json:"created_at"`
	ClientID   string    `json:"client_id,omitempty"`
}

type Repo interface {
	Insert(ctx context.Context, senderID, receiverID int64, text string) (ChatMessage, error)
	HistoryAndMarkRead(ctx context.Context, userID, adminID, viewerID int64) ([]ChatMessage, int64, error)
}

func NewMessage(m ChatMessage, sender participants.Participant, defaultAvatar string) Message {
	name := sender.FullName
	if name == "" {
		name = participants.UnknownName
	}

	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		FullName:   name,
		Avatar:     participants.NormalizeAvatar(sender.Avatar, defaultAvatar),
		CreatedAt:  m.CreatedAt,
	}
}
