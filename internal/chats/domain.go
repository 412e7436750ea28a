package chats

import (
	"context"
	"database/sql"
	"time"

	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
)

// Summary is one roster line: an applicant plus the latest message between
// them and the admin, in either direction. It is derived on every read.
type Summary struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"full_name"`
	Avatar          string     `json:"avatar"`
	LastMessage     *string    `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
	UnreadCount     int64      `json:"unreadCount"`
}

type SummaryRow struct {
	ID              int64          `db:"id"`
	FullName        string         `db:"full_name"`
	Avatar          sql.NullString `db:"avatar"`
	LastMessage     sql.NullString `db:"last_message"`
	LastMessageTime sql.NullTime   `db:"last_message_time"`
	UnreadCount     int64          `db:"unread_count"`
}

func NewSummaryFromRow(row SummaryRow, defaultAvatar string) Summary {
	s := Summary{
		ID:          row.ID,
		FullName:    row.FullName,
		UnreadCount: row.UnreadCount,
	}

	var avatar *string
	if row.Avatar.Valid {
		avatar = &row.Avatar.String
	}
	s.Avatar = participants.NormalizeAvatar(avatar, defaultAvatar)

	if row.LastMessage.Valid {
		s.LastMessage = &row.LastMessage.String
	}
	if row.LastMessageTime.Valid {
		t := row.LastMessageTime.Time
		s.LastMessageTime = &t
	}

	return s
}

type RosterRepo interface {
	GetRoster(ctx context.Context, adminID int64) ([]SummaryRow, error)
}

type HistoryRepo interface {
	HistoryAndMarkRead(ctx context.Context, userID, adminID, viewerID int64) ([]messages.ChatMessage, int64, error)
}

// SenderLookup resolves the current profiles of a transcript's senders.
type SenderLookup interface {
	GetParticipants(ctx context.Context, ids []int64) (map[int64]participants.Participant, error)
}
