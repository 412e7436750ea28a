package messagesrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/portal-chat/internal/messages"
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, senderID, receiverID int64, text string) (messages.ChatMessage, error) {
	const op = "storage.postgres.InsertMessage"

	var m messages.ChatMessage
	err := r.db.GetContext(
		ctx,
		&m,
		`INSERT INTO chat_messages (sender_id, receiver_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, message, created_at, is_read`,
		senderID, receiverID, text,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return messages.ChatMessage{}, fmt.Errorf("%s: %w", op, messages.ErrNoRowsReturned)
	}
	if err != nil {
		return messages.ChatMessage{}, fmt.Errorf("%s: insert: %w", op, err)
	}

	return m, nil
}

// HistoryAndMarkRead returns the pair's transcript and marks as read every
// message in it that was addressed to viewerID. Both steps share one
// transaction so the roster never sees a half-applied read. Sender names
// are not joined in; callers resolve them at read time.
func (r *Repo) HistoryAndMarkRead(ctx context.Context, userID, adminID, viewerID int64) ([]messages.ChatMessage, int64, error) {
	const op = "storage.postgres.HistoryAndMarkRead"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	rows, err := r.history(ctx, tx, userID, adminID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	peerID := adminID
	if viewerID == adminID {
		peerID = userID
	}

	marked, err := r.markRead(ctx, tx, peerID, viewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return rows, marked, nil
}

func (r *Repo) history(ctx context.Context, q sqlx.QueryerContext, userID, adminID int64) ([]messages.ChatMessage, error) {
	const op = "storage.postgres.History"

	rows := []messages.ChatMessage{}
	err := sqlx.SelectContext(
		ctx,
		q,
		&rows,
		`
		SELECT id, sender_id, receiver_id, message, created_at, is_read
		FROM chat_messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id
		`,
		userID, adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return rows, nil
}

func (r *Repo) markRead(ctx context.Context, q sqlx.ExecerContext, senderID, receiverID int64) (int64, error) {
	const op = "storage.postgres.MarkRead"

	res, err := q.ExecContext(
		ctx,
		`UPDATE chat_messages
		SET is_read = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE`,
		senderID, receiverID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: update: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	return n, nil
}
