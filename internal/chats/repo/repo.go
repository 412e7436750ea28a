package chatsrepo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/portal-chat/internal/chats"
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// GetRoster lists every applicant with the latest message exchanged with
// adminID and the number of their messages the admin has not read yet.
func (r *Repo) GetRoster(ctx context.Context, adminID int64) ([]chats.SummaryRow, error) {
	const op = "storage.postgres.GetRoster"

	rows := []chats.SummaryRow{}
	err := r.db.SelectContext(
		ctx,
		&rows,
		`
		WITH pair AS (SELECT m.id,
		                     m.message,
		                     m.created_at,
		                     CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS peer_id
		              FROM chat_messages m
		              WHERE m.sender_id = $1
		                 OR m.receiver_id = $1),

		     last_message AS (SELECT DISTINCT ON (peer_id) peer_id,
		                                                  message,
		                                                  created_at
		                      FROM pair
		                      ORDER BY peer_id, created_at DESC, id DESC),

		     unread AS (SELECT sender_id AS peer_id,
		                       COUNT(*)  AS unread_count
		                FROM chat_messages
		                WHERE receiver_id = $1
		                  AND is_read = FALSE
		                GROUP BY sender_id)

		SELECT u.id,
		       u.full_name,
		       u.avatar,
		       lm.message                   AS last_message,
		       lm.created_at                AS last_message_time,
		       COALESCE(uc.unread_count, 0) AS unread_count
		FROM users u
		         LEFT JOIN last_message lm ON lm.peer_id = u.id
		         LEFT JOIN unread uc ON uc.peer_id = u.id
		WHERE u.role = 'user'
		ORDER BY lm.created_at DESC NULLS LAST, u.id
		`,
		adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return rows, nil
}
