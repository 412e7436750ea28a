package participantsrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/lib/pq"
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// GetParticipant reads the current profile; callers rely on it not being cached.
func (r *Repo) GetParticipant(ctx context.Context, id int64) (participants.Participant, error) {
	const op = "storage.postgres.GetParticipant"

	var p participants.Participant
	err := r.db.GetContext(
		ctx,
		&p,
		`SELECT id, full_name, avatar, role FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return participants.Participant{}, fmt.Errorf("%s: %d: %w", op, id, participants.ErrParticipantNotFound)
	}
	if err != nil {
		return participants.Participant{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return p, nil
}

// GetParticipants reads several profiles in one query. Ids without a users
// row are absent from the result.
func (r *Repo) GetParticipants(ctx context.Context, ids []int64) (map[int64]participants.Participant, error) {
	const op = "storage.postgres.GetParticipants"

	if len(ids) == 0 {
		return map[int64]participants.Participant{}, nil
	}

	found := []participants.Participant{}
	err := r.db.SelectContext(
		ctx,
		&found,
		`SELECT id, full_name, avatar, role FROM users WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	byID := make(map[int64]participants.Participant, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	return byID, nil
}
