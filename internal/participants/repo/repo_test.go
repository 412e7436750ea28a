package participantsrepo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRepo_GetParticipant(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, full_name, avatar, role FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar", "role"}).
			AddRow(int64(7), "Jane Applicant", "uploads/jane.png", "user"))

	p, err := repo.GetParticipant(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Jane Applicant", p.FullName)
	require.NotNil(t, p.Avatar)
	assert.Equal(t, "uploads/jane.png", *p.Avatar)
	assert.False(t, p.IsAdmin())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetParticipant_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar", "role"}))

	_, err := repo.GetParticipant(context.Background(), 42)
	assert.ErrorIs(t, err, participants.ErrParticipantNotFound)
}

func TestRepo_GetParticipants(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar", "role"}).
			AddRow(int64(1), "Admin", nil, "admin").
			AddRow(int64(7), "Jane Applicant", "uploads/jane.png", "user"))

	got, err := repo.GetParticipants(context.Background(), []int64{7, 1, 99})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Jane Applicant", got[7].FullName)
	require.NotNil(t, got[7].Avatar)
	assert.Equal(t, "uploads/jane.png", *got[7].Avatar)
	assert.True(t, got[1].IsAdmin())
	assert.Nil(t, got[1].Avatar)

	_, ok := got[99]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetParticipants_NoIDs(t *testing.T) {
	repo, mock := newMock(t)

	got, err := repo.GetParticipants(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
