package chatshandler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/lib/validate"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultAvatar = "/uploads/default-avatar.png"

type fakeRoster struct {
	rows    []chats.SummaryRow
	err     error
	adminID int64
}

func (f *fakeRoster) GetRoster(_ context.Context, adminID int64) ([]chats.SummaryRow, error) {
	f.adminID = adminID
	return f.rows, f.err
}

type historyCall struct {
	userID, adminID, viewerID int64
}

type fakeHistory struct {
	rows  []messages.ChatMessage
	err   error
	calls []historyCall
}

func (f *fakeHistory) HistoryAndMarkRead(_ context.Context, userID, adminID, viewerID int64) ([]messages.ChatMessage, int64, error) {
	f.calls = append(f.calls, historyCall{userID, adminID, viewerID})
	return f.rows, int64(len(f.rows)), f.err
}

type fakeSenders struct {
	known map[int64]participants.Participant
	err   error
	asked [][]int64
}

func (f *fakeSenders) GetParticipants(_ context.Context, ids []int64) (map[int64]participants.Participant, error) {
	f.asked = append(f.asked, ids)
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]participants.Participant{}
	for _, id := range ids {
		if p, ok := f.known[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func newRouter(roster *fakeRoster, history *fakeHistory) http.Handler {
	return newRouterWithSenders(roster, history, &fakeSenders{known: map[int64]participants.Participant{
		1: {ID: 1, FullName: "Admin", Role: participants.RoleAdmin},
		7: {ID: 7, FullName: "Jane Applicant", Role: participants.RoleUser},
	}})
}

func newRouterWithSenders(roster *fakeRoster, history *fakeHistory, senders *fakeSenders) http.Handler {
	h := New(roster, history, senders, validate.New(), defaultAvatar, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Get("/applicants", h.GetApplicants())
	r.Get("/history", h.GetHistory())
	return r
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetApplicants(t *testing.T) {
	last := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	roster := &fakeRoster{rows: []chats.SummaryRow{
		{
			ID:              7,
			FullName:        "Jane Applicant",
			Avatar:          sql.NullString{String: "uploads/jane.png", Valid: true},
			LastMessage:     sql.NullString{String: "Hello", Valid: true},
			LastMessageTime: sql.NullTime{Time: last, Valid: true},
			UnreadCount:     2,
		},
		{ID: 8, FullName: "John Applicant"},
	}}

	rec := do(t, newRouter(roster, &fakeHistory{}), "/applicants?admin_id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), roster.adminID)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "/uploads/jane.png", got[0]["avatar"])
	assert.Equal(t, "Hello", got[0]["lastMessage"])
	assert.Equal(t, float64(2), got[0]["unreadCount"])
	assert.Equal(t, defaultAvatar, got[1]["avatar"])
	assert.Nil(t, got[1]["lastMessage"])
	assert.Nil(t, got[1]["lastMessageTime"])
}

func TestGetApplicants_InvalidParams(t *testing.T) {
	router := newRouter(&fakeRoster{}, &fakeHistory{})

	for _, target := range []string{"/applicants", "/applicants?admin_id=abc", "/applicants?admin_id=0"} {
		rec := do(t, router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "invalid_params", target)
	}
}

func TestGetApplicants_RepoError(t *testing.T) {
	rec := do(t, newRouter(&fakeRoster{err: errors.New("boom")}, &fakeHistory{}), "/applicants?admin_id=1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestGetHistory_DefaultsViewerToAdmin(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{rows: []messages.ChatMessage{
		{ID: 1, SenderID: 7, ReceiverID: 1, Message: "Hello", CreatedAt: t0},
	}}

	rec := do(t, newRouter(&fakeRoster{}, history), "/history?user_id=7&admin_id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, history.calls, 1)
	assert.Equal(t, historyCall{userID: 7, adminID: 1, viewerID: 1}, history.calls[0])

	var got []messages.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Message)
	assert.Equal(t, int64(7), got[0].SenderID)
	assert.Equal(t, "Jane Applicant", got[0].FullName)
	assert.Equal(t, defaultAvatar, got[0].Avatar)
}

func TestGetHistory_ApplicantViewer(t *testing.T) {
	history := &fakeHistory{}

	rec := do(t, newRouter(&fakeRoster{}, history), "/history?user_id=7&admin_id=1&viewer_id=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	assert.Equal(t, int64(7), history.calls[0].viewerID)
}

func TestGetHistory_InvalidParams(t *testing.T) {
	history := &fakeHistory{}
	router := newRouter(&fakeRoster{}, history)

	for _, target := range []string{
		"/history?admin_id=1",
		"/history?user_id=7",
		"/history?user_id=1&admin_id=1",
		"/history?user_id=7&admin_id=1&viewer_id=9",
		"/history?user_id=7&admin_id=1&viewer_id=x",
	} {
		rec := do(t, router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	assert.Empty(t, history.calls)
}

func TestGetHistory_ResolvesSendersInOneLookup(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	avatar := "uploads/jane.png"
	history := &fakeHistory{rows: []messages.ChatMessage{
		{ID: 1, SenderID: 7, ReceiverID: 1, Message: "Hello", CreatedAt: t0},
		{ID: 2, SenderID: 1, ReceiverID: 7, Message: "Hi Jane", CreatedAt: t0.Add(time.Minute)},
		{ID: 3, SenderID: 7, ReceiverID: 1, Message: "Thanks", CreatedAt: t0.Add(2 * time.Minute)},
	}}
	senders := &fakeSenders{known: map[int64]participants.Participant{
		1: {ID: 1, FullName: "Admin"},
		7: {ID: 7, FullName: "Jane Applicant", Avatar: &avatar},
	}}

	rec := do(t, newRouterWithSenders(&fakeRoster{}, history, senders), "/history?user_id=7&admin_id=1")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, senders.asked, 1)
	assert.ElementsMatch(t, []int64{7, 1}, senders.asked[0])

	var got []messages.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "Jane Applicant", got[0].FullName)
	assert.Equal(t, "/uploads/jane.png", got[0].Avatar)
	assert.Equal(t, "Admin", got[1].FullName)
	assert.Equal(t, defaultAvatar, got[1].Avatar)
}

func TestGetHistory_UnresolvedSenderIsUnknown(t *testing.T) {
	history := &fakeHistory{rows: []messages.ChatMessage{{ID: 1, SenderID: 7, ReceiverID: 1, Message: "Hello"}}}

	for _, senders := range []*fakeSenders{
		{known: map[int64]participants.Participant{}},
		{err: errors.New("connection reset")},
	} {
		rec := do(t, newRouterWithSenders(&fakeRoster{}, history, senders), "/history?user_id=7&admin_id=1")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []messages.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, participants.UnknownName, got[0].FullName)
		assert.Equal(t, defaultAvatar, got[0].Avatar)
	}
}

func TestGetHistory_EmptyTranscriptSkipsLookup(t *testing.T) {
	senders := &fakeSenders{}

	rec := do(t, newRouterWithSenders(&fakeRoster{}, &fakeHistory{}, senders), "/history?user_id=7&admin_id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, senders.asked)
}
