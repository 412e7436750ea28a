package chatshandler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/kgellert/portal-chat/internal/transport/httpapi"
)

type Handler struct {
	roster        chats.RosterRepo
	history       chats.HistoryRepo
	senders       chats.SenderLookup
	validate      *validator.Validate
	defaultAvatar string
	log           *slog.Logger
}

func New(
	roster chats.RosterRepo,
	history chats.HistoryRepo,
	senders chats.SenderLookup,
	validate *validator.Validate,
	defaultAvatar string,
	log *slog.Logger,
) *Handler {
	return &Handler{
		roster:        roster,
		history:       history,
		senders:       senders,
		validate:      validate,
		defaultAvatar: defaultAvatar,
		log:           log,
	}
}

type applicantsQuery struct {
	AdminID int64 `validate:"gt=0"`
}

type historyQuery struct {
	UserID   int64 `validate:"gt=0,nefield=AdminID"`
	AdminID  int64 `validate:"gt=0"`
	ViewerID int64 `validate:"gt=0"`
}

func (h *Handler) GetApplicants() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.GetApplicants"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		adminID, err := queryID(r, "admin_id")
		if err != nil {
			log.Warn("invalid admin_id", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		if err := h.validate.Struct(applicantsQuery{AdminID: adminID}); err != nil {
			log.Warn("invalid query", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %s", chats.ErrInvalidParams, err))
			return
		}

		rows, err := h.roster.GetRoster(r.Context(), adminID)
		if err != nil {
			log.Error("failed to get roster", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		summaries := make([]chats.Summary, 0, len(rows))
		for _, row := range rows {
			summaries = append(summaries, chats.NewSummaryFromRow(row, h.defaultAvatar))
		}

		log.Debug("roster fetched", slog.Int("applicants", len(summaries)))

		render.JSON(w, r, summaries)
	}
}

// GetHistory returns the transcript between user_id and admin_id in
// ascending time order. Messages addressed to viewer_id are marked read;
// viewer_id defaults to admin_id.
func (h *Handler) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.GetHistory"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var (
			q   historyQuery
			err error
		)

		if q.UserID, err = queryID(r, "user_id"); err != nil {
			log.Warn("invalid user_id", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		if q.AdminID, err = queryID(r, "admin_id"); err != nil {
			log.Warn("invalid admin_id", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		q.ViewerID = q.AdminID
		if r.URL.Query().Has("viewer_id") {
			if q.ViewerID, err = queryID(r, "viewer_id"); err != nil {
				log.Warn("invalid viewer_id", sl.Err(err))
				httpapi.WriteError(w, r, err)
				return
			}
		}

		if err := h.validate.Struct(q); err != nil {
			log.Warn("invalid query", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %s", chats.ErrInvalidParams, err))
			return
		}

		if q.ViewerID != q.UserID && q.ViewerID != q.AdminID {
			httpapi.WriteError(w, r, fmt.Errorf("%w: viewer_id must be one of the pair", chats.ErrInvalidParams))
			return
		}

		rows, marked, err := h.history.HistoryAndMarkRead(r.Context(), q.UserID, q.AdminID, q.ViewerID)
		if err != nil {
			log.Error("failed to get history", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		senders := map[int64]participants.Participant{}
		if len(rows) > 0 {
			// the read is already committed; unresolved senders show as Unknown
			senders, err = h.senders.GetParticipants(r.Context(), senderIDs(rows))
			if err != nil {
				log.Error("failed to resolve senders", sl.Err(err))
				senders = map[int64]participants.Participant{}
			}
		}

		msgs := make([]messages.Message, 0, len(rows))
		for _, row := range rows {
			msgs = append(msgs, messages.NewMessage(row, senders[row.SenderID], h.defaultAvatar))
		}

		log.Debug("history fetched",
			slog.Int("messages", len(msgs)),
			slog.Int64("marked_read", marked),
		)

		render.JSON(w, r, msgs)
	}
}

func senderIDs(rows []messages.ChatMessage) []int64 {
	seen := make(map[int64]bool, 2)
	ids := make([]int64, 0, 2)
	for _, m := range rows {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	return ids
}

func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", chats.ErrInvalidParams, key)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", chats.ErrInvalidParams, key, err)
	}

	return id, nil
}
