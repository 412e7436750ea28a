package uploadshandler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/transport/httpapi"
	"github.com/kgellert/portal-chat/internal/uploads"
)

type Handler struct {
	service uploads.Service
	log     *slog.Logger
}

func New(service uploads.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// ServeObject handles GET /uploads/*.
func (h *Handler) ServeObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.ServeObject"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		path := chi.URLParam(r, "*")

		obj, err := h.service.Open(r.Context(), path)
		if err != nil {
			log.Warn("failed to open object", slog.String("path", path), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		defer obj.Body.Close()

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		if obj.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
		}
		w.Header().Set("Cache-Control", "public, max-age=300")

		if _, err := io.Copy(w, obj.Body); err != nil {
			log.Warn("failed to stream object", sl.Err(err))
		}
	}
}
