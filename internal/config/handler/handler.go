package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/kgellert/portal-chat/internal/config"
)

type Handler struct {
	public publicConfig
	log    *slog.Logger
}

// publicConfig is the part of config.Config clients may see. Fields of
// ChatConfig tagged json:"-" stay server-side.
type publicConfig struct {
	Chat config.ChatConfig `json:"chat"`
}

type appConfigResponse struct {
	Config publicConfig `json:"config"`
}

func New(cfg config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		public: publicConfig{Chat: cfg.Chat},
		log:    logger,
	}
}

// GetConfig lets clients learn the admin id and avatar placeholder instead
// of hard-coding them.
func (h *Handler) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.config.GetConfig"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		log.Debug("config requested", slog.Int64("admin_id", h.public.Chat.AdminID))

		render.JSON(w, r, appConfigResponse{Config: h.public})
	}
}
