package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/relay"
	"github.com/kgellert/portal-chat/internal/transport/httpapi"
	"github.com/kgellert/portal-chat/internal/ws"
	"github.com/kgellert/portal-chat/internal/ws/hub"
	"golang.org/x/time/rate"
)

type Relay interface {
	Send(ctx context.Context, req relay.SendRequest) (messages.Message, error)
}

type Options struct {
	ReadDeadline  time.Duration
	PingPeriod    time.Duration
	WriteWait     time.Duration
	SendBuffer    int
	SendRate      float64
	SendBurst     int
	EnforceSender bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func WSHandler(h *hub.Hub, rl Relay, validate *validator.Validate, opts Options, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ws.WSHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer conn.Close()

		hc := hub.NewConnection(conn, opts.SendBuffer)
		go hc.WritePump(opts.WriteWait, opts.PingPeriod)

		h.Register(hc)
		defer h.Unregister(hc)

		_ = conn.SetReadDeadline(time.Now().Add(opts.ReadDeadline))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(opts.ReadDeadline))
			return nil
		})

		hello, _ := ws.NewEvent(ws.EventHello, ws.HelloPayload{OK: true})
		h.SendTo(hc, hello)

		limiter := rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst)

		s := &session{
			hub:      h,
			relay:    rl,
			conn:     hc,
			validate: validate,
			limiter:  limiter,
			opts:     opts,
			log:      log,
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("ws read error", sl.Err(err))
				} else {
					log.Debug("ws closed", sl.Err(err))
				}
				return
			}

			var env ws.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Warn("ws bad json", sl.Err(err))
				continue
			}

			switch env.Type {
			case ws.EventJoinRoom:
				s.joinRoom(env.Data)
			case ws.EventSendMessage:
				s.sendMessage(r.Context(), env.Data)
			default:
				log.Info("ws unknown message type", slog.String("message type", env.Type))
			}
		}
	}
}

type session struct {
	hub      *hub.Hub
	relay    Relay
	conn     *hub.Connection
	validate *validator.Validate
	limiter  *rate.Limiter
	opts     Options
	log      *slog.Logger
}

// joinRoom never answers the client: a payload without a usable userId is
// dropped and the connection stays unjoined.
func (s *session) joinRoom(data json.RawMessage) {
	var p ws.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Debug("ignoring joinRoom", sl.Err(err))
		return
	}
	if err := s.validate.Struct(p); err != nil {
		s.log.Debug("ignoring joinRoom", sl.Err(err))
		return
	}

	res := s.hub.Join(s.conn, p.UserID, p.IsAdmin)

	switch res {
	case hub.Conflict:
		s.log.Warn("connection already bound to another participant",
			slog.Int64("bound_id", s.conn.ParticipantID()),
			slog.Int64("requested_id", p.UserID),
		)
	default:
		s.log.Debug("joinRoom", slog.Int64("user_id", p.UserID), slog.String("result", res.String()))
	}
}

func (s *session) sendMessage(ctx context.Context, data json.RawMessage) {
	var p ws.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn("ws bad sendMessage payload", sl.Err(err))
		s.fail("", messages.ErrInvalidMessage)
		return
	}

	if !s.limiter.Allow() {
		s.fail(p.ClientID, messages.ErrRateLimited)
		return
	}

	if bound := s.conn.ParticipantID(); s.opts.EnforceSender && bound != 0 && bound != p.SenderID {
		s.log.Warn("sender mismatch",
			slog.Int64("bound_id", bound),
			slog.Int64("sender_id", p.SenderID),
		)
		s.fail(p.ClientID, messages.ErrSenderMismatch)
		return
	}

	if _, err := s.relay.Send(ctx, relay.NewSendRequest(p)); err != nil {
		s.fail(p.ClientID, err)
	}
}

func (s *session) fail(clientID string, err error) {
	code, msg := failureCode(err)

	payload, mErr := ws.NewEvent(ws.EventMessageFailed, ws.MessageFailedPayload{
		ClientID: clientID,
		Code:     code,
		Message:  msg,
	})
	if mErr != nil {
		s.log.Error("failed to build ws event", sl.Err(mErr))
		return
	}

	s.hub.SendTo(s.conn, payload)
}

func failureCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, messages.ErrRateLimited):
		return "rate_limited", err.Error()
	case errors.Is(err, messages.ErrSenderMismatch):
		return "sender_mismatch", err.Error()
	case errors.Is(err, messages.ErrInvalidMessage):
		return "invalid_message", messages.ErrInvalidMessage.Error()
	case errors.Is(err, messages.ErrMessageTooLong):
		return "message_too_long", err.Error()
	}

	return "send_failed", "message could not be delivered"
}

func StatsHandler(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ws.StatsHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		stats, err := h.Stats(r.Context())
		if err != nil {
			log.Error("failed to read hub stats", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, stats)
	}
}
