package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/messages"
	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/kgellert/portal-chat/internal/uploads"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, chats.ErrInvalidParams):
		return http.StatusBadRequest, "invalid_params", err.Error()

	case errors.Is(err, participants.ErrParticipantNotFound):
		return http.StatusNotFound, "participant_not_found", err.Error()

	case errors.Is(err, messages.ErrInvalidMessage):
		return http.StatusBadRequest, "invalid_message", err.Error()

	case errors.Is(err, messages.ErrMessageTooLong):
		return http.StatusBadRequest, "message_too_long", err.Error()

	case errors.Is(err, uploads.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_key", err.Error()

	case errors.Is(err, uploads.ErrObjectNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
