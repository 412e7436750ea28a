package messages

import (
	"errors"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrMessageTooLong = errors.New("message is too long")
	ErrSenderMismatch = errors.New("sender does not match joined participant")
	ErrRateLimited    = errors.New("too many messages")
	ErrNoRowsReturned = errors.New("no rows returned")
)
