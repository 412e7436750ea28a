package chats

import (
	"errors"
)

var ErrInvalidParams = errors.New("invalid query parameters")
