package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/uploads"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("parse admin_id: %w", chats.ErrInvalidParams), http.StatusBadRequest, "invalid_params"},
		{fmt.Errorf("open: %w", uploads.ErrObjectNotFound), http.StatusNotFound, "not_found"},
		{uploads.ErrInvalidKey, http.StatusBadRequest, "invalid_key"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		status, code, msg := MapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code)
		assert.NotEmpty(t, msg)
	}

	_, _, msg := MapError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", msg)
}
