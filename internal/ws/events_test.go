package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	b, err := NewEvent(EventMessageFailed, MessageFailedPayload{ClientID: "c-1", Code: "rate_limited", Message: "slow down"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, EventMessageFailed, env.Type)

	var p MessageFailedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "c-1", p.ClientID)
	assert.Equal(t, "rate_limited", p.Code)
}

func TestRoomName(t *testing.T) {
	assert.Equal(t, "user_7", RoomName(7))
}
