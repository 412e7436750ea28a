package messages

import (
	"testing"
	"time"

	"github.com/kgellert/portal-chat/internal/participants"
	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	createdAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	avatar := "uploads/jane.png"

	m := NewMessage(
		ChatMessage{ID: 3, SenderID: 7, ReceiverID: 1, Message: "Hello", CreatedAt: createdAt},
		participants.Participant{ID: 7, FullName: "Jane Applicant", Avatar: &avatar},
		"/uploads/default-avatar.png",
	)

	assert.Equal(t, int64(3), m.ID)
	assert.Equal(t, "Jane Applicant", m.FullName)
	assert.Equal(t, "/uploads/jane.png", m.Avatar)
	assert.Equal(t, createdAt, m.CreatedAt)
}

func TestNewMessage_UnknownSender(t *testing.T) {
	m := NewMessage(ChatMessage{ID: 1, SenderID: 99}, participants.Participant{}, "/uploads/default-avatar.png")

	assert.Equal(t, participants.UnknownName, m.FullName)
	assert.Equal(t, "/uploads/default-avatar.png", m.Avatar)
}
