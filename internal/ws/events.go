package ws

import (
	"encoding/json"
	"fmt"
)

const (
	EventHello         = "hello"
	EventJoinRoom      = "joinRoom"
	EventSendMessage   = "sendMessage"
	EventNewMessage    = "newMessage"
	EventMessageFailed = "messageFailed"
)

// Envelope wraps every frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return json.Marshal(Envelope{Type: eventType, Data: raw})
}

func RoomName(participantID int64) string {
	return fmt.Sprintf("user_%d", participantID)
}
