package ws

import "time"

type HelloPayload struct {
	OK bool `json:"ok"`
}

type JoinRoomPayload struct {
	UserID  int64 `json:"userId" validate:"gt=0"`
	IsAdmin bool  `json:"isAdmin"`
}

// SendMessagePayload is what a client submits. Avatar and CreatedAt are
// only used for the sender's optimistic render; the server ignores them.
type SendMessagePayload struct {
	SenderID   int64      `json:"sender_id"`
	ReceiverID int64      `json:"receiver_id"`
	Message    string     `json:"message"`
	Avatar     string     `json:"avatar,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ClientID   string     `json:"client_id,omitempty"`
}

type MessageFailedPayload struct {
	ClientID string `json:"client_id,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}
