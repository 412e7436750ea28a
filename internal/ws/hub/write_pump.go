package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// WritePump owns every write to the socket. It stops when the hub closes
// the send queue or a write fails; a failed write also closes the socket so
// the reader stops waiting for its deadline.
func (c *Connection) WritePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := write(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}

		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
