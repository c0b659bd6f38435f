package server

import (
	"sync"

	"github.com/gofiber/contrib/websocket"

	orchestration "github.com/Priya-Diwakar/nova-voice-assistant/core"
)

// websocketSink delivers session events to the browser as JSON text frames.
// Events come from several pipeline goroutines, so writes are serialized.
type websocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWebsocketSink(conn *websocket.Conn) *websocketSink {
	return &websocketSink{conn: conn}
}

func (s *websocketSink) Send(event orchestration.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteJSON(event)
}
