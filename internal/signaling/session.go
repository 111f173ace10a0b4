package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers are the largest
	// frames we see and stay well under this.
	maxMessageSize = 64 * 1024
)

// Session is one connected client within a room: its relay-assigned
// identity, JOIN-time metadata, and the websocket it arrived on. The id
// is allocated on connect and stable for the connection's lifetime.
type Session struct {
	ID          string
	DisplayName string
	IsHost      bool
	Group       string
	RoomID      string

	hub  *Hub
	conn *websocket.Conn

	// Send is the ordered outbound queue. The hub writes to it, the
	// write pump drains it, so per-session delivery order matches the
	// order the hub produced messages in.
	Send chan *protocol.Envelope
}

// NewSession wraps an upgraded connection. The session is not in any
// room until its JOIN is processed.
func NewSession(id string, hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		ID:   id,
		hub:  hub,
		conn: conn,
		Send: make(chan *protocol.Envelope, 64),
	}
}

// ReadPump pumps envelopes from the websocket to the hub. It is the only
// reader of the connection. A frame that fails to parse is logged and
// dropped; only transport errors end the session.
func (s *Session) ReadPump() {
	defer func() {
		s.hub.Unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("session read error", "client", s.ID, "err", err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("dropping malformed frame", "client", s.ID, "err", err)
			continue
		}
		if !env.Type.Known() {
			slog.Warn("dropping unknown message type", "client", s.ID, "type", env.Type)
			continue
		}

		s.hub.Inbound <- &inbound{sess: s, env: &env}
	}
}

// WritePump pumps envelopes from the Send queue to the websocket and
// keeps the connection alive with pings. It is the only writer of the
// connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env, ok := <-s.Send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue on unregister.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(env); err != nil {
				slog.Debug("session write error", "client", s.ID, "err", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues an envelope without blocking the hub loop. Delivery is
// best-effort: a full queue (stalled client) drops the message rather
// than stalling the room.
func (s *Session) trySend(env *protocol.Envelope) bool {
	select {
	case s.Send <- env:
		return true
	default:
		slog.Warn("send queue full, dropping message", "client", s.ID, "type", env.Type)
		return false
	}
}
