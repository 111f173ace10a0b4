package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ratjar110/gameshow-app/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The relay carries no credentials and no media; any origin may
	// open a signaling socket.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewMux builds the relay's route table. Clients derive their endpoint
// URLs from these paths, so they only change together.
func NewMux(hub *signaling.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health)
	mux.HandleFunc("/ws", ServeWs(hub))
	return mux
}

// Health reports liveness for load balancers.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// ServeWs returns the websocket handler. Each accepted connection gets a
// fresh client id; the session enters a room only once its JOIN is
// processed by the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		sess := signaling.NewSession(uuid.NewString(), hub, conn)
		slog.Debug("connection accepted", "client", sess.ID, "remote", conn.RemoteAddr())

		go sess.WritePump()
		go sess.ReadPump()
	}
}
