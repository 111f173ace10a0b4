package server_test

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ratjar110/gameshow-app/internal/config"
	"github.com/ratjar110/gameshow-app/internal/protocol"
	"github.com/ratjar110/gameshow-app/internal/server"
	"github.com/ratjar110/gameshow-app/internal/signaling"
)

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	hub := signaling.NewHub()
	go hub.Run()
	ts := httptest.NewServer(server.NewMux(hub))
	t.Cleanup(ts.Close)
	return ts
}

// The local endpoints the client sweeps in dev mode must name a path the
// relay actually serves, or every handshake is refused with a 404.
func TestDevEndpointPathsMatchRelayRoutes(t *testing.T) {
	ts := startRelay(t)

	cfg := config.Config{Domain: "x.example.com", Dev: true}
	endpoints := cfg.Endpoints()
	// The last endpoint is the production fallback; only the local ones
	// point at this relay.
	for _, endpoint := range endpoints[:len(endpoints)-1] {
		u, err := url.Parse(endpoint)
		if err != nil {
			t.Fatalf("parse %q: %v", endpoint, err)
		}

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + u.Path
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			status := ""
			if resp != nil {
				status = resp.Status
			}
			t.Fatalf("dial %q (path from %q): %v %s", wsURL, endpoint, err, status)
		}
		conn.Close()
	}
}

func TestUnknownTypeFrameDoesNotBreakSession(t *testing.T) {
	ts := startRelay(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BOGUS"}`)); err != nil {
		t.Fatalf("write unknown frame: %v", err)
	}

	join, err := protocol.NewEnvelope(protocol.TypeJoin, protocol.JoinPayload{
		RoomID:      "room-1",
		DisplayName: "alice",
	})
	if err != nil {
		t.Fatalf("build JOIN: %v", err)
	}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("write JOIN: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if env.Type != protocol.TypePeers {
		t.Fatalf("reply type = %q, want %q", env.Type, protocol.TypePeers)
	}
}
