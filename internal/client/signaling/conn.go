package signaling

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ratjar110/gameshow-app/internal/dns"
	"github.com/ratjar110/gameshow-app/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Conn is one live websocket to the relay. The supervisor owns its
// lifecycle; everything above it only reads Incoming and calls Send.
type Conn struct {
	ws       *websocket.Conn
	incoming chan *protocol.Envelope
	outgoing chan *protocol.Envelope
	quit     chan struct{}
	closer   sync.Once
}

// Dial connects to a relay endpoint. The context bounds the whole
// handshake; the supervisor passes its open timeout through it. Hostname
// resolution falls back to a public DNS race when the system resolver
// fails.
func Dial(ctx context.Context, serverURL string) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ip, err := dns.Resolve(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Conn{
		ws:       ws,
		incoming: make(chan *protocol.Envelope, 32),
		outgoing: make(chan *protocol.Envelope, 32),
		quit:     make(chan struct{}),
	}

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// readPump reads envelopes until the transport dies, then closes
// Incoming; consumers treat that as connection loss.
func (c *Conn) readPump() {
	defer func() {
		c.ws.Close()
		close(c.incoming)
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env protocol.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		c.incoming <- &env
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues an envelope for delivery. Best-effort: a dead connection
// drops the message and the caller learns about it from Incoming
// closing.
func (c *Conn) Send(env *protocol.Envelope) {
	select {
	case c.outgoing <- env:
	case <-c.quit:
	}
}

// Incoming returns the channel of received envelopes. It closes when the
// connection is lost.
func (c *Conn) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closer.Do(func() {
		close(c.quit)
	})
}
