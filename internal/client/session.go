// Package client runs one end-to-end room session: relay connection
// with reconnect, peer negotiation, local media, and the room model.
package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ratjar110/gameshow-app/internal/client/media"
	"github.com/ratjar110/gameshow-app/internal/client/peer"
	"github.com/ratjar110/gameshow-app/internal/client/room"
	"github.com/ratjar110/gameshow-app/internal/client/signaling"
	"github.com/ratjar110/gameshow-app/internal/config"
	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// Options describe one room session.
type Options struct {
	Config      *config.Config
	RoomID      string
	DisplayName string
	IsHost      bool

	// OnUpdate fires after any room-model change, for redraws. Optional.
	OnUpdate func()
}

// Session wires the supervisor, the negotiation engine, and the room
// state together. One Session per joined room.
type Session struct {
	cfg    *config.Config
	roomID string
	isHost bool

	state  *room.State
	engine *peer.Engine
	source *media.Source

	sup *signaling.Supervisor

	mu        sync.Mutex
	transport signaling.Transport

	onUpdate func()
	log      *slog.Logger
}

// New builds a session. Media capture failure is non-fatal: the client
// joins receive-only, matching how a browser peer behaves when camera
// permission is denied.
func New(opts Options) (*Session, error) {
	if opts.RoomID == "" {
		return nil, ErrRoomRequired
	}

	log := slog.With("component", "session", "room", opts.RoomID)

	source, err := media.Open()
	if err != nil {
		log.Warn("no local media, joining receive-only", "err", err)
		source = nil
	}

	onUpdate := opts.OnUpdate
	if onUpdate == nil {
		onUpdate = func() {}
	}

	s := &Session{
		cfg:      opts.Config,
		roomID:   opts.RoomID,
		isHost:   opts.IsHost,
		state:    room.NewState(source),
		source:   source,
		onUpdate: onUpdate,
		log:      log,
	}

	s.engine = peer.NewEngine(peer.Options{
		ICEServers: s.iceServers(),
		Tracks:     source.Tracks(),
		Sender:     s,
		Events:     s,
	})

	join := protocol.JoinPayload{
		RoomID:      opts.RoomID,
		DisplayName: opts.DisplayName,
		IsHost:      opts.IsHost,
	}
	dial := func(ctx context.Context, url string) (signaling.Transport, error) {
		return signaling.Dial(ctx, url)
	}
	s.sup = signaling.New(opts.Config.Endpoints(), join, dial, s.serve)

	return s, nil
}

// Run blocks until ctx is cancelled, keeping the relay connection alive
// across endpoint failures and drops.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()
	if err := s.sup.Run(ctx); err != nil && ctx.Err() == nil {
		return NewError("run session", err)
	}
	return nil
}

// Close releases media and tears down every peer link. Safe after Run
// returns; Run calls it itself.
func (s *Session) Close() {
	s.engine.Reset()
	s.source.Release()
}

// State exposes the room model for rendering.
func (s *Session) State() *room.State {
	return s.state
}

// serve is the per-connection loop the supervisor runs. Every new
// connection starts from an empty peer set; the PEERS reply rebuilds
// it.
func (s *Session) serve(ctx context.Context, t signaling.Transport) {
	s.setTransport(t)
	defer s.setTransport(nil)

	s.engine.Reset()
	s.state.Reset()
	s.onUpdate()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-t.Incoming():
			if !ok {
				return
			}
			s.dispatch(env)
		}
	}
}

func (s *Session) dispatch(env *protocol.Envelope) {
	if !env.Type.Known() {
		s.log.Warn("unknown message type", "type", env.Type)
		return
	}

	switch env.Type {
	case protocol.TypePeers:
		var p protocol.PeersPayload
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad PEERS", "err", err)
			return
		}
		s.log.Info("joined room", "clientId", p.ClientID, "peers", len(p.Peers))
		s.state.SetSelf(p.ClientID, s.isHost)
		s.state.SetPeers(p.Peers)
		s.engine.SetSelf(p.ClientID, s.isHost)
		for _, info := range p.Peers {
			s.engine.Call(peer.Participant{ID: info.ID, IsHost: info.IsHost})
		}
		s.onUpdate()

	case protocol.TypePeerJoined:
		var p protocol.PeerJoinedPayload
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad PEER_JOINED", "err", err)
			return
		}
		s.log.Info("peer joined", "clientId", p.ClientID, "name", p.DisplayName)
		s.state.AddPeer(protocol.PeerInfo{
			ID:          p.ClientID,
			DisplayName: p.DisplayName,
			IsHost:      p.IsHost,
		})
		s.engine.Call(peer.Participant{ID: p.ClientID, IsHost: p.IsHost})
		s.onUpdate()

	case protocol.TypePeerLeft:
		var p protocol.PeerLeftPayload
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad PEER_LEFT", "err", err)
			return
		}
		s.log.Info("peer left", "clientId", p.ClientID)
		s.engine.Drop(p.ClientID)
		s.state.RemovePeer(p.ClientID)
		s.onUpdate()

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad SIGNAL", "err", err)
			return
		}
		s.engine.HandleSignal(p.FromID, p.Data)

	case protocol.TypeHostEvent:
		var p protocol.HostEventPayload
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad HOST_EVENT", "err", err)
			return
		}
		s.state.Apply(p)
		s.onUpdate()

	default:
		// Known but server-bound, e.g. a reflected JOIN.
		s.log.Warn("unexpected message type", "type", env.Type)
	}
}

// SendSignal implements peer.Sender: negotiation data goes out through
// whatever relay connection is currently live. Signals raced against a
// reconnect are dropped; the engine restarts negotiation afterwards
// anyway.
func (s *Session) SendSignal(targetID string, data *protocol.SignalData) {
	t := s.currentTransport()
	if t == nil {
		return
	}
	signal, err := protocol.NewEnvelope(protocol.TypeSignal, protocol.SignalPayload{
		TargetID: targetID,
		Data:     mustRaw(data),
	})
	if err != nil {
		s.log.Warn("encode signal", "err", err)
		return
	}
	t.Send(signal)
}

// SendHostEvent sends a host control command. Only the host side of a
// session may issue these; the relay enforces it too.
func (s *Session) SendHostEvent(event string, data any) error {
	if !s.isHost {
		return NewError("send host event", ErrNotHost)
	}
	t := s.currentTransport()
	if t == nil {
		return WrapError("send host event", ErrNotConnected, event)
	}
	payload := protocol.HostEventPayload{Event: event}
	if data != nil {
		payload.Data = mustRaw(data)
	}
	env, err := protocol.NewEnvelope(protocol.TypeHostEvent, payload)
	if err != nil {
		return NewError("send host event", err)
	}
	t.Send(env)
	return nil
}

// PeerTrack implements peer.Events. The track is drained so the
// transport keeps flowing; rendering is the UI's concern and a terminal
// has none.
func (s *Session) PeerTrack(remoteID string, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	s.log.Info("remote track", "peer", remoteID, "kind", track.Kind())
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
	s.onUpdate()
}

// PeerClosed implements peer.Events.
func (s *Session) PeerClosed(remoteID string) {
	s.log.Debug("peer link closed", "peer", remoteID)
	s.onUpdate()
}

func (s *Session) setTransport(t signaling.Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

func (s *Session) currentTransport() signaling.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func (s *Session) iceServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: s.cfg.STUNServers()}}
	if turn := s.cfg.TURNServers(); turn != nil {
		user, pass := s.cfg.TURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   user,
			Credential: pass,
		})
	}
	return servers
}

// mustRaw marshals data built from our own structs, which cannot fail.
func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
