package peer

import (
	"encoding/json"
	"log/slog"
	"sync"

	pionlog "github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// State tracks one link's negotiation progress.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateHaveLocalOffer
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Sender delivers signal data toward one remote id, normally via the
// relay. Delivery is best-effort.
type Sender interface {
	SendSignal(targetID string, data *protocol.SignalData)
}

// Events is the advisory interface toward the presentation layer. The
// engine reports links and tracks; it never renders anything.
type Events interface {
	PeerTrack(remoteID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	PeerClosed(remoteID string)
}

type nopEvents struct{}

func (nopEvents) PeerTrack(string, *webrtc.TrackRemote, *webrtc.RTPReceiver) {}
func (nopEvents) PeerClosed(string)                                          {}

// Options configure a negotiation engine.
type Options struct {
	ICEServers []webrtc.ICEServer

	// Tracks are the shared outbound media tracks. With none, links are
	// created recv-only so offers still carry media sections.
	Tracks []webrtc.TrackLocal

	Sender Sender
	Events Events
}

// link is the per-remote negotiation state. It is owned by the engine
// and only touched under the engine lock.
type link struct {
	remote    Participant
	pc        *webrtc.PeerConnection
	state     State
	remoteSet bool
}

// Engine drives offer/answer/candidate exchange with every remote
// participant the client knows about. One engine per relay connection;
// a reconnect discards it wholesale and starts a fresh one.
//
// Negotiation is event-driven with no parallelism requirement, so a
// single lock serializes all operations; that also guarantees a second
// local-description creation never starts before the first completes
// for the same remote id.
type Engine struct {
	mu      sync.Mutex
	self    Participant
	links   map[string]*link
	pending map[string][]webrtc.ICECandidateInit

	api    *webrtc.API
	rtcCfg webrtc.Configuration
	tracks []webrtc.TrackLocal
	sender Sender
	events Events
	log    *slog.Logger
}

func NewEngine(opts Options) *Engine {
	lf := pionlog.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = pionlog.LogLevelWarn
	se := webrtc.SettingEngine{LoggerFactory: lf}

	events := opts.Events
	if events == nil {
		events = nopEvents{}
	}

	return &Engine{
		links:   make(map[string]*link),
		pending: make(map[string][]webrtc.ICECandidateInit),
		api:     webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		rtcCfg:  webrtc.Configuration{ICEServers: opts.ICEServers},
		tracks:  opts.Tracks,
		sender:  opts.Sender,
		events:  events,
		log:     slog.With("component", "negotiation"),
	}
}

// SetSelf records the relay-assigned identity. Calls before this are
// no-ops; the comparator needs both sides' ids.
func (e *Engine) SetSelf(id string, isHost bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.self = Participant{ID: id, IsHost: isHost}
}

// Call dials the remote participant if the initiation policy picks the
// local side. Idempotent per remote id: an in-flight or established
// link suppresses a second attempt.
func (e *Engine) Call(remote Participant) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.self.ID == "" || !ShouldInitiate(e.self, remote) {
		return
	}
	if _, ok := e.links[remote.ID]; ok {
		return
	}

	l, err := e.newLink(remote)
	if err != nil {
		e.log.Warn("create peer connection", "remote", remote.ID, "err", err)
		return
	}
	l.state = StateOffering

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		e.log.Warn("create offer", "remote", remote.ID, "err", err)
		e.closeLinkLocked(remote.ID, StateFailed)
		return
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		e.log.Warn("set local offer", "remote", remote.ID, "err", err)
		e.closeLinkLocked(remote.ID, StateFailed)
		return
	}
	l.state = StateHaveLocalOffer

	e.sender.SendSignal(remote.ID, &protocol.SignalData{
		Kind: protocol.KindOffer,
		SDP:  l.pc.LocalDescription(),
	})
	e.log.Debug("offer sent", "remote", remote.ID)
}

// HandleSignal applies one relayed signal from fromID. Malformed or
// state-conflicting signals are dropped with a warning; the link is
// only torn down when the transport itself reports a fatal state.
func (e *Engine) HandleSignal(fromID string, raw json.RawMessage) {
	var data protocol.SignalData
	if err := json.Unmarshal(raw, &data); err != nil {
		e.log.Warn("malformed signal", "from", fromID, "err", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch data.Kind {
	case protocol.KindOffer:
		e.handleOffer(fromID, data.SDP)
	case protocol.KindAnswer:
		e.handleAnswer(fromID, data.SDP)
	case protocol.KindCandidate:
		e.handleCandidate(fromID, data.Candidate)
	default:
		e.log.Warn("unknown signal kind", "from", fromID, "kind", data.Kind)
	}
}

func (e *Engine) handleOffer(fromID string, sdp *webrtc.SessionDescription) {
	if sdp == nil {
		e.log.Warn("offer without sdp", "from", fromID)
		return
	}

	l, ok := e.links[fromID]
	if !ok {
		// First contact from this remote: take the responder role.
		var err error
		l, err = e.newLink(Participant{ID: fromID})
		if err != nil {
			e.log.Warn("create responder connection", "remote", fromID, "err", err)
			return
		}
	}

	if l.state == StateHaveLocalOffer {
		// Glare: both sides offered at once. The side the comparator
		// designates keeps its offer; the other rolls back and answers.
		if ShouldInitiate(e.self, l.remote) {
			e.log.Debug("glare: holding local offer", "remote", fromID)
			return
		}
		if err := l.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			e.log.Warn("glare rollback", "remote", fromID, "err", err)
			return
		}
		l.state = StateIdle
		e.log.Debug("glare: rolled back local offer", "remote", fromID)
	}

	if err := l.pc.SetRemoteDescription(*sdp); err != nil {
		e.log.Warn("set remote offer", "remote", fromID, "err", err)
		return
	}
	l.remoteSet = true
	e.flushPendingLocked(l)

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		e.log.Warn("create answer", "remote", fromID, "err", err)
		return
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		e.log.Warn("set local answer", "remote", fromID, "err", err)
		return
	}
	l.state = StateConnected

	e.sender.SendSignal(fromID, &protocol.SignalData{
		Kind: protocol.KindAnswer,
		SDP:  l.pc.LocalDescription(),
	})
	e.log.Debug("answer sent", "remote", fromID)
}

func (e *Engine) handleAnswer(fromID string, sdp *webrtc.SessionDescription) {
	l, ok := e.links[fromID]
	if !ok || l.state != StateHaveLocalOffer {
		// No offer outstanding toward this remote.
		e.log.Warn("unexpected answer dropped", "from", fromID)
		return
	}
	if sdp == nil {
		e.log.Warn("answer without sdp", "from", fromID)
		return
	}
	if err := l.pc.SetRemoteDescription(*sdp); err != nil {
		e.log.Warn("set remote answer", "remote", fromID, "err", err)
		return
	}
	l.remoteSet = true
	e.flushPendingLocked(l)
	l.state = StateConnected
}

func (e *Engine) handleCandidate(fromID string, cand *webrtc.ICECandidateInit) {
	if cand == nil {
		return
	}
	l, ok := e.links[fromID]
	if !ok || !l.remoteSet {
		// Trickled candidate raced ahead of its description; hold it
		// until the remote description lands.
		e.pending[fromID] = append(e.pending[fromID], *cand)
		return
	}
	if err := l.pc.AddICECandidate(*cand); err != nil {
		e.log.Warn("add candidate", "remote", fromID, "err", err)
	}
}

// flushPendingLocked applies the queued candidates for the link's remote
// id in arrival order, then clears the queue.
func (e *Engine) flushPendingLocked(l *link) {
	queued := e.pending[l.remote.ID]
	if len(queued) == 0 {
		return
	}
	delete(e.pending, l.remote.ID)
	for _, cand := range queued {
		if err := l.pc.AddICECandidate(cand); err != nil {
			e.log.Warn("add queued candidate", "remote", l.remote.ID, "err", err)
		}
	}
	e.log.Debug("flushed candidate queue", "remote", l.remote.ID, "count", len(queued))
}

// Drop tears down the link to one remote id, e.g. on PEER_LEFT.
func (e *Engine) Drop(remoteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLinkLocked(remoteID, StateClosed)
}

// Reset tears down every link. Used when the relay connection is lost:
// the client rejoins from an empty peer set.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.links {
		e.closeLinkLocked(id, StateClosed)
	}
}

// States snapshots the negotiation state per remote id.
func (e *Engine) States() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]State, len(e.links))
	for id, l := range e.links {
		out[id] = l.state
	}
	return out
}

func (e *Engine) closeLinkLocked(remoteID string, terminal State) {
	l, ok := e.links[remoteID]
	if !ok {
		return
	}
	delete(e.links, remoteID)
	delete(e.pending, remoteID)
	l.state = terminal
	l.pc.Close()
	e.events.PeerClosed(remoteID)
}

// newLink builds the pion connection for one remote and registers the
// callbacks that feed back into the engine.
func (e *Engine) newLink(remote Participant) (*link, error) {
	pc, err := e.api.NewPeerConnection(e.rtcCfg)
	if err != nil {
		return nil, err
	}

	l := &link{remote: remote, pc: pc, state: StateIdle}
	e.links[remote.ID] = l

	if len(e.tracks) > 0 {
		for _, track := range e.tracks {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				delete(e.links, remote.ID)
				return nil, err
			}
		}
	} else {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				delete(e.links, remote.ID)
				return nil, err
			}
		}
	}

	remoteID := remote.ID

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		e.mu.Lock()
		alive := e.links[remoteID] == l
		e.mu.Unlock()
		if !alive {
			// Never signal for a closed link.
			return
		}
		init := c.ToJSON()
		e.sender.SendSignal(remoteID, &protocol.SignalData{
			Kind:      protocol.KindCandidate,
			Candidate: &init,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.events.PeerTrack(remoteID, track, receiver)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.log.Debug("connection state", "remote", remoteID, "state", state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			e.mu.Lock()
			if e.links[remoteID] == l {
				e.closeLinkLocked(remoteID, StateFailed)
			}
			e.mu.Unlock()
		}
	})

	return l, nil
}
