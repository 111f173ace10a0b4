package peer

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// captureSender records every signal the engine emits.
type captureSender struct {
	mu      sync.Mutex
	signals []capturedSignal
}

type capturedSignal struct {
	targetID string
	data     *protocol.SignalData
}

func (c *captureSender) SendSignal(targetID string, data *protocol.SignalData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, capturedSignal{targetID: targetID, data: data})
}

func (c *captureSender) byKind(kind string) []capturedSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedSignal
	for _, s := range c.signals {
		if s.data.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func newTestEngine(t *testing.T, selfID string, isHost bool) (*Engine, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	e := NewEngine(Options{Sender: sender})
	e.SetSelf(selfID, isHost)
	t.Cleanup(e.Reset)
	return e, sender
}

// remoteOffer builds a real SDP offer the way a remote peer would.
func remoteOffer(t *testing.T) *webrtc.SessionDescription {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("new remote pc: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind); err != nil {
			t.Fatalf("add transceiver: %v", err)
		}
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return &offer
}

func signalJSON(t *testing.T, data *protocol.SignalData) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal signal: %v", err)
	}
	return raw
}

func candidateData(mid string) *protocol.SignalData {
	line := "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host"
	var idx uint16
	return &protocol.SignalData{
		Kind: protocol.KindCandidate,
		Candidate: &webrtc.ICECandidateInit{
			Candidate:     line,
			SDPMid:        &mid,
			SDPMLineIndex: &idx,
		},
	}
}

func TestCallIsGatedByPolicyAndIdempotent(t *testing.T) {
	e, sender := newTestEngine(t, "a", false)

	e.Call(Participant{ID: "b"})
	e.Call(Participant{ID: "b"}) // duplicate while in flight

	if got := len(sender.byKind(protocol.KindOffer)); got != 1 {
		t.Fatalf("offers sent = %d, want 1", got)
	}
	if st := e.States()["b"]; st != StateHaveLocalOffer {
		t.Fatalf("state = %v, want have-local-offer", st)
	}

	// The larger id never dials the smaller one.
	e.Call(Participant{ID: "A"}) // "A" < "a"
	for _, sig := range sender.byKind(protocol.KindOffer) {
		if sig.targetID == "A" {
			t.Fatal("engine dialed a remote the comparator assigns to the other side")
		}
	}
}

func TestRespondsToOfferFromUnknownRemote(t *testing.T) {
	e, sender := newTestEngine(t, "b", false)

	offer := remoteOffer(t)
	e.HandleSignal("a", signalJSON(t, &protocol.SignalData{Kind: protocol.KindOffer, SDP: offer}))

	answers := sender.byKind(protocol.KindAnswer)
	if len(answers) != 1 || answers[0].targetID != "a" {
		t.Fatalf("answers = %+v, want one toward a", answers)
	}
	if st := e.States()["a"]; st != StateConnected {
		t.Fatalf("state = %v, want connected", st)
	}
}

func TestCandidatesQueueUntilRemoteDescription(t *testing.T) {
	e, sender := newTestEngine(t, "b", false)

	// Candidates race ahead of the offer.
	e.HandleSignal("a", signalJSON(t, candidateData("0")))
	e.HandleSignal("a", signalJSON(t, candidateData("1")))

	e.mu.Lock()
	queued := len(e.pending["a"])
	e.mu.Unlock()
	if queued != 2 {
		t.Fatalf("queued candidates = %d, want 2", queued)
	}

	e.HandleSignal("a", signalJSON(t, &protocol.SignalData{Kind: protocol.KindOffer, SDP: remoteOffer(t)}))

	// Queue drained exactly once.
	e.mu.Lock()
	_, still := e.pending["a"]
	remoteSet := e.links["a"].remoteSet
	e.mu.Unlock()
	if still {
		t.Fatal("candidate queue not cleared after remote description")
	}
	if !remoteSet {
		t.Fatal("remote description not recorded")
	}
	if len(sender.byKind(protocol.KindAnswer)) != 1 {
		t.Fatal("offer after queued candidates was not answered")
	}

	// Late candidates now apply directly, without re-queuing.
	e.HandleSignal("a", signalJSON(t, candidateData("0")))
	e.mu.Lock()
	_, requeued := e.pending["a"]
	e.mu.Unlock()
	if requeued {
		t.Fatal("candidate queued although remote description is set")
	}
}

func TestGlareDesignatedInitiatorHoldsItsOffer(t *testing.T) {
	e, sender := newTestEngine(t, "a", false)

	e.Call(Participant{ID: "b"}) // "a" < "b": local side is the initiator
	if st := e.States()["b"]; st != StateHaveLocalOffer {
		t.Fatalf("state = %v, want have-local-offer", st)
	}

	// The remote offers anyway. The designated side must not yield.
	e.HandleSignal("b", signalJSON(t, &protocol.SignalData{Kind: protocol.KindOffer, SDP: remoteOffer(t)}))

	if len(sender.byKind(protocol.KindAnswer)) != 0 {
		t.Fatal("designated initiator answered during glare")
	}
	if st := e.States()["b"]; st != StateHaveLocalOffer {
		t.Fatalf("state = %v, want have-local-offer preserved", st)
	}
}

func TestGlareYieldingSideRollsBackAndAnswers(t *testing.T) {
	e, sender := newTestEngine(t, "b", false)

	// Force the local side into have-local-offer toward "a" even though
	// the comparator assigns initiation to "a". This is the race the
	// glare rule exists for.
	e.mu.Lock()
	l, err := e.newLink(Participant{ID: "a"})
	if err != nil {
		e.mu.Unlock()
		t.Fatalf("new link: %v", err)
	}
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		e.mu.Unlock()
		t.Fatalf("create offer: %v", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		e.mu.Unlock()
		t.Fatalf("set local offer: %v", err)
	}
	l.state = StateHaveLocalOffer
	e.mu.Unlock()

	e.HandleSignal("a", signalJSON(t, &protocol.SignalData{Kind: protocol.KindOffer, SDP: remoteOffer(t)}))

	answers := sender.byKind(protocol.KindAnswer)
	if len(answers) != 1 || answers[0].targetID != "a" {
		t.Fatalf("answers = %+v, want one toward a after rollback", answers)
	}
	if st := e.States()["a"]; st != StateConnected {
		t.Fatalf("state = %v, want connected", st)
	}
}

func TestUnexpectedAnswerDropped(t *testing.T) {
	e, _ := newTestEngine(t, "a", false)

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}
	e.HandleSignal("b", signalJSON(t, &protocol.SignalData{Kind: protocol.KindAnswer, SDP: &answer}))

	if len(e.States()) != 0 {
		t.Fatal("stray answer created a link")
	}
}

func TestDropReleasesLinkAndQueue(t *testing.T) {
	e, _ := newTestEngine(t, "b", false)

	e.HandleSignal("a", signalJSON(t, candidateData("0")))
	e.HandleSignal("a", signalJSON(t, &protocol.SignalData{Kind: protocol.KindOffer, SDP: remoteOffer(t)}))

	e.Drop("a")

	e.mu.Lock()
	_, hasLink := e.links["a"]
	_, hasQueue := e.pending["a"]
	e.mu.Unlock()
	if hasLink || hasQueue {
		t.Fatal("drop left link or queue behind")
	}
}

func TestResetClosesEverything(t *testing.T) {
	rec := &closedRecorder{}
	e := NewEngine(Options{Sender: &captureSender{}, Events: rec})
	e.SetSelf("a", true) // host dials everyone

	e.Call(Participant{ID: "b"})
	e.Call(Participant{ID: "c"})
	e.Reset()

	if len(e.States()) != 0 {
		t.Fatal("reset left links behind")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.closed) != 2 {
		t.Fatalf("closed notifications = %v, want 2", rec.closed)
	}
}

type closedRecorder struct {
	mu     sync.Mutex
	closed []string
}

func (r *closedRecorder) PeerTrack(string, *webrtc.TrackRemote, *webrtc.RTPReceiver) {}

func (r *closedRecorder) PeerClosed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
}
