package room

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

type fakeControls struct {
	audio   []bool
	video   []bool
	sharing []bool
}

func (f *fakeControls) SetAudioEnabled(on bool) { f.audio = append(f.audio, on) }
func (f *fakeControls) SetVideoEnabled(on bool) { f.video = append(f.video, on) }
func (f *fakeControls) StartScreenShare()       { f.sharing = append(f.sharing, true) }
func (f *fakeControls) StopScreenShare()        { f.sharing = append(f.sharing, false) }

func event(t *testing.T, name string, data any) protocol.HostEventPayload {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return protocol.HostEventPayload{FromID: "host", Event: name, Data: raw}
}

func newTestState(controls Controls) *State {
	s := NewState(controls)
	s.SetSelf("self", false)
	s.SetPeers([]protocol.PeerInfo{
		{ID: "host", DisplayName: "MC", IsHost: true},
		{ID: "p1", DisplayName: "Ana"},
		{ID: "p2", DisplayName: "Ben"},
	})
	return s
}

func TestTargetedEventsOnlyActOnSelf(t *testing.T) {
	controls := &fakeControls{}
	s := newTestState(controls)

	s.Apply(event(t, protocol.EventMute, protocol.TargetData{TargetID: "p1"}))
	if len(controls.audio) != 0 {
		t.Fatalf("mute for another peer touched local audio: %v", controls.audio)
	}

	s.Apply(event(t, protocol.EventMute, protocol.TargetData{TargetID: "self"}))
	s.Apply(event(t, protocol.EventUnmute, protocol.TargetData{TargetID: "self"}))
	if len(controls.audio) != 2 || controls.audio[0] || !controls.audio[1] {
		t.Fatalf("audio transitions = %v, want [false true]", controls.audio)
	}

	s.Apply(event(t, protocol.EventHideCam, protocol.TargetData{TargetID: "self"}))
	s.Apply(event(t, protocol.EventShowCam, protocol.TargetData{TargetID: "self"}))
	if len(controls.video) != 2 || controls.video[0] || !controls.video[1] {
		t.Fatalf("video transitions = %v, want [false true]", controls.video)
	}

	s.Apply(event(t, protocol.EventRequestScreenShare, protocol.TargetData{TargetID: "self"}))
	s.Apply(event(t, protocol.EventStopScreenShare, protocol.TargetData{TargetID: "self"}))
	if len(controls.sharing) != 2 || !controls.sharing[0] || controls.sharing[1] {
		t.Fatalf("sharing transitions = %v, want [true false]", controls.sharing)
	}
}

func TestScoresAnnouncementSpotlight(t *testing.T) {
	s := newTestState(nil)

	s.Apply(event(t, protocol.EventScoresUpdate, protocol.ScoresData{Scores: map[string]int{"p1": 30, "p2": 10}}))
	s.Apply(event(t, protocol.EventAnnouncement, protocol.AnnouncementData{Text: "Final round!"}))
	s.Apply(event(t, protocol.EventSpotlight, protocol.TargetData{TargetID: "p2"}))

	snap := s.Snapshot()
	if snap.Scores["p1"] != 30 || snap.Scores["p2"] != 10 {
		t.Fatalf("scores = %v", snap.Scores)
	}
	if snap.Announcement != "Final round!" {
		t.Fatalf("announcement = %q", snap.Announcement)
	}
	if snap.SpotlightID != "p2" {
		t.Fatalf("spotlight = %q", snap.SpotlightID)
	}

	s.Apply(event(t, protocol.EventClearSpotlight, nil))
	if snap = s.Snapshot(); snap.SpotlightID != "" {
		t.Fatalf("spotlight not cleared: %q", snap.SpotlightID)
	}
}

func TestRoundDeadline(t *testing.T) {
	s := newTestState(nil)
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Apply(event(t, protocol.EventStartRound, protocol.RoundData{Duration: 90}))
	snap := s.Snapshot()
	if got := snap.RoundRemaining(base); got != 90*time.Second {
		t.Fatalf("remaining = %v, want 90s", got)
	}
	if got := snap.RoundRemaining(base.Add(2 * time.Minute)); got != 0 {
		t.Fatalf("remaining after deadline = %v, want 0", got)
	}

	// An absolute deadline wins over a duration.
	endsAt := base.Add(30 * time.Second)
	s.Apply(event(t, protocol.EventStartRound, protocol.RoundData{Duration: 90, EndsAt: endsAt.UnixMilli()}))
	if got := s.Snapshot().RoundRemaining(base); got != 30*time.Second {
		t.Fatalf("remaining = %v, want 30s", got)
	}

	s.Apply(event(t, protocol.EventEndRound, nil))
	if got := s.Snapshot().RoundRemaining(base); got != 0 {
		t.Fatalf("remaining after end = %v, want 0", got)
	}
}

func TestVisibilityGating(t *testing.T) {
	s := newTestState(nil)

	// Host renders before any reveal; contestants do not.
	if !s.Visible("host") {
		t.Fatal("host hidden before reveal")
	}
	if s.Visible("p1") {
		t.Fatal("contestant visible before reveal")
	}

	s.Apply(event(t, protocol.EventRevealContestants, nil))
	if !s.Visible("p1") || !s.Visible("p2") {
		t.Fatal("contestants hidden after reveal")
	}

	// Grouping restricts visibility to group mates.
	s.Apply(event(t, protocol.EventGroupsUpdate, protocol.GroupsData{Groups: map[string]string{
		"self": "red",
		"p1":   "red",
		"p2":   "blue",
	}}))
	if !s.Visible("p1") {
		t.Fatal("group mate hidden")
	}
	if s.Visible("p2") {
		t.Fatal("other group visible")
	}
	if !s.Visible("host") {
		t.Fatal("host hidden while grouped")
	}

	s.Apply(event(t, protocol.EventHideContestants, nil))
	if s.Visible("p1") {
		t.Fatal("contestant visible after hide")
	}

	if s.Visible("ghost") {
		t.Fatal("unknown peer visible")
	}
}

func TestHostSeesEveryone(t *testing.T) {
	s := NewState(nil)
	s.SetSelf("host", true)
	s.SetPeers([]protocol.PeerInfo{{ID: "p1"}, {ID: "p2", Group: "blue"}})

	if !s.Visible("p1") || !s.Visible("p2") {
		t.Fatal("host view filtered")
	}
}

func TestRemovePeerClearsDerivedState(t *testing.T) {
	s := newTestState(nil)
	s.Apply(event(t, protocol.EventScoresUpdate, protocol.ScoresData{Scores: map[string]int{"p1": 5}}))
	s.Apply(event(t, protocol.EventSpotlight, protocol.TargetData{TargetID: "p1"}))

	s.RemovePeer("p1")

	snap := s.Snapshot()
	if _, ok := snap.Scores["p1"]; ok {
		t.Fatal("score survived peer removal")
	}
	if snap.SpotlightID != "" {
		t.Fatal("spotlight survived peer removal")
	}
	for _, p := range snap.Peers {
		if p.ID == "p1" {
			t.Fatal("peer survived removal")
		}
	}
}

func TestResetKeepsGameState(t *testing.T) {
	s := newTestState(nil)
	s.Apply(event(t, protocol.EventAnnouncement, protocol.AnnouncementData{Text: "welcome"}))
	s.Apply(event(t, protocol.EventRevealContestants, nil))

	s.Reset()

	snap := s.Snapshot()
	if len(snap.Peers) != 0 {
		t.Fatalf("roster survived reset: %v", snap.Peers)
	}
	if snap.Announcement != "welcome" || !snap.Revealed {
		t.Fatal("game state lost on reset")
	}
}

func TestMalformedEventDataIgnored(t *testing.T) {
	controls := &fakeControls{}
	s := newTestState(controls)

	s.Apply(protocol.HostEventPayload{Event: protocol.EventMute, Data: json.RawMessage(`{broken`)})
	s.Apply(protocol.HostEventPayload{Event: protocol.EventScoresUpdate, Data: json.RawMessage(`"nope"`)})

	if len(controls.audio) != 0 {
		t.Fatalf("malformed mute acted: %v", controls.audio)
	}
	if got := s.Snapshot().Scores; len(got) != 0 {
		t.Fatalf("malformed scores applied: %v", got)
	}
}
