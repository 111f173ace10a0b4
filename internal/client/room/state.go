// Package room tracks what the client knows about its room: the peer
// roster and the game state driven by host events.
package room

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// Controls is the local media surface host events act on. Only events
// targeted at this client reach it.
type Controls interface {
	SetAudioEnabled(on bool)
	SetVideoEnabled(on bool)
	StartScreenShare()
	StopScreenShare()
}

type nopControls struct{}

func (nopControls) SetAudioEnabled(bool) {}
func (nopControls) SetVideoEnabled(bool) {}
func (nopControls) StartScreenShare()    {}
func (nopControls) StopScreenShare()     {}

// State is the client-side room model. The session loop mutates it from
// relay messages; the UI reads snapshots.
type State struct {
	mu sync.Mutex

	selfID   string
	selfHost bool

	peers map[string]protocol.PeerInfo

	scores       map[string]int
	announcement string
	spotlightID  string
	roundEndsAt  time.Time
	revealed     bool

	controls Controls
	now      func() time.Time
	log      *slog.Logger
}

func NewState(controls Controls) *State {
	if controls == nil {
		controls = nopControls{}
	}
	return &State{
		peers:    make(map[string]protocol.PeerInfo),
		scores:   make(map[string]int),
		controls: controls,
		now:      time.Now,
		log:      slog.With("component", "room"),
	}
}

// SetSelf records the relay-assigned identity from the PEERS reply.
func (s *State) SetSelf(id string, isHost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
	s.selfHost = isHost
}

// SetPeers replaces the roster, from the PEERS reply.
func (s *State) SetPeers(peers []protocol.PeerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[string]protocol.PeerInfo, len(peers))
	for _, p := range peers {
		s.peers[p.ID] = p
	}
}

func (s *State) AddPeer(p protocol.PeerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID] = p
}

func (s *State) RemovePeer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	delete(s.scores, id)
	if s.spotlightID == id {
		s.spotlightID = ""
	}
}

// Reset clears the roster but keeps the game state; it is called on
// relay reconnect, where peers re-announce but the show goes on.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[string]protocol.PeerInfo)
}

// Apply applies one received host event. Targeted events act only when
// aimed at this client; roster-wide events mutate the room model.
// Malformed event data is logged and ignored.
func (s *State) Apply(ev protocol.HostEventPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Event {
	case protocol.EventMute, protocol.EventUnmute:
		if s.targetedAtSelfLocked(ev) {
			s.controls.SetAudioEnabled(ev.Event == protocol.EventUnmute)
		}

	case protocol.EventHideCam, protocol.EventShowCam:
		if s.targetedAtSelfLocked(ev) {
			s.controls.SetVideoEnabled(ev.Event == protocol.EventShowCam)
		}

	case protocol.EventRequestScreenShare:
		if s.targetedAtSelfLocked(ev) {
			s.controls.StartScreenShare()
		}

	case protocol.EventStopScreenShare:
		if s.targetedAtSelfLocked(ev) {
			s.controls.StopScreenShare()
		}

	case protocol.EventScoresUpdate:
		var data protocol.ScoresData
		if err := ev.Decode(&data); err != nil {
			s.log.Warn("bad scores update", "err", err)
			return
		}
		s.scores = data.Scores
		if s.scores == nil {
			s.scores = make(map[string]int)
		}

	case protocol.EventAnnouncement:
		var data protocol.AnnouncementData
		if err := ev.Decode(&data); err != nil {
			s.log.Warn("bad announcement", "err", err)
			return
		}
		s.announcement = data.Text

	case protocol.EventSpotlight:
		var data protocol.TargetData
		if err := ev.Decode(&data); err != nil {
			s.log.Warn("bad spotlight", "err", err)
			return
		}
		s.spotlightID = data.TargetID

	case protocol.EventClearSpotlight:
		s.spotlightID = ""

	case protocol.EventStartRound:
		var data protocol.RoundData
		if err := ev.Decode(&data); err != nil {
			s.log.Warn("bad round start", "err", err)
			return
		}
		switch {
		case data.EndsAt > 0:
			s.roundEndsAt = time.UnixMilli(data.EndsAt)
		case data.Duration > 0:
			s.roundEndsAt = s.now().Add(time.Duration(data.Duration) * time.Second)
		}

	case protocol.EventEndRound:
		s.roundEndsAt = time.Time{}

	case protocol.EventGroupsUpdate:
		var data protocol.GroupsData
		if err := ev.Decode(&data); err != nil {
			s.log.Warn("bad groups update", "err", err)
			return
		}
		for id, group := range data.Groups {
			if id == s.selfID {
				// The roster never carries a self entry; record the
				// assignment so the group filter can use it.
				p := s.peers[id]
				p.ID = id
				p.Group = group
				s.peers[id] = p
				continue
			}
			if p, ok := s.peers[id]; ok {
				p.Group = group
				s.peers[id] = p
			}
		}

	case protocol.EventRevealContestants:
		s.revealed = true

	case protocol.EventHideContestants:
		s.revealed = false

	default:
		s.log.Debug("unhandled host event", "event", ev.Event)
	}
}

func (s *State) targetedAtSelfLocked(ev protocol.HostEventPayload) bool {
	var data protocol.TargetData
	if err := ev.Decode(&data); err != nil {
		s.log.Warn("bad target data", "event", ev.Event, "err", err)
		return false
	}
	return data.TargetID != "" && data.TargetID == s.selfID
}

// Visible reports whether a remote peer's media should render. The host
// is always visible. Contestants show only after a reveal, and when
// this client is in a group, only group mates show.
func (s *State) Visible(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[peerID]
	if !ok {
		return false
	}
	if p.IsHost || s.selfHost {
		return true
	}
	if !s.revealed {
		return false
	}
	selfGroup := s.selfGroupLocked()
	if selfGroup != "" && p.Group != selfGroup {
		return false
	}
	return true
}

func (s *State) selfGroupLocked() string {
	if p, ok := s.peers[s.selfID]; ok {
		return p.Group
	}
	return ""
}

// Snapshot is a stable copy of the room model for rendering.
type Snapshot struct {
	SelfID       string
	SelfHost     bool
	Peers        []protocol.PeerInfo
	Scores       map[string]int
	Announcement string
	SpotlightID  string
	RoundEndsAt  time.Time
	Revealed     bool
}

// RoundRemaining returns the time left in the active round, zero when
// no round is running.
func (snap Snapshot) RoundRemaining(now time.Time) time.Duration {
	if snap.RoundEndsAt.IsZero() || !now.Before(snap.RoundEndsAt) {
		return 0
	}
	return snap.RoundEndsAt.Sub(now)
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]protocol.PeerInfo, 0, len(s.peers))
	for id, p := range s.peers {
		if id == s.selfID {
			continue
		}
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].IsHost != peers[j].IsHost {
			return peers[i].IsHost
		}
		return peers[i].ID < peers[j].ID
	})

	scores := make(map[string]int, len(s.scores))
	for id, v := range s.scores {
		scores[id] = v
	}

	return Snapshot{
		SelfID:       s.selfID,
		SelfHost:     s.selfHost,
		Peers:        peers,
		Scores:       scores,
		Announcement: s.announcement,
		SpotlightID:  s.spotlightID,
		RoundEndsAt:  s.roundEndsAt,
		Revealed:     s.revealed,
	}
}
