package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Type discriminates the websocket envelope. The payload shape is fixed
// per type; anything else is rejected at the boundary.
type Type string

const (
	TypeJoin       Type = "JOIN"
	TypePeers      Type = "PEERS"
	TypePeerJoined Type = "PEER_JOINED"
	TypePeerLeft   Type = "PEER_LEFT"
	TypeSignal     Type = "SIGNAL"
	TypeHostEvent  Type = "HOST_EVENT"
)

// Host event names with relay-side special handling.
const (
	EventMuteAll            = "MUTE_ALL"
	EventUnmuteAll          = "UNMUTE_ALL"
	EventGroupsUpdate       = "GROUPS_UPDATE"
	EventRequestScreenShare = "REQUEST_SCREEN_SHARE"
	EventStopScreenShare    = "STOP_SCREEN_SHARE"
)

// Host event names the relay forwards verbatim. The relay does not
// interpret these; clients apply them as local effects.
const (
	EventMute              = "MUTE"
	EventUnmute            = "UNMUTE"
	EventHideCam           = "HIDE_CAM"
	EventShowCam           = "SHOW_CAM"
	EventScoresUpdate      = "SCORES_UPDATE"
	EventAnnouncement      = "ANNOUNCEMENT"
	EventSpotlight         = "SPOTLIGHT"
	EventClearSpotlight    = "CLEAR_SPOTLIGHT"
	EventStartRound        = "START_ROUND"
	EventEndRound          = "END_ROUND"
	EventRevealContestants = "REVEAL_CONTESTANTS"
	EventHideContestants   = "HIDE_CONTESTANTS"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is sent by a client to enter a room. The room is created
// implicitly if it does not exist yet.
type JoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

// PeerInfo describes one other session in the room.
type PeerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
	Group       string `json:"group,omitempty"`
}

// PeersPayload answers a JOIN: the caller's assigned id plus everyone
// already in the room.
type PeersPayload struct {
	ClientID string     `json:"clientId"`
	Peers    []PeerInfo `json:"peers"`
}

type PeerJoinedPayload struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

type PeerLeftPayload struct {
	ClientID string `json:"clientId"`
}

// SignalPayload carries negotiation data. Clients address it with
// TargetID; the relay rewrites the envelope with FromID on delivery.
// Data stays opaque to the relay.
type SignalPayload struct {
	TargetID string          `json:"targetId,omitempty"`
	FromID   string          `json:"fromId,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// Signal data kinds inside SignalPayload.Data.
const (
	KindOffer     = "offer"
	KindAnswer    = "answer"
	KindCandidate = "candidate"
)

// SignalData is the client-side view of SignalPayload.Data. SDP and
// Candidate marshal to the browser RTCSessionDescription and
// RTCIceCandidate.toJSON shapes, so Go and web clients interoperate.
type SignalData struct {
	Kind      string                     `json:"kind"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// HostEventPayload wraps a host control command. Event names outside the
// special-cased set are opaque to the relay.
type HostEventPayload struct {
	FromID string          `json:"fromId,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event's data field into out.
func (p *HostEventPayload) Decode(out any) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%s: empty data", p.Event)
	}
	if err := json.Unmarshal(p.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", p.Event, err)
	}
	return nil
}

// TargetData is the data shape of events aimed at a single session
// (MUTE, UNMUTE, HIDE_CAM, SHOW_CAM, screen share request/stop).
type TargetData struct {
	TargetID string `json:"targetId"`
}

// GroupsData maps clientId to group name for GROUPS_UPDATE.
type GroupsData struct {
	Groups map[string]string `json:"groups"`
}

// ScoresData maps clientId to score for SCORES_UPDATE.
type ScoresData struct {
	Scores map[string]int `json:"scores"`
}

type AnnouncementData struct {
	Text string `json:"text"`
}

// RoundData describes a timed round. EndsAt is unix milliseconds; when
// zero, receivers derive the deadline from Duration (seconds).
type RoundData struct {
	Duration int   `json:"duration,omitempty"`
	EndsAt   int64 `json:"endsAt,omitempty"`
}

// NewEnvelope marshals payload into a typed envelope.
func NewEnvelope(t Type, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return &Envelope{Type: t, Payload: raw}, nil
}

// MustEnvelope is NewEnvelope for payloads built from our own structs,
// which cannot fail to marshal.
func MustEnvelope(t Type, payload any) *Envelope {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into out, validating it belongs to the
// envelope's variant.
func (e *Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Known reports whether the envelope type is part of the protocol.
// Unknown variants are logged and dropped by both ends rather than
// silently falling through.
func (t Type) Known() bool {
	switch t {
	case TypeJoin, TypePeers, TypePeerJoined, TypePeerLeft, TypeSignal, TypeHostEvent:
		return true
	}
	return false
}
