package signaling

import (
	"encoding/json"
	"log/slog"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// inbound pairs a parsed envelope with the session it arrived on.
type inbound struct {
	sess *Session
	env  *protocol.Envelope
}

// Hub is the relay's single event loop. Every inbound message is handled
// to completion before the next one, so the registry needs no locking
// and per-sender ordering is preserved end to end (hub order into each
// session's FIFO send queue). The hub never sees media, only control
// envelopes.
type Hub struct {
	registry *Registry

	// Inbound carries parsed envelopes from session read pumps.
	Inbound chan *inbound

	// Unregister carries sessions whose transport closed or errored.
	Unregister chan *Session
}

func NewHub() *Hub {
	return &Hub{
		registry:   NewRegistry(),
		Inbound:    make(chan *inbound),
		Unregister: make(chan *Session),
	}
}

// Run starts the hub's processing loop. It is the single goroutine that
// touches rooms and sessions.
func (h *Hub) Run() {
	for {
		select {
		case in := <-h.Inbound:
			h.handleMessage(in.sess, in.env)

		case sess := <-h.Unregister:
			h.handleLeave(sess)
		}
	}
}

func (h *Hub) handleMessage(sess *Session, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoin:
		h.handleJoin(sess, env)

	case protocol.TypeSignal:
		h.handleSignal(sess, env)

	case protocol.TypeHostEvent:
		h.handleHostEvent(sess, env)

	default:
		// Known but client-bound, e.g. a reflected PEERS. The read pump
		// already drops types outside the protocol.
		slog.Warn("unexpected message type", "client", sess.ID, "type", env.Type)
	}
}

// handleJoin admits the session into its room, answers with the current
// peer list, and announces the newcomer to everyone else.
func (h *Hub) handleJoin(sess *Session, env *protocol.Envelope) {
	var join protocol.JoinPayload
	if err := env.Decode(&join); err != nil {
		slog.Warn("bad JOIN", "client", sess.ID, "err", err)
		return
	}
	if join.RoomID == "" {
		slog.Warn("JOIN without room id", "client", sess.ID)
		return
	}
	if sess.RoomID != "" {
		slog.Warn("duplicate JOIN ignored", "client", sess.ID, "room", sess.RoomID)
		return
	}

	sess.RoomID = join.RoomID
	sess.DisplayName = join.DisplayName
	if sess.DisplayName == "" {
		sess.DisplayName = "Guest"
	}
	sess.IsHost = join.IsHost

	room := h.registry.Add(sess)
	slog.Info("session joined", "client", sess.ID, "room", room.ID, "name", sess.DisplayName, "host", sess.IsHost)

	sess.trySend(protocol.MustEnvelope(protocol.TypePeers, protocol.PeersPayload{
		ClientID: sess.ID,
		Peers:    h.registry.Peers(room.ID, sess.ID),
	}))

	h.broadcast(room, protocol.MustEnvelope(protocol.TypePeerJoined, protocol.PeerJoinedPayload{
		ClientID:    sess.ID,
		DisplayName: sess.DisplayName,
		IsHost:      sess.IsHost,
	}), sess.ID)
}

// handleSignal unicasts negotiation data to its target. A missing or
// unwritable target is a silent no-op: signaling is best-effort and the
// negotiation engine tolerates loss.
func (h *Hub) handleSignal(sess *Session, env *protocol.Envelope) {
	if sess.RoomID == "" {
		return // signal before JOIN
	}

	var sig protocol.SignalPayload
	if err := env.Decode(&sig); err != nil {
		slog.Warn("bad SIGNAL", "client", sess.ID, "err", err)
		return
	}

	target := h.registry.Get(sess.RoomID, sig.TargetID)
	if target == nil {
		return
	}
	target.trySend(protocol.MustEnvelope(protocol.TypeSignal, protocol.SignalPayload{
		FromID: sess.ID,
		Data:   sig.Data,
	}))
}

// handleHostEvent routes a host control command. Non-host senders are
// dropped without a reply. A closed set of event names gets special
// handling; everything else is broadcast verbatim to the whole room,
// host included.
func (h *Hub) handleHostEvent(sess *Session, env *protocol.Envelope) {
	if sess.RoomID == "" {
		return
	}
	if !sess.IsHost {
		slog.Debug("host event from non-host dropped", "client", sess.ID)
		return
	}

	var ev protocol.HostEventPayload
	if err := env.Decode(&ev); err != nil {
		slog.Warn("bad HOST_EVENT", "client", sess.ID, "err", err)
		return
	}

	room := h.registry.Room(sess.RoomID)
	if room == nil {
		return
	}

	switch ev.Event {
	case protocol.EventMuteAll, protocol.EventUnmuteAll:
		h.expandMuteAll(sess, room, ev.Event == protocol.EventMuteAll)

	case protocol.EventGroupsUpdate:
		var groups protocol.GroupsData
		if err := ev.Decode(&groups); err != nil {
			slog.Warn("bad GROUPS_UPDATE", "client", sess.ID, "err", err)
			return
		}
		// Persist assignments before rebroadcasting, so later PEERS
		// responses already carry the group tags.
		for id, group := range groups.Groups {
			h.registry.SetGroup(room.ID, id, group)
		}
		h.broadcastEvent(sess, room, ev.Event, ev.Data)

	case protocol.EventRequestScreenShare, protocol.EventStopScreenShare:
		// Private: only the named session learns about it.
		var target protocol.TargetData
		if err := ev.Decode(&target); err != nil {
			slog.Warn("bad screen share event", "client", sess.ID, "err", err)
			return
		}
		if t := h.registry.Get(room.ID, target.TargetID); t != nil {
			t.trySend(hostEventEnvelope(sess.ID, ev.Event, ev.Data))
		}

	default:
		h.broadcastEvent(sess, room, ev.Event, ev.Data)
	}
}

// expandMuteAll turns one MUTE_ALL/UNMUTE_ALL into an individual
// MUTE/UNMUTE per non-host session, each broadcast with its own
// targetId. Host sessions are never targeted.
func (h *Hub) expandMuteAll(from *Session, room *Room, mute bool) {
	event := protocol.EventUnmute
	if mute {
		event = protocol.EventMute
	}
	for id, target := range room.sessions {
		if target.IsHost {
			continue
		}
		data, _ := json.Marshal(protocol.TargetData{TargetID: id})
		h.broadcastEvent(from, room, event, data)
	}
}

// broadcastEvent fans a host event out to every session in the room,
// including the sender. Generic host events apply no exclusion.
func (h *Hub) broadcastEvent(from *Session, room *Room, event string, data json.RawMessage) {
	env := hostEventEnvelope(from.ID, event, data)
	for _, target := range room.sessions {
		target.trySend(env)
	}
}

// broadcast sends env to everyone in the room except excludeID.
func (h *Hub) broadcast(room *Room, env *protocol.Envelope, excludeID string) {
	for id, target := range room.sessions {
		if id == excludeID {
			continue
		}
		target.trySend(env)
	}
}

// handleLeave removes a disconnected session, tells the remaining room
// members, and lets the registry reap the room if it emptied.
func (h *Hub) handleLeave(sess *Session) {
	if sess.RoomID != "" && h.registry.Remove(sess) {
		slog.Info("session left", "client", sess.ID, "room", sess.RoomID)
		if room := h.registry.Room(sess.RoomID); room != nil {
			h.broadcast(room, protocol.MustEnvelope(protocol.TypePeerLeft, protocol.PeerLeftPayload{
				ClientID: sess.ID,
			}), sess.ID)
		}
	}
	close(sess.Send)
}

func hostEventEnvelope(fromID, event string, data json.RawMessage) *protocol.Envelope {
	return protocol.MustEnvelope(protocol.TypeHostEvent, protocol.HostEventPayload{
		FromID: fromID,
		Event:  event,
		Data:   data,
	})
}
