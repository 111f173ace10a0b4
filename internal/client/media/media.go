// Package media owns the local outbound tracks shared by every peer
// connection. One Source per client session; the negotiation engine
// attaches its tracks to each new link.
package media

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Source is the shared outbound media handle. Host-issued controls
// (mute, camera hide, screen share) flip its gates; a disabled gate
// stops the corresponding track from being fed, the track itself stays
// attached so no renegotiation is needed.
type Source struct {
	audio webrtc.TrackLocal
	video webrtc.TrackLocal

	mu       sync.Mutex
	audioOn  bool
	videoOn  bool
	sharing  bool
	released bool

	release sync.Once
	log     *slog.Logger
}

// Open builds the local audio and video tracks. Failure is non-fatal
// for the caller: a client without media joins receive-only.
func Open() (*Source, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "gameshow",
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "gameshow",
	)
	if err != nil {
		return nil, err
	}

	return &Source{
		audio:   audio,
		video:   video,
		audioOn: true,
		videoOn: true,
		log:     slog.With("component", "media"),
	}, nil
}

// Tracks returns the outbound tracks to attach to a peer connection.
func (s *Source) Tracks() []webrtc.TrackLocal {
	if s == nil {
		return nil
	}
	return []webrtc.TrackLocal{s.audio, s.video}
}

func (s *Source) SetAudioEnabled(on bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioOn == on {
		return
	}
	s.audioOn = on
	s.log.Info("audio gate", "enabled", on)
}

func (s *Source) SetVideoEnabled(on bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoOn == on {
		return
	}
	s.videoOn = on
	s.log.Info("video gate", "enabled", on)
}

func (s *Source) StartScreenShare() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sharing {
		return
	}
	s.sharing = true
	s.log.Info("screen share started")
}

func (s *Source) StopScreenShare() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sharing {
		return
	}
	s.sharing = false
	s.log.Info("screen share stopped")
}

func (s *Source) AudioEnabled() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioOn
}

func (s *Source) VideoEnabled() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoOn
}

func (s *Source) Sharing() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

// Release tears the source down. Exactly-once regardless of how many
// teardown paths reach it.
func (s *Source) Release() {
	if s == nil {
		return
	}
	s.release.Do(func() {
		s.mu.Lock()
		s.released = true
		s.audioOn = false
		s.videoOn = false
		s.sharing = false
		s.mu.Unlock()
		s.log.Debug("media source released")
	})
}

// Released reports whether Release has run.
func (s *Source) Released() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
