package config

import (
	"fmt"
	"os"
)

// Default configuration values (production).
const (
	DefaultDomain = "gameshow-app.vercel.app"
	DefaultSTUN   = "stun:stun.l.google.com:19302"

	// devPort is where a locally run relay listens (cmd/server default).
	devPort = "3001"

	// wsPath is the relay's websocket route (internal/server).
	wsPath = "/ws"
)

// Config holds client configuration.
type Config struct {
	// SignalURL, when set, is the only relay endpoint used.
	SignalURL string

	// Domain is the production deployment; the relay endpoint is derived
	// from it when no explicit override is given.
	Domain string

	// Dev prepends local relay endpoints to the candidate list.
	Dev bool

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carry CLI flag overrides into Load.
type Options struct {
	SignalURL  string
	Domain     string
	Dev        bool
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	pick := func(flag, env, def string) string {
		if flag != "" {
			return flag
		}
		if v := os.Getenv(env); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		SignalURL:  pick(opts.SignalURL, "SIGNAL_URL", ""),
		Domain:     pick(opts.Domain, "DOMAIN", DefaultDomain),
		Dev:        opts.Dev || os.Getenv("GAMESHOW_DEV") != "",
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
	}
	if cfg.TURNServer != "" && cfg.TURNUser == "" {
		return nil, fmt.Errorf("TURN server %q configured without credentials", cfg.TURNServer)
	}
	return cfg, nil
}

// Endpoints returns the ordered relay candidates the reconnect
// supervisor walks: explicit override beats everything, dev-local
// endpoints come before the derived production URL.
func (c *Config) Endpoints() []string {
	if c.SignalURL != "" {
		return []string{c.SignalURL}
	}
	derived := fmt.Sprintf("wss://%s/api/ws", c.Domain)
	if c.Dev {
		// The local endpoints carry the relay's websocket path; a bare
		// host would handshake against / and be refused.
		return []string{
			"ws://localhost:" + devPort + wsPath,
			"ws://127.0.0.1:" + devPort + wsPath,
			derived,
		}
	}
	return []string{derived}
}

// RoomLink returns the webapp URL for a room id.
func (c *Config) RoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/room/%s", c.Domain, roomID)
}

// STUNServers returns STUN server URLs.
func (c *Config) STUNServers() []string {
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured.
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// TURNCredentials returns the TURN username and password.
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
