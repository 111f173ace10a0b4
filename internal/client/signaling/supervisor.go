package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// Transport is what the supervisor hands to the per-connection session
// loop. *Conn implements it; tests substitute fakes.
type Transport interface {
	Send(env *protocol.Envelope)
	Incoming() <-chan *protocol.Envelope
	Close()
}

// Dialer opens one relay endpoint. The context carries the open timeout.
type Dialer func(ctx context.Context, url string) (Transport, error)

// SessionFunc runs the per-connection message loop. It must return when
// the transport's Incoming channel closes or the context is cancelled.
type SessionFunc func(ctx context.Context, t Transport)

// Supervisor maintains exactly one live relay connection. It walks an
// ordered endpoint list, aborts slow opens, and re-joins after every
// successful open; negotiation state is never carried across a
// reconnect. The retry state (endpoint index, cycle count, next delay)
// lives here, not in timer closures, so it can be tested without
// sockets.
type Supervisor struct {
	endpoints []string
	join      protocol.JoinPayload
	dial      Dialer
	session   SessionFunc

	// OpenTimeout aborts a candidate that does not reach open in time.
	// Advancing to the next candidate is not a retry cycle.
	OpenTimeout time.Duration

	// AdvanceDelay separates attempts on successive candidates.
	AdvanceDelay time.Duration

	// Backoff after a full sweep fails or an established connection
	// drops: Base + (cycle-1)*Step, capped at Cap. The supervisor never
	// permanently gives up.
	BackoffBase time.Duration
	BackoffStep time.Duration
	BackoffCap  time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) bool

	log *slog.Logger
}

// New builds a supervisor with the production timing constants.
func New(endpoints []string, join protocol.JoinPayload, dial Dialer, session SessionFunc) *Supervisor {
	return &Supervisor{
		endpoints:    endpoints,
		join:         join,
		dial:         dial,
		session:      session,
		OpenTimeout:  1200 * time.Millisecond,
		AdvanceDelay: 200 * time.Millisecond,
		BackoffBase:  800 * time.Millisecond,
		BackoffStep:  400 * time.Millisecond,
		BackoffCap:   5 * time.Second,
		sleep:        sleepCtx,
		log:          slog.With("component", "supervisor"),
	}
}

// Run loops until ctx is cancelled: sweep the candidates in order, run
// the session on the first that opens, back off, repeat. Cancellation
// aborts any pending dial, advance delay, or backoff timer.
func (s *Supervisor) Run(ctx context.Context) error {
	cycle := 0
	for {
		opened := false
		for i, endpoint := range s.endpoints {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			s.log.Debug("dialing relay", "url", endpoint)
			dialCtx, cancel := context.WithTimeout(ctx, s.OpenTimeout)
			t, err := s.dial(dialCtx, endpoint)
			cancel()
			if err != nil {
				s.log.Debug("endpoint unreachable", "url", endpoint, "err", err)
				if i < len(s.endpoints)-1 {
					if !s.sleep(ctx, s.AdvanceDelay) {
						return ctx.Err()
					}
				}
				continue
			}

			s.log.Info("relay connected", "url", endpoint)
			opened = true
			cycle = 0

			// Rejoin as if fresh; the session loop starts from an
			// empty peer set.
			t.Send(protocol.MustEnvelope(protocol.TypeJoin, s.join))
			s.session(ctx, t)
			t.Close()

			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("relay connection lost")
			break // restart the sweep from the first candidate
		}

		if !opened {
			s.log.Warn("all relay endpoints unreachable", "count", len(s.endpoints))
		}

		cycle++
		if !s.sleep(ctx, s.backoff(cycle)) {
			return ctx.Err()
		}
	}
}

func (s *Supervisor) backoff(cycle int) time.Duration {
	d := s.BackoffBase + time.Duration(cycle-1)*s.BackoffStep
	if d > s.BackoffCap {
		d = s.BackoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
