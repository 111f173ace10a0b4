package signaling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ratjar110/gameshow-app/internal/protocol"
)

type fakeTransport struct {
	sent     []*protocol.Envelope
	incoming chan *protocol.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan *protocol.Envelope)}
}

func (f *fakeTransport) Send(env *protocol.Envelope)         { f.sent = append(f.sent, env) }
func (f *fakeTransport) Incoming() <-chan *protocol.Envelope { return f.incoming }
func (f *fakeTransport) Close()                              {}

// testSupervisor records dial attempts and sleeps instead of doing them.
func testSupervisor(endpoints []string, dial Dialer) (*Supervisor, *[]time.Duration) {
	s := New(endpoints, protocol.JoinPayload{RoomID: "quiz", DisplayName: "Ana"}, dial, func(ctx context.Context, t Transport) {})
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		return ctx.Err() == nil
	}
	return s, &sleeps
}

func TestSweepsAllEndpointsInOrderBeforeBackoff(t *testing.T) {
	endpoints := []string{"ws://one", "ws://two", "ws://three"}

	var attempts []string
	ctx, cancel := context.WithCancel(context.Background())
	dial := func(_ context.Context, url string) (Transport, error) {
		attempts = append(attempts, url)
		if len(attempts) == 6 {
			cancel() // stop after the second full sweep
		}
		return nil, errors.New("unreachable")
	}

	s, sleeps := testSupervisor(endpoints, dial)
	s.Run(ctx)

	if len(attempts) < 6 {
		t.Fatalf("attempts = %v, want two full sweeps", attempts)
	}
	for i := 0; i < 6; i++ {
		if attempts[i] != endpoints[i%3] {
			t.Fatalf("attempt %d = %q, want %q", i, attempts[i], endpoints[i%3])
		}
	}

	// Two advance delays inside the sweep, then one backoff.
	got := *sleeps
	if len(got) < 3 {
		t.Fatalf("sleeps = %v", got)
	}
	if got[0] != s.AdvanceDelay || got[1] != s.AdvanceDelay {
		t.Fatalf("advance delays = %v, want %v", got[:2], s.AdvanceDelay)
	}
	if got[2] != s.BackoffBase {
		t.Fatalf("first backoff = %v, want %v", got[2], s.BackoffBase)
	}
}

func TestBackoffGrowsAcrossRetryCycles(t *testing.T) {
	s, _ := testSupervisor(nil, nil)

	first := s.backoff(1)
	second := s.backoff(2)
	if first >= second {
		t.Fatalf("backoff did not grow: cycle1=%v cycle2=%v", first, second)
	}
	if got := s.backoff(1000); got != s.BackoffCap {
		t.Fatalf("backoff = %v, want cap %v", got, s.BackoffCap)
	}
}

func TestRejoinsOnEveryOpen(t *testing.T) {
	var transports []*fakeTransport
	ctx, cancel := context.WithCancel(context.Background())
	dial := func(_ context.Context, url string) (Transport, error) {
		ft := newFakeTransport()
		transports = append(transports, ft)
		if len(transports) == 2 {
			cancel()
		}
		return ft, nil
	}

	s, _ := testSupervisor([]string{"ws://one"}, dial)
	// Session returns immediately, simulating an instant connection drop.
	s.session = func(ctx context.Context, tr Transport) {}
	s.Run(ctx)

	if len(transports) != 2 {
		t.Fatalf("opened %d connections, want 2", len(transports))
	}
	for i, ft := range transports {
		if len(ft.sent) != 1 || ft.sent[0].Type != protocol.TypeJoin {
			t.Fatalf("connection %d sent %v, want exactly one JOIN", i, ft.sent)
		}
		var join protocol.JoinPayload
		if err := ft.sent[0].Decode(&join); err != nil {
			t.Fatalf("decode JOIN: %v", err)
		}
		if join.RoomID != "quiz" {
			t.Fatalf("JOIN room = %q", join.RoomID)
		}
	}
}

func TestCancelStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialed := false
	s, sleeps := testSupervisor([]string{"ws://one"}, func(_ context.Context, _ string) (Transport, error) {
		dialed = true
		return nil, errors.New("unreachable")
	})

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if dialed {
		t.Fatal("dialed after cancellation")
	}
	if len(*sleeps) != 0 {
		t.Fatalf("slept after cancellation: %v", *sleeps)
	}
}

func TestSuccessResetsBackoffCycle(t *testing.T) {
	// Sequence: fail sweep (backoff 1), open+drop (reset), fail sweep.
	// The backoff after the post-success sweep must equal the base
	// again, not the second step.
	step := 0
	ctx, cancel := context.WithCancel(context.Background())
	dial := func(_ context.Context, url string) (Transport, error) {
		step++
		switch step {
		case 1:
			return nil, errors.New("unreachable")
		case 2:
			return newFakeTransport(), nil
		default:
			cancel()
			return nil, errors.New("unreachable")
		}
	}

	s, sleeps := testSupervisor([]string{"ws://one"}, dial)
	s.session = func(ctx context.Context, tr Transport) {}
	s.Run(ctx)

	got := *sleeps
	// sleeps: backoff after failed sweep, backoff after dropped
	// connection, backoff after post-success failed sweep.
	if len(got) < 2 {
		t.Fatalf("sleeps = %v", got)
	}
	if got[1] != s.BackoffBase {
		t.Fatalf("backoff after successful open = %v, want base %v", got[1], s.BackoffBase)
	}
}
