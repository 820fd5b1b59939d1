package app

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/logger"
	"github.com/precambrien/alisbot/internal/metrics"
	"github.com/precambrien/alisbot/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"no failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"1 failure", 1, 4 * time.Second},
		{"2 failures", 2, 8 * time.Second},
		{"3 failures", 3, 16 * time.Second},
		{"4 failures (capped)", 4, 30 * time.Second},
		{"10 failures (capped)", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 64; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.Session.ReconnectBase = time.Millisecond
	s.Reply.Interval = time.Millisecond
	return s
}

func TestSupervise_RetriesFailedDialsUntilCancelled(t *testing.T) {
	var dials atomic.Int32
	dial := func(context.Context, config.Instance) (net.Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	store := &state.Store{}
	cfg := config.Instance{Name: "testnet", Server: "irc.example.org", Port: 6667, Nickname: "alis"}
	inst := newInstance(cfg, testSettings(), logger.Discard(), store, metrics.New(), dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inst.supervise(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for dials.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("dials = %d, want at least 3", dials.Load())
		}
		time.Sleep(time.Millisecond)
	}

	snap, ok := store.Instance("testnet")
	if !ok {
		t.Fatal("instance not registered in store")
	}
	if snap.ConsecutiveFailures < 2 {
		t.Fatalf("ConsecutiveFailures = %d, want >= 2", snap.ConsecutiveFailures)
	}
	if snap.LastError == nil {
		t.Fatal("LastError = nil, want dial error")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("supervise() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervise did not return after cancel")
	}

	snap, _ = store.Instance("testnet")
	if snap.Phase != state.PhaseStopped {
		t.Fatalf("Phase = %q, want %q", snap.Phase, state.PhaseStopped)
	}
}
