package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fastConfig shrinks every interval so a full silence→probe→timeout→reconnect
// cycle runs in tens of milliseconds.
func fastConfig() Config {
	return Config{
		CheckInterval:    5 * time.Millisecond,
		SilenceThreshold: 10 * time.Millisecond,
		ReplyTimeout:     10 * time.Millisecond,
		MaxFailures:      3,
		ProbeBackoffMin:  time.Millisecond,
		ProbeBackoffMax:  4 * time.Millisecond,
		ProbeJitter:      0.2,
		MaxProbeAttempts: 5,
	}
}

func TestNoProbesWhileTrafficFlows(t *testing.T) {
	var probes atomic.Int64
	m := NewMonitor(fastConfig(), func() error { probes.Add(1); return nil }, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	// Keep feeding packets for a while; the silence threshold never trips.
	for i := 0; i < 10; i++ {
		m.NotePacket()
		time.Sleep(4 * time.Millisecond)
	}
	cancel()
	<-done

	if probes.Load() != 0 {
		t.Fatalf("expected no probes while packets keep arriving, got %d", probes.Load())
	}
}

func TestSilenceTriggersProbe(t *testing.T) {
	var probes atomic.Int64
	m := NewMonitor(fastConfig(), func() error { probes.Add(1); return nil }, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	deadline := time.Now().Add(time.Second)
	for probes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done

	if probes.Load() == 0 {
		t.Fatal("expected a probe once inbound traffic went silent")
	}
}

func TestProbeReplyResetsFailureCount(t *testing.T) {
	cfg := fastConfig()
	cfg.ReplyTimeout = 50 * time.Millisecond // generous so the test's reply always lands in time
	var probes atomic.Int64
	m := NewMonitor(cfg, func() error {
		probes.Add(1)
		return nil
	}, func(context.Context) error {
		t.Error("reconnect probe must not run when probes are answered")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	// Answer every probe by recording a packet arrival shortly after.
	deadline := time.Now().Add(200 * time.Millisecond)
	var seen int64
	for time.Now().Before(deadline) {
		if p := probes.Load(); p > seen {
			seen = p
			m.NotePacket()
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestRepeatedTimeoutsEscalateToRefresh(t *testing.T) {
	m := NewMonitor(fastConfig(),
		func() error { return nil },                 // probes vanish into the void
		func(context.Context) error { return nil }) // server reachable over HTTP

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case e := <-m.Events():
		if e != EventRefresh {
			t.Fatalf("expected refresh event, got %v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an event after repeated probe timeouts")
	}
}

func TestProbeExhaustionReportsFailed(t *testing.T) {
	m := NewMonitor(fastConfig(),
		func() error { return nil },
		func(context.Context) error { return errors.New("unreachable") })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case e := <-m.Events():
		if e != EventFailed {
			t.Fatalf("expected failed event, got %v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a failure event after probe exhaustion")
	}
}

func TestJitteredStaysWithinBounds(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := jittered(d, 0.2)
		if j < 80*time.Millisecond || j > 120*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%% of %v", j, d)
		}
	}
}
