package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// fakeSession is an in-memory Session for tests: ReceiveDatagram replays a
// preloaded queue, SendDatagram records what was sent.
type fakeSession struct {
	mu     sync.Mutex
	in     chan []byte
	sent   [][]byte
	closed bool
	closeCode uint64
}

func newFakeSession() *fakeSession {
	return &fakeSession{in: make(chan []byte, 32)}
}

func (f *fakeSession) push(data []byte) { f.in <- data }

func (f *fakeSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case d, ok := <-f.in:
		if !ok {
			return nil, context.Canceled
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSession) SendDatagram(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSession) CloseWithError(code uint64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	close(f.in)
	return nil
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func audioPacket(owner string, ts int64) *wire.Packet {
	return &wire.Packet{
		Type:  wire.TypeAudioFrame,
		Owner: &wire.Owner{Name: owner, ClientID: []byte{1, 2, 3}},
		Audio: &wire.AudioFrame{Data: []byte{0xAA}, SampleRate: 48000, TimestampMs: ts},
	}
}

func debugPacket(owner, version string) *wire.Packet {
	return &wire.Packet{
		Type:      wire.TypeDebug,
		Owner:     &wire.Owner{Name: owner, ClientID: []byte{1}},
		DebugInfo: &wire.Debug{Version: version},
	}
}

func marshalT(t *testing.T, p *wire.Packet) []byte {
	t.Helper()
	data, err := wire.Marshal(nil, p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestServeBindsIdentityFromFirstOwnerPacket(t *testing.T) {
	hub := NewHub(DefaultBroadcastRange, Version{1, 0})
	sess := newFakeSession()
	sess.push(marshalT(t, audioPacket("steve", 100)))

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		Serve(ctx, hub, sess)
		close(done)
	}()

	waitUntil(t, func() bool { return hub.Connections() == 1 })
	cancel()
	<-done
}

func TestAcceptTimestampRejectsNonIncreasing(t *testing.T) {
	c := &Conn{id: "conn-test"}
	if !c.acceptTimestamp(100) {
		t.Fatal("expected first timestamp accepted")
	}
	if c.acceptTimestamp(100) {
		t.Fatal("expected duplicate timestamp rejected")
	}
	if c.acceptTimestamp(50) {
		t.Fatal("expected earlier timestamp rejected")
	}
	if !c.acceptTimestamp(101) {
		t.Fatal("expected strictly greater timestamp accepted")
	}
}

func TestCheckVersionRejectsOlderMajorMinor(t *testing.T) {
	hub := NewHub(DefaultBroadcastRange, Version{2, 3})
	c := &Conn{id: "conn-test", hub: hub}

	if err := c.checkVersion(&wire.Debug{Version: "2.3.1"}); err != nil {
		t.Fatalf("expected matching version accepted: %v", err)
	}
	if err := c.checkVersion(&wire.Debug{Version: "2.2.9"}); err == nil {
		t.Fatal("expected older minor rejected")
	}
	if err := c.checkVersion(&wire.Debug{Version: "1.9.0"}); err == nil {
		t.Fatal("expected older major rejected")
	}
	if err := c.checkVersion(&wire.Debug{Version: "3.0.0"}); err != nil {
		t.Fatalf("expected newer major accepted: %v", err)
	}
}

func TestHandleInboundVersionIncompatibleClosesSession(t *testing.T) {
	hub := NewHub(DefaultBroadcastRange, Version{5, 0})
	sess := newFakeSession()
	sess.push(marshalT(t, debugPacket("steve", "1.0.0")))

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		Serve(ctx, hub, sess)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Serve to return after version rejection")
	}
	if sess.sentCount() == 0 {
		t.Fatal("expected a ServerError datagram sent before close")
	}
	if !sess.closed {
		t.Fatal("expected session closed on version mismatch")
	}
}

func TestHandleInboundFiresOnInputAudioForAcceptedFrames(t *testing.T) {
	hub := NewHub(DefaultBroadcastRange, Version{1, 0})
	var mu sync.Mutex
	var gotPlayer string
	var gotFrames int
	hub.OnInputAudio = func(playerName string, frame *wire.AudioFrame) {
		mu.Lock()
		defer mu.Unlock()
		gotPlayer = playerName
		gotFrames++
	}
	sess := newFakeSession()
	sess.push(marshalT(t, audioPacket("steve", 100)))
	sess.push(marshalT(t, audioPacket("steve", 50))) // non-increasing, rejected

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		Serve(ctx, hub, sess)
		close(done)
	}()

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotFrames == 1
	})
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if gotPlayer != "steve" {
		t.Fatalf("expected OnInputAudio called with steve, got %q", gotPlayer)
	}
	if gotFrames != 1 {
		t.Fatalf("expected exactly 1 call (rejected timestamp must not fire it), got %d", gotFrames)
	}
}

func TestHandleInboundEchoesHealthCheckDirectly(t *testing.T) {
	hub := NewHub(DefaultBroadcastRange, Version{1, 0})
	sess := newFakeSession()
	sess.push(marshalT(t, &wire.Packet{
		Type:   wire.TypeHealthCheck,
		Owner:  &wire.Owner{Name: "steve", ClientID: []byte{1}},
		Health: &wire.HealthCheck{Nonce: 42},
	}))

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		Serve(ctx, hub, sess)
		close(done)
	}()

	waitUntil(t, func() bool { return sess.sentCount() >= 1 })
	cancel()
	<-done

	sess.mu.Lock()
	defer sess.mu.Unlock()
	reply, err := wire.Unmarshal(sess.sent[0])
	if err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.Type != wire.TypeHealthCheck || reply.Health == nil || reply.Health.Nonce != 42 {
		t.Fatalf("expected HealthCheck echo with nonce 42, got %+v", reply)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
