// Package jitter implements the per-sender adaptive jitter buffer:
// monotonic timestamp ingestion, capacity that grows and shrinks with observed
// network quality and local congestion, and a packet loss concealment
// ladder (Opus in-band FEC first, then Opus PLC, then silence) for every
// 20ms tick the device callback asks for audio.
//
// One Buffer exists per remote sender, created lazily on the first frame
// and torn down when either side disconnects. The
// producer (an async relay task calling Enqueue) and the consumer (the
// audio device callback calling Pull) are expected to be different
// goroutines; Buffer serializes the two ends of its ring with a short-held
// mutex, trading a small, bounded critical section for substantially
// simpler capacity-resize and adaptation logic layered on top (see
// DESIGN.md).
package jitter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/codec"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/ring"
)

// State is the buffer's lifecycle stage.
type State int

const (
	StateWarmup State = iota
	StateRunning
	StateDraining
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "ended"
	}
}

// DefaultBaseCapacity is the nominal queue depth (in packets) before any
// quality/congestion multiplier is applied.
const DefaultBaseCapacity = 6

// MinAdjustmentInterval bounds how often capacity may be recomputed.
const MinAdjustmentInterval = 2 * time.Second

// ForwardJumpThresholdMs is the gap past which an increasing timestamp is
// logged as a large forward jump. Such a packet is still accepted like any
// other newer timestamp.
const ForwardJumpThresholdMs = 1000

// frameMs is the nominal spacing between consecutive frame timestamps.
const frameMs = int64(codec.FrameSamples) * 1000 / codec.SampleRate

// qualityAdjustThreshold is the quality score below which capacity is
// re-evaluated even absent a large capacity delta.
const qualityAdjustThreshold = 0.6

// capacityDeltaThreshold is the minimum relative capacity change that alone
// triggers a re-evaluation.
const capacityDeltaThreshold = 0.15

// Activity is the lossy presence indicator emitted at most every 50ms while
// a sender is actively decoding. It is not a true RMS meter —
// level is the RMS of the most recently decoded frame only.
type Activity struct {
	SenderName string
	Level      float32
}

type entry struct {
	tsMs int64
	opus []byte
}

// Buffer is the adaptive jitter buffer for one sender.
type Buffer struct {
	mu sync.Mutex

	senderName string
	queue      *ring.Ring[entry]

	state          State
	warmupNeeded   int
	lastAcceptedTs int64
	haveAccepted   bool

	baseCapacity int
	capacity     int
	lastAdjust   time.Time

	metrics Metrics

	decoder    *codec.Decoder
	pendingPCM [][]float32 // extra 20ms frames from an aggregated decode

	// lastDecodedTs tracks where playback has reached, so Pull can tell a
	// head-of-line packet that follows a lost one from a head-of-line packet
	// that is simply next.
	lastDecodedTs int64
	haveDecodedTs bool

	activityCh       chan<- Activity
	lastActivityEmit time.Time
}

// New creates a jitter buffer for senderName. activityCh, if non-nil,
// receives Activity events; sends are non-blocking and drop on a full
// channel like every other lossy signal in this system.
func New(senderName string, decoder *codec.Decoder, activityCh chan<- Activity) *Buffer {
	b := &Buffer{
		senderName:   senderName,
		queue:        ring.New[entry](DefaultBaseCapacity),
		baseCapacity: DefaultBaseCapacity,
		capacity:     DefaultBaseCapacity,
		decoder:      decoder,
		activityCh:   activityCh,
		state:        StateWarmup,
	}
	b.warmupNeeded = QualityGood.WarmupPackets()
	return b
}

// State returns the buffer's current lifecycle state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len returns the number of packets currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len()
}

// Capacity returns the current adaptive capacity.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Enqueue accepts a received packet. It may be called from any goroutine.
// Returns false if the packet was rejected (stale, duplicate, or the buffer
// was already at capacity). Accepted packets always go to the tail: any
// timestamp that passes the monotonic gate is newer than everything queued,
// so arrival order is playback order.
func (b *Buffer) Enqueue(tsMs int64, opus []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.state == StateEnded {
		return false
	}

	if b.haveAccepted {
		if tsMs <= b.lastAcceptedTs {
			b.metrics.RecordDrop()
			return false
		}
		// Any forward timestamp is accepted; gaps wider than the frame
		// spacing count toward the loss estimate inside RecordArrival. A
		// jump past ForwardJumpThresholdMs is accepted too, and logged.
		if tsMs-b.lastAcceptedTs > ForwardJumpThresholdMs {
			slog.Warn("jitter: large forward timestamp jump", "sender", b.senderName, "from_ms", b.lastAcceptedTs, "to_ms", tsMs)
		}
	}

	if b.queue.Len() >= b.capacity {
		// Overflow policy: drop the newest arrival, keep what's already
		// queued.
		b.metrics.RecordOverflow()
		return false
	}

	b.queue.Push(entry{tsMs: tsMs, opus: opus})
	b.lastAcceptedTs = tsMs
	b.haveAccepted = true
	b.metrics.RecordArrival(tsMs, now)

	if b.state == StateWarmup {
		b.warmupNeeded = b.currentQuality().WarmupPackets()
		if b.queue.Len() >= b.warmupNeeded {
			b.state = StateRunning
		}
	}

	b.maybeAdjustCapacity(now)

	return true
}

func (b *Buffer) currentQuality() Quality {
	return b.metrics.Quality()
}

// maybeAdjustCapacity recomputes capacity at most once per
// MinAdjustmentInterval, and only when quality is degraded or the computed
// target differs from the current capacity by more than 15%.
func (b *Buffer) maybeAdjustCapacity(now time.Time) {
	if !b.lastAdjust.IsZero() && now.Sub(b.lastAdjust) < MinAdjustmentInterval {
		return
	}

	quality := b.currentQuality()
	congestion := b.metrics.Congestion(float64(b.capacity))

	target := float64(b.baseCapacity) * quality.BufferMultiplier() * congestion.CapacityAdjustment()
	targetCapacity := int(target + 0.5)
	if targetCapacity < 1 {
		targetCapacity = 1
	}

	qualityScore := b.metrics.QualityScore()
	deltaRatio := 0.0
	if b.capacity > 0 {
		diff := float64(targetCapacity - b.capacity)
		if diff < 0 {
			diff = -diff
		}
		deltaRatio = diff / float64(b.capacity)
	}

	if qualityScore >= qualityAdjustThreshold && deltaRatio <= capacityDeltaThreshold {
		return
	}

	b.capacity = targetCapacity
	b.queue.SetCapacity(targetCapacity)
	b.warmupNeeded = quality.WarmupPackets()
	b.lastAdjust = now
	b.metrics.ResetDepthWindow()
}

// Stop transitions the buffer to Draining; Pull continues to return
// whatever is queued until empty, after which the buffer becomes Ended.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateEnded {
		b.state = StateDraining
	}
}

// Pull returns exactly codec.FrameSamples worth of PCM for the current 20ms
// playback tick. It never blocks and never returns an empty result:
// missing data is synthesized via FEC recovery, the Opus PLC ladder, or
// silence.
func (b *Buffer) Pull() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.RecordDepth(b.queue.Len())

	if len(b.pendingPCM) > 0 {
		frame := b.pendingPCM[0]
		b.pendingPCM = b.pendingPCM[1:]
		return frame
	}

	if b.state == StateWarmup {
		return make([]float32, codec.FrameSamples)
	}

	head, ok := b.queue.Peek()
	if !ok {
		b.metrics.RecordUnderrun()
		if b.state == StateDraining {
			b.state = StateEnded
		}
		return b.decoder.Conceal(nil)
	}

	// A head-of-line packet ahead of where playback has reached means the
	// intervening frames were lost: conceal them one tick at a time instead
	// of playing the head early and collapsing the gap. When exactly one
	// frame is missing, the head packet's in-band FEC payload recovers it;
	// wider gaps get the PLC ladder. Past ForwardJumpThresholdMs the stream
	// resynchronizes to the head instead (a pause, not loss).
	if b.haveDecodedTs {
		gapMs := head.tsMs - b.lastDecodedTs - frameMs
		if gapMs > ForwardJumpThresholdMs {
			b.haveDecodedTs = false
		} else if gapMs >= frameMs {
			var fec []byte
			if gapMs < 2*frameMs {
				fec = head.opus
			}
			b.lastDecodedTs += frameMs
			return b.decoder.Conceal(fec)
		}
	}

	b.queue.Pop()

	pcm, err := b.decoder.Decode(head.opus)
	if err != nil {
		var nextFEC []byte
		if next, ok := b.queue.Peek(); ok {
			nextFEC = next.opus
		}
		frame := b.decoder.Conceal(nextFEC)
		b.emitActivity(frame)
		return frame
	}

	b.lastDecodedTs = head.tsMs
	b.haveDecodedTs = true

	frames := codec.SplitAggregated(pcm)
	if len(frames) > 1 {
		b.pendingPCM = frames[1:]
		slog.Debug("aggregated opus packet split into frames", "sender", b.senderName, "frames", len(frames))
	}
	b.emitActivity(frames[0])
	return frames[0]
}

func (b *Buffer) emitActivity(frame []float32) {
	if b.activityCh == nil {
		return
	}
	now := time.Now()
	if !b.lastActivityEmit.IsZero() && now.Sub(b.lastActivityEmit) < 50*time.Millisecond {
		return
	}
	b.lastActivityEmit = now
	select {
	case b.activityCh <- Activity{SenderName: b.senderName, Level: codec.RMS(frame)}:
	default:
	}
}

// Ended reports whether the buffer has fully drained after Stop.
func (b *Buffer) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateEnded
}
