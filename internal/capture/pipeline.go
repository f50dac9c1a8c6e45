package capture

import (
	"sync"
	"sync/atomic"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/codec"
)

// PTTTailMs is how long after a push-to-talk key release the pipeline keeps
// transmitting, so the tail end of a word isn't clipped.
const PTTTailMs = 300

// Packet is one Opus-encoded 20ms frame ready to hand to transport and,
// if recording is active, to the recording producer.
type Packet struct {
	TimestampMs int64
	Data        []byte
}

// Pipeline runs the capture-side processing chain: noise gate, resample to
// 48kHz, mute/VAD predicate, 20ms accumulation, Opus encode with the
// adaptive bitrate ladder, and packetizing with the capture timestamp of
// the accumulated chunk's first sample.
type Pipeline struct {
	gate       *Gate
	resampler  *Resampler
	encoder    *codec.Encoder
	channels   int
	bitrateBps int

	mu           sync.Mutex
	accum        []float32
	accumStartMs int64

	muted     atomic.Bool
	pttMode   atomic.Bool
	pttActive atomic.Bool
	pttReleasedAtMs atomic.Int64
}

// NewPipeline builds a capture pipeline for a device running at srcRate
// with the given channel count (1 or 2), encoding at complexity (7 mobile,
// 10 desktop).
func NewPipeline(srcRate, channels, complexity int) (*Pipeline, error) {
	enc, err := codec.NewEncoder(DefaultBitrateBps, complexity)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		gate:       NewGate(DefaultGateSettings),
		resampler:  NewResampler(srcRate),
		encoder:    enc,
		channels:   channels,
		bitrateBps: DefaultBitrateBps,
	}, nil
}

// SetMuted sets the global mute flag.
func (p *Pipeline) SetMuted(muted bool) { p.muted.Store(muted) }

// SetPTTMode enables or disables push-to-talk gating.
func (p *Pipeline) SetPTTMode(enabled bool) { p.pttMode.Store(enabled) }

// SetPTTActive reflects the PTT key's held state. nowMs is the capture
// timestamp of the event, used to start the release tail.
func (p *Pipeline) SetPTTActive(active bool, nowMs int64) {
	p.pttActive.Store(active)
	if active {
		p.pttReleasedAtMs.Store(0)
	} else {
		p.pttReleasedAtMs.Store(nowMs)
	}
}

// AdaptBitrate steps the encoder's bitrate per NextBitrateBps and applies it.
func (p *Pipeline) AdaptBitrate(lossRate, rttMs float64) error {
	next := NextBitrateBps(p.bitrateBps, lossRate, rttMs)
	if next == p.bitrateBps {
		return nil
	}
	if err := p.encoder.SetBitrate(next); err != nil {
		return err
	}
	p.bitrateBps = next
	return nil
}

// transmitGated reports whether the pipeline should currently be
// transmitting at all, independent of any single frame's content.
func (p *Pipeline) transmitGated(nowMs int64) bool {
	if p.muted.Load() {
		return false
	}
	if !p.pttMode.Load() {
		return true
	}
	if p.pttActive.Load() {
		return true
	}
	releasedAt := p.pttReleasedAtMs.Load()
	return releasedAt != 0 && nowMs-releasedAt < PTTTailMs
}

// Ingest runs one capture callback's worth of audio through the pipeline.
// frame is already float32 (use I16ToFloat32/I32ToFloat32 first) at the
// device's native rate and channel count. nowMs is the capture timestamp of
// frame's first sample. Returns zero or more ready-to-send packets — zero
// when muted, when the gate found only silence, or when fewer than 960
// resampled samples have accumulated so far.
func (p *Pipeline) Ingest(frame []float32, nowMs int64) ([]Packet, error) {
	// Gate runs on the signal as captured, before downmixing: averaging
	// channels first would let an RMS spike on one channel get diluted by
	// silence on the other, changing open/close timing versus gating each
	// channel's actual energy.
	p.gate.Process(frame)

	if p.channels == 2 {
		frame = DownmixStereo(frame)
	}

	resampled := p.resampler.Process(frame)

	if !p.transmitGated(nowMs) {
		return nil, nil
	}

	// Gate produced an all-zero frame: dropped outright rather than
	// encoding silence.
	allZero := true
	for _, s := range resampled {
		if s != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.accum) == 0 {
		p.accumStartMs = nowMs
	}
	p.accum = append(p.accum, resampled...)

	var packets []Packet
	const msPerFrame = int64(codec.FrameSamples) * 1000 / codec.SampleRate
	for len(p.accum) >= codec.FrameSamples {
		chunk := p.accum[:codec.FrameSamples]
		opus, err := p.encoder.Encode(chunk)
		if err != nil {
			return packets, err
		}
		packets = append(packets, Packet{TimestampMs: p.accumStartMs, Data: opus})

		p.accum = p.accum[codec.FrameSamples:]
		p.accumStartMs += msPerFrame
	}

	return packets, nil
}
