// Package codec wraps Opus encode/decode for the voice pipeline: 20ms mono
// frames at 48kHz, packet loss concealment and in-band FEC recovery, and the
// decode-error-count based decoder-reinstantiation policy.
package codec

import (
	"fmt"
	"math"

	"gopkg.in/hraban/opus.v2"
)

const (
	SampleRate     = 48000
	Channels       = 1
	FrameSamples   = 960 // 20ms @ 48kHz mono
	MaxPacketBytes = 1275
	BitrateBps     = 32000

	// maxConsecutiveDecodeErrors is the threshold at which the decoder is
	// re-instantiated rather than kept alive with accumulating state.
	maxConsecutiveDecodeErrors = 10

	// plcOpusAttempts is how many consecutive concealment calls use Opus's
	// own PLC before the ladder falls back to emitting silence.
	plcOpusAttempts = 5
)

// opusEncoder/opusDecoder are narrow interfaces over *opus.Encoder/*opus.Decoder
// so tests can substitute fakes.
type opusEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
	SetBitrate(bitrate int) error
	SetDTX(dtx bool) error
	SetInBandFEC(fec bool) error
	SetPacketLossPerc(perc int) error
	SetComplexity(c int) error
}

type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
	DecodeFEC(data []byte, pcm []int16) error
}

// Encoder turns 20ms float32 PCM frames into Opus packets.
type Encoder struct {
	enc opusEncoder
	pcm []int16
}

// NewEncoder builds an Opus VoIP-application encoder at bitrateBps with the
// given encoder complexity (7 for mobile, 10 for desktop), in-band FEC
// and DTX enabled.
func NewEncoder(bitrateBps, complexity int) (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("codec: new encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrateBps); err != nil {
		return nil, fmt.Errorf("codec: set bitrate: %w", err)
	}
	if err := enc.SetDTX(true); err != nil {
		return nil, fmt.Errorf("codec: set dtx: %w", err)
	}
	if err := enc.SetInBandFEC(true); err != nil {
		return nil, fmt.Errorf("codec: set fec: %w", err)
	}
	if err := enc.SetPacketLossPerc(5); err != nil {
		return nil, fmt.Errorf("codec: set packet loss: %w", err)
	}
	if err := enc.SetComplexity(complexity); err != nil {
		return nil, fmt.Errorf("codec: set complexity: %w", err)
	}
	return &Encoder{enc: enc, pcm: make([]int16, FrameSamples)}, nil
}

// SetBitrate adjusts the target bitrate mid-stream (used by the adaptive
// bitrate ladder, see internal/capture).
func (e *Encoder) SetBitrate(bps int) error { return e.enc.SetBitrate(bps) }

// Encode converts exactly FrameSamples float32 PCM samples to an Opus packet.
func (e *Encoder) Encode(frame []float32) ([]byte, error) {
	if len(frame) != FrameSamples {
		return nil, fmt.Errorf("codec: encode expects %d samples, got %d", FrameSamples, len(frame))
	}
	for i, s := range frame {
		e.pcm[i] = floatToInt16(s)
	}
	out := make([]byte, MaxPacketBytes)
	n, err := e.enc.Encode(e.pcm, out)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return out[:n], nil
}

// Decoder turns Opus packets back into 20ms float32 PCM frames, applying
// packet loss concealment and in-band FEC recovery.
type Decoder struct {
	dec          opusDecoder
	pcm          []int16
	plc          PLCLadder
	decodeErrors int
}

// NewDecoder builds an Opus decoder for 48kHz mono.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("codec: new decoder: %w", err)
	}
	return &Decoder{dec: dec, pcm: make([]int16, FrameSamples*4)}, nil
}

// reinstantiate replaces the underlying Opus decoder after too many
// consecutive decode errors, resetting the error counter.
func (d *Decoder) reinstantiate() error {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return fmt.Errorf("codec: reinstantiate decoder: %w", err)
	}
	d.dec = dec
	d.decodeErrors = 0
	return nil
}

// Decode decodes one Opus packet. On success it resets the PLC ladder.
// data may be split into multiple FrameSamples-sized chunks by the caller if
// the packet decodes to more than one 20ms worth of samples; Decode itself
// always returns as many samples
// as the decoder produces.
func (d *Decoder) Decode(data []byte) ([]float32, error) {
	n, err := d.dec.Decode(data, d.pcm)
	if err != nil {
		d.decodeErrors++
		if d.decodeErrors >= maxConsecutiveDecodeErrors {
			if rerr := d.reinstantiate(); rerr != nil {
				return nil, rerr
			}
		}
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	d.decodeErrors = 0
	d.plc.OnDecodeSuccess()
	return int16ToFloat(d.pcm[:n*Channels]), nil
}

// Conceal produces one 20ms frame to cover a missing packet, following a
// ladder: attempts 1-5 invoke Opus's own PLC, attempt 6+ emits silence. If nextPacket is non-nil (the following slot in the jitter buffer
// ring is already populated), in-band FEC recovery is tried first — this is
// the single-gap in-band FEC recovery path; it never advances the ladder's
// attempt counter on success.
func (d *Decoder) Conceal(nextPacket []byte) []float32 {
	if nextPacket != nil {
		if err := d.dec.DecodeFEC(nextPacket, d.pcm); err == nil {
			return int16ToFloat(d.pcm[:FrameSamples])
		}
	}
	return d.plc.Next(d.dec, d.pcm)
}

// PLCLadder tracks how many consecutive concealment frames have been
// synthesized for one stream and decides whether to ask Opus for PLC or to
// emit silence.
type PLCLadder struct {
	attempt int
}

// Next advances the ladder by one concealment frame.
func (l *PLCLadder) Next(dec opusDecoder, pcm []int16) []float32 {
	l.attempt++
	if l.attempt <= plcOpusAttempts {
		if err := dec.Decode(nil, pcm); err == nil {
			return int16ToFloat(pcm[:FrameSamples])
		}
	}
	return make([]float32, FrameSamples)
}

// OnDecodeSuccess resets the ladder's attempt counter after a real packet
// decodes successfully.
func (l *PLCLadder) OnDecodeSuccess() { l.attempt = 0 }

// Attempt returns the current concealment attempt count (0 = last decode was
// a real packet).
func (l *PLCLadder) Attempt() int { return l.attempt }

func floatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

func int16ToFloat(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// SplitAggregated splits a decoded buffer that represents more than one 20ms
// frame (Opus may decode to 120/240/480/960-sample multiples of the nominal
// frame) into individual FrameSamples-sized frames, in order.
func SplitAggregated(samples []float32) [][]float32 {
	if len(samples) <= FrameSamples {
		return [][]float32{samples}
	}
	var frames [][]float32
	for off := 0; off < len(samples); off += FrameSamples {
		end := off + FrameSamples
		if end > len(samples) {
			end = len(samples)
		}
		frames = append(frames, samples[off:end])
	}
	return frames
}

// RMS returns the root-mean-square level of a float32 PCM frame, used by the
// activity signal and the input pipeline's gate/VAD stages.
func RMS(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}
