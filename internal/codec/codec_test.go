package codec

import (
	"errors"
	"testing"
)

type fakeEncoder struct {
	bitrate int
}

func (f *fakeEncoder) Encode(pcm []int16, data []byte) (int, error) {
	n := copy(data, []byte{byte(len(pcm))})
	return n, nil
}
func (f *fakeEncoder) SetBitrate(b int) error         { f.bitrate = b; return nil }
func (f *fakeEncoder) SetDTX(bool) error              { return nil }
func (f *fakeEncoder) SetInBandFEC(bool) error        { return nil }
func (f *fakeEncoder) SetPacketLossPerc(int) error    { return nil }
func (f *fakeEncoder) SetComplexity(int) error        { return nil }

type fakeDecoder struct {
	decodeErr   error
	fecErr      error
	decodeCalls int
}

func (f *fakeDecoder) Decode(data []byte, pcm []int16) (int, error) {
	f.decodeCalls++
	if data == nil {
		// PLC call.
		if f.decodeErr != nil {
			return 0, f.decodeErr
		}
		return FrameSamples, nil
	}
	if f.decodeErr != nil {
		return 0, f.decodeErr
	}
	return FrameSamples, nil
}

func (f *fakeDecoder) DecodeFEC(data []byte, pcm []int16) error {
	return f.fecErr
}

func TestEncoderProducesNonEmptyPacket(t *testing.T) {
	e := &Encoder{enc: &fakeEncoder{}, pcm: make([]int16, FrameSamples)}
	out, err := e.Encode(make([]float32, FrameSamples))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty packet")
	}
}

func TestEncoderRejectsWrongFrameSize(t *testing.T) {
	e := &Encoder{enc: &fakeEncoder{}, pcm: make([]int16, FrameSamples)}
	if _, err := e.Encode(make([]float32, 100)); err == nil {
		t.Fatal("expected error for wrong frame size")
	}
}

func TestDecodeSuccessResetsLadder(t *testing.T) {
	fd := &fakeDecoder{}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}
	d.plc.attempt = 3

	if _, err := d.Decode([]byte{1, 2, 3}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.plc.Attempt() != 0 {
		t.Errorf("expected ladder reset to 0, got %d", d.plc.Attempt())
	}
}

func TestConcealLadderOpusPLCThenSilence(t *testing.T) {
	fd := &fakeDecoder{}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}

	for i := 1; i <= plcOpusAttempts; i++ {
		frame := d.Conceal(nil)
		if len(frame) != FrameSamples {
			t.Fatalf("attempt %d: expected %d samples, got %d", i, FrameSamples, len(frame))
		}
	}

	// fakeDecoder never errors, so attempts 1-5 should all have called
	// Decode(nil, ...) (Opus PLC) rather than returning silence directly.
	if fd.decodeCalls != plcOpusAttempts {
		t.Errorf("expected %d PLC decode calls, got %d", plcOpusAttempts, fd.decodeCalls)
	}

	// Attempt 6 falls back to emitting zeros even though the fake decoder
	// would still succeed, per the ladder's own threshold.
	frame := d.Conceal(nil)
	if len(frame) != FrameSamples {
		t.Fatalf("expected %d samples, got %d", FrameSamples, len(frame))
	}
	for _, s := range frame {
		if s != 0 {
			t.Fatal("attempt 6 should emit silence")
		}
	}
}

func TestConcealFallsBackToSilenceOnPLCFailure(t *testing.T) {
	fd := &fakeDecoder{decodeErr: errors.New("boom")}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}

	frame := d.Conceal(nil)
	for _, s := range frame {
		if s != 0 {
			t.Fatal("expected silence when Opus PLC itself errors")
		}
	}
}

func TestConcealUsesFECWhenNextPacketAvailable(t *testing.T) {
	fd := &fakeDecoder{}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}

	frame := d.Conceal([]byte{9, 9, 9})
	if len(frame) != FrameSamples {
		t.Fatalf("expected %d samples, got %d", FrameSamples, len(frame))
	}
	// FEC succeeded so the ladder must not have advanced.
	if d.plc.Attempt() != 0 {
		t.Errorf("FEC recovery should not advance the PLC ladder, got attempt=%d", d.plc.Attempt())
	}
}

func TestConcealFallsBackToLadderWhenFECFails(t *testing.T) {
	fd := &fakeDecoder{fecErr: errors.New("no fec data")}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}

	d.Conceal([]byte{9, 9, 9})
	if d.plc.Attempt() != 1 {
		t.Errorf("expected ladder to advance to 1 after failed FEC, got %d", d.plc.Attempt())
	}
}

func TestDecodeErrorThresholdReinstantiatesDecoder(t *testing.T) {
	fd := &fakeDecoder{decodeErr: errors.New("corrupt")}
	d := &Decoder{dec: fd, pcm: make([]int16, FrameSamples*4)}

	for i := 0; i < maxConsecutiveDecodeErrors; i++ {
		if _, err := d.Decode([]byte{1}); err == nil {
			t.Fatalf("iteration %d: expected decode error", i)
		}
	}
	if d.decodeErrors != 0 {
		t.Errorf("expected decoder reinstantiation to reset error count, got %d", d.decodeErrors)
	}
}

func TestSplitAggregatedSingleFrame(t *testing.T) {
	in := make([]float32, FrameSamples)
	out := SplitAggregated(in)
	if len(out) != 1 || len(out[0]) != FrameSamples {
		t.Fatalf("expected single frame passthrough, got %d frames", len(out))
	}
}

func TestSplitAggregatedMultipleFrames(t *testing.T) {
	in := make([]float32, FrameSamples*3)
	out := SplitAggregated(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(out))
	}
	for i, f := range out {
		if len(f) != FrameSamples {
			t.Errorf("frame %d: len %d want %d", i, len(f), FrameSamples)
		}
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	if r := RMS(make([]float32, FrameSamples)); r != 0 {
		t.Errorf("expected 0 RMS for silence, got %v", r)
	}
}
