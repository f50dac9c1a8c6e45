package capture

import "testing"

func TestResamplerNoOpAtMatchingRate(t *testing.T) {
	r := NewResampler(TargetRate)
	in := []float32{0.1, 0.2, 0.3}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("expected passthrough length %d, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected passthrough value at %d, got %v want %v", i, out[i], in[i])
		}
	}
}

func TestResamplerUpsamplesToMoreSamples(t *testing.T) {
	r := NewResampler(24000) // half of 48kHz
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(i) / 480
	}
	out := r.Process(in)
	if len(out) <= len(in) {
		t.Fatalf("expected upsampling to produce more samples, got %d from %d", len(out), len(in))
	}
}

func TestResamplerDownsamplesToFewerSamples(t *testing.T) {
	r := NewResampler(96000) // double 48kHz
	in := make([]float32, 1920)
	out := r.Process(in)
	if len(out) >= len(in) {
		t.Fatalf("expected downsampling to produce fewer samples, got %d from %d", len(out), len(in))
	}
}
