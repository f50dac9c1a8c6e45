package capture

// Resampler converts fixed-size chunks from an arbitrary source rate to
// TargetRate (48kHz). No library in this module's dependency set provides
// an FFT-based polyphase resampler, so this is a straightforward
// linear-interpolation resampler instead (see DESIGN.md). It operates on
// fixed 20ms chunks so the calling convention downstream is unaffected.
type Resampler struct {
	srcRate int
	dstRate int

	// phase is the fractional read position carried across calls so chunk
	// boundaries don't introduce clicks.
	phase float64
}

// TargetRate is the pipeline's fixed output rate.
const TargetRate = 48000

// NewResampler builds a resampler from srcRate to TargetRate. If srcRate
// already equals TargetRate, Process is a no-op copy.
func NewResampler(srcRate int) *Resampler {
	return &Resampler{srcRate: srcRate, dstRate: TargetRate}
}

// Process resamples one chunk of mono float32 PCM at srcRate to TargetRate.
func (r *Resampler) Process(in []float32) []float32 {
	if r.srcRate == r.dstRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(r.srcRate) / float64(r.dstRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float32, outLen)

	pos := r.phase
	for i := 0; i < outLen; i++ {
		idx := int(pos)
		frac := pos - float64(idx)

		var s0, s1 float32
		if idx+1 < len(in) {
			s0, s1 = in[idx], in[idx+1]
		} else if idx < len(in) {
			s0, s1 = in[idx], in[idx]
		} else {
			s0, s1 = 0, 0
		}
		out[i] = s0 + float32(frac)*(s1-s0)
		pos += ratio
	}

	r.phase = pos - float64(len(in))

	return out
}
