// Package capture implements the client-side input pipeline: format
// conversion, noise gating, downmixing, resampling to 48kHz, the
// mute/VAD predicate, 20ms accumulation, Opus encoding with an adaptive
// bitrate ladder, and packetizing with the capture timestamp.
package capture

// I16ToFloat32 converts signed 16-bit PCM to normalized float32 in [-1, 1].
func I16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// I32ToFloat32 converts signed 32-bit PCM to normalized float32 in [-1, 1].
func I32ToFloat32(pcm []int32) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 2147483648.0
	}
	return out
}

// DownmixStereo averages interleaved stereo samples to mono. len(interleaved)
// must be even; a trailing odd sample is dropped.
func DownmixStereo(interleaved []float32) []float32 {
	n := len(interleaved) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = (interleaved[2*i] + interleaved[2*i+1]) / 2
	}
	return out
}
