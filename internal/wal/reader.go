package wal

import (
	"log/slog"
	"path/filepath"
	"sort"
)

// Opus frames are always 20ms; NETWORK_JITTER_TOLERANCE_MS is the slack
// below which consecutive entries are treated as back-to-back rather than
// containing a silence gap.
const (
	OpusFrameMs              = 20
	NetworkJitterToleranceMs = 39
)

// Frame is one decoded WAL entry ready for playback.
type Frame struct {
	Header  DecodedHeader
	Content []byte
}

// ReadPlayerTrack loads every frame recorded for one player key, ordered by
// relative timestamp.
func ReadPlayerTrack(dir, playerKey string) ([]Frame, error) {
	records, err := ReadSegment(filepath.Join(dir, "wal", segmentFileName(playerKey)))
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(records))
	for _, r := range records {
		h, err := decodeHeader(r.Header)
		if err != nil {
			slog.Error("wal: skipping record with unreadable header", "player", playerKey, "error", err)
			continue
		}
		frames = append(frames, Frame{Header: h, Content: r.Content})
	}
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Header.RelativeTsMs() < frames[j].Header.RelativeTsMs()
	})
	return frames, nil
}

// RenderTrackPCM decodes one player's frames in order into a single PCM
// stream, inserting inferred silence between frames whose timestamp gap
// exceeds normal jitter. This is the time-aligned sample stream a WAV/M4A
// renderer writes into its container. decode turns one Opus payload into
// PCM samples; a frame that fails to decode is replaced by one frame of
// silence so alignment is preserved.
func RenderTrackPCM(frames []Frame, decode func([]byte) ([]float32, error)) []float32 {
	var out []float32
	for i, f := range frames {
		if i > 0 {
			prev := frames[i-1].Header
			n := SilentSamplesBetween(prev.RelativeTsMs(), f.Header.RelativeTsMs(), f.Header.SampleRate(), f.Header.Channels())
			out = append(out, make([]float32, n)...)
		}
		pcm, err := decode(f.Content)
		if err != nil {
			slog.Error("wal: frame failed to decode, substituting silence", "error", err)
			n := int64(f.Header.SampleRate()) * OpusFrameMs / 1000 * int64(f.Header.Channels())
			pcm = make([]float32, n)
		}
		out = append(out, pcm...)
	}
	return out
}

// SilentSamplesBetween returns how many silent samples belong between two
// consecutive frames from the same player, inferred from the gap between
// their relative timestamps. Returns 0 when the gap is within normal
// frame-to-frame jitter.
func SilentSamplesBetween(prevTsMs, nextTsMs int64, sampleRate uint32, channels uint16) int64 {
	gap := nextTsMs - prevTsMs - OpusFrameMs
	if gap <= NetworkJitterToleranceMs {
		return 0
	}
	return gap * int64(sampleRate) / 1000 * int64(channels)
}
