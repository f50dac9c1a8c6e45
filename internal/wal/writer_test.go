package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterFlushesOnBatchSizeAndStopWritesFinalManifest(t *testing.T) {
	dir := t.TempDir()
	start := int64(1_000_000)
	w, err := NewWriter(dir, "session-1", "steve", start)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < BatchSize; i++ {
		w.AppendOutput("steve", OutputHeader{
			SampleRate:   48000,
			Channels:     1,
			RelativeTsMs: int64(i * 20),
			Emitter:      PlayerMetadata{Name: "alex"},
			Listener:     PlayerMetadata{Name: "steve"},
		}, []byte{0x01})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, "wal", "steve.log")); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := w.Stop(start + 60_000); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.EndMs == nil || *m.EndMs != start+60_000 {
		t.Fatalf("expected end_ms set, got %+v", m.EndMs)
	}
	if m.DurationMs == nil || *m.DurationMs != 60_000 {
		t.Fatalf("expected duration_ms 60000, got %+v", m.DurationMs)
	}
	found := false
	for _, p := range m.Participants {
		if p == "alex" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alex tracked as a participant, got %v", m.Participants)
	}

	records, err := ReadSegment(filepath.Join(dir, "wal", "steve.log"))
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if len(records) != BatchSize {
		t.Fatalf("expected %d records flushed, got %d", BatchSize, len(records))
	}
}

func TestWriterRelativeMsClampsPreSessionFrames(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "session-2", "steve", 1_000_000)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Stop(1_000_000)

	if got := w.RelativeMs(999_000); got != 0 {
		t.Fatalf("expected pre-session timestamp clamped to 0, got %d", got)
	}
	if got := w.RelativeMs(1_001_500); got != 1500 {
		t.Fatalf("expected relative 1500, got %d", got)
	}
}

func TestSegmentFileNameSanitizesPlayerKey(t *testing.T) {
	got := segmentFileName("Steve O'Brien/../etc")
	if got != "Steve_O_Brien____etc.log" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
}
