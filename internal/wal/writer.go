package wal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// BatchSize is the in-memory entry count that forces an early flush.
	BatchSize = 50
	// FlushInterval is the fallback flush period when traffic is too sparse
	// to fill a batch.
	FlushInterval = 500 * time.Millisecond
)

type entry struct {
	playerKey   string
	header      []byte
	participant string // non-empty for Output entries, names who is speaking
}

// Writer owns one recording session: a manifest on disk plus one NANORC
// segment per player key under <dir>/wal/. All segment and manifest state is
// owned exclusively by the writer's background goroutine; Stop blocks until
// that goroutine has exited before touching it again.
type Writer struct {
	dir            string
	sessionStartMs int64

	incoming chan queuedEntry
	stopCh   chan struct{}
	doneCh   chan struct{}

	// owned only by run()
	segments     map[string]*segmentWriter
	participants map[string]struct{}
	manifest     Manifest
}

type queuedEntry struct {
	entry
	content []byte
}

// NewWriter creates the recording directory, writes the initial manifest and
// starts the batching writer goroutine. nowMs is the session's start time.
func NewWriter(dir, sessionID, emitterPlayer string, nowMs int64) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, "wal"), 0o755); err != nil {
		return nil, err
	}
	w := &Writer{
		dir:            dir,
		sessionStartMs: nowMs,
		incoming:       make(chan queuedEntry, 256),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		segments:       make(map[string]*segmentWriter),
		participants:   make(map[string]struct{}),
		manifest: Manifest{
			SessionID:     sessionID,
			StartMs:       nowMs,
			EmitterPlayer: emitterPlayer,
			Participants:  []string{},
			CreatedAt:     time.UnixMilli(nowMs).UTC().Format(time.RFC3339),
		},
	}
	if err := writeManifest(dir, &w.manifest); err != nil {
		return nil, err
	}
	go w.run()
	return w, nil
}

// RelativeMs saturates a capture timestamp to the session start; frames
// captured before the session began clamp to 0.
func (w *Writer) RelativeMs(absoluteMs int64) int64 {
	rel := absoluteMs - w.sessionStartMs
	if rel < 0 {
		return 0
	}
	return rel
}

// AppendInput records a frame captured locally by the recording player.
func (w *Writer) AppendInput(playerKey string, h InputHeader, content []byte) {
	w.enqueue(queuedEntry{
		entry:   entry{playerKey: playerKey, header: encodeInputHeader(h)},
		content: content,
	})
}

// AppendOutput records a frame received from a remote emitter.
func (w *Writer) AppendOutput(playerKey string, h OutputHeader, content []byte) {
	w.enqueue(queuedEntry{
		entry:   entry{playerKey: playerKey, header: encodeOutputHeader(h), participant: h.Emitter.Name},
		content: content,
	})
}

func (w *Writer) enqueue(e queuedEntry) {
	select {
	case w.incoming <- e:
	default:
		slog.Warn("wal: dropping recording frame, writer backlogged", "player", e.playerKey)
	}
}

func (w *Writer) run() {
	defer close(w.doneCh)
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	var batch []queuedEntry
	manifestDirty := false

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch, &manifestDirty)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.incoming:
			batch = append(batch, e)
			if len(batch) >= BatchSize {
				flushBatch()
			}
		case <-ticker.C:
			flushBatch()
			if manifestDirty {
				w.manifest.Participants = w.participantNames()
				if err := writeManifest(w.dir, &w.manifest); err != nil {
					slog.Error("wal: failed to update manifest", "error", err)
				} else {
					manifestDirty = false
				}
			}
		case <-w.stopCh:
			// drain whatever is already queued before the final flush: Stop
			// closes stopCh without waiting for in-flight sends to incoming,
			// so anything the caller enqueued just before stopping must still
			// be picked up here.
			for drained := false; !drained; {
				select {
				case e := <-w.incoming:
					batch = append(batch, e)
				default:
					drained = true
				}
			}
			flushBatch()
			return
		}
	}
}

func (w *Writer) flush(batch []queuedEntry, manifestDirty *bool) {
	touched := make(map[string]struct{}, len(batch))
	for _, e := range batch {
		seg, err := w.segmentFor(e.playerKey)
		if err != nil {
			slog.Error("wal: failed to open segment", "player", e.playerKey, "error", err)
			continue
		}
		if err := seg.append(e.header, e.content); err != nil {
			slog.Error("wal: failed to append record", "player", e.playerKey, "error", err)
			continue
		}
		touched[e.playerKey] = struct{}{}
		if e.participant != "" {
			if _, exists := w.participants[e.participant]; !exists {
				w.participants[e.participant] = struct{}{}
				*manifestDirty = true
			}
		}
	}
	for key := range touched {
		if err := w.segments[key].sync(); err != nil {
			slog.Error("wal: failed to sync segment", "player", key, "error", err)
		}
	}
}

func (w *Writer) segmentFor(playerKey string) (*segmentWriter, error) {
	if seg, ok := w.segments[playerKey]; ok {
		return seg, nil
	}
	seg, err := createSegment(filepath.Join(w.dir, "wal", segmentFileName(playerKey)))
	if err != nil {
		return nil, err
	}
	w.segments[playerKey] = seg
	return seg, nil
}

func (w *Writer) participantNames() []string {
	names := make([]string, 0, len(w.participants))
	for name := range w.participants {
		names = append(names, name)
	}
	return names
}

// segmentFileName sanitizes a player key into a filesystem-safe segment
// name. Rotation (the "-<hash>-<seq>" suffix a production deployment would
// use to bound segment size) is not implemented: a session's record count is
// already capped by MaxRecordsPerFile, which comfortably covers a full
// recording session at 50 packets/sec.
func segmentFileName(playerKey string) string {
	var b strings.Builder
	for _, r := range playerKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString(".log")
	return b.String()
}

// Stop forces a final flush and fsync, rewrites the manifest with end_ms and
// duration_ms, and closes every open segment. nowMs becomes end_ms.
func (w *Writer) Stop(nowMs int64) error {
	close(w.stopCh)
	<-w.doneCh

	end := nowMs
	duration := end - w.sessionStartMs
	w.manifest.EndMs = &end
	w.manifest.DurationMs = &duration
	w.manifest.Participants = w.participantNames()

	var firstErr error
	for _, seg := range w.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := writeManifest(w.dir, &w.manifest); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SessionID returns the session identifier this writer was created with.
func (w *Writer) SessionID() string { return w.manifest.SessionID }
