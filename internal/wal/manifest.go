package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const manifestFileName = "session.json"

// Manifest is the session-level JSON record written at start, whenever the
// participant set changes, and at stop.
type Manifest struct {
	SessionID     string   `json:"session_id"`
	StartMs       int64    `json:"start_ms"`
	EndMs         *int64   `json:"end_ms,omitempty"`
	DurationMs    *int64   `json:"duration_ms,omitempty"`
	EmitterPlayer string   `json:"emitter_player"`
	Participants  []string `json:"participants"`
	CreatedAt     string   `json:"created_at"`
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFileName), data, 0o644)
}

// ReadManifest loads a session manifest from its recording directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
