package wal

import (
	"errors"
	"fmt"
	"time"
)

// BextMetadata is the Broadcast-WAV `bext` chunk attached to a WAV export.
// time_reference is the sample count since local midnight on the day the
// first recorded frame was captured.
type BextMetadata struct {
	Description         string
	Originator          string
	OriginatorReference string
	OriginationDate     string // YYYY-MM-DD, local time
	OriginationTime     string // HH:MM:SS, local time
	TimeReference       uint64
	CodingHistory       string
}

// BuildBextMetadata derives a bext chunk from a manifest and the first
// recorded frame's wall-clock timestamp, mirroring bwavfile's Bext layout.
func BuildBextMetadata(m *Manifest, playerName string, sampleRate uint32, bitsPerSample uint16, firstFrameRelativeMs int64) BextMetadata {
	actualStartMs := m.StartMs + firstFrameRelativeMs
	local := time.UnixMilli(actualStartMs).Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	secondsSinceMidnight := uint64(local.Sub(midnight) / time.Second)

	return BextMetadata{
		Description:         "BVC Recording - " + playerName,
		Originator:          "Bedrock Voice Chat",
		OriginatorReference: m.SessionID,
		OriginationDate:     local.Format("2006-01-02"),
		OriginationTime:     local.Format("15:04:05"),
		TimeReference:       secondsSinceMidnight * uint64(sampleRate),
		CodingHistory:       fmt.Sprintf("A=PCM,F=%d,W=%d,M=mono,T=BVC\r\n", sampleRate, bitsPerSample),
	}
}

// TimecodeMetadata is the udta/meta/ilst user-data box an M4A export
// attaches alongside its 50fps tmcd timecode track.
type TimecodeMetadata struct {
	SessionID  string
	StartTs    int64
	PlayerName string
	DurationMs int64
}

// ErrExportNotImplemented is returned by the renderer stubs below: WAV/M4A
// container writing (bwavfile- and MP4-box-level output) requires a
// container library not present in this module's dependency set, so these
// functions define the contract (inputs, metadata shape, output naming)
// without producing bytes.
var ErrExportNotImplemented = errors.New("wal: renderer not implemented")

// Renderer renders one player's reconstructed track to a file under
// <session>/renders/<player>.<ext>.
type Renderer interface {
	Render(frames []Frame, m *Manifest, playerName, outputPath string) error
	FileExtension() string
}

// BwavRenderer renders a per-player track to a Broadcast-WAV file with bext
// metadata. Contract only: PCM/WAV container encoding is not implemented.
type BwavRenderer struct {
	BitsPerSample uint16
}

func NewBwavRenderer() *BwavRenderer {
	return &BwavRenderer{BitsPerSample: 32}
}

func (r *BwavRenderer) Render(frames []Frame, m *Manifest, playerName, outputPath string) error {
	return ErrExportNotImplemented
}

func (r *BwavRenderer) FileExtension() string { return "wav" }

// M4ARenderer muxes a per-player track losslessly into an MP4 container with
// a 50fps tmcd timecode track and a udta/meta/ilst metadata box. Contract
// only: MP4 box writing is not implemented.
type M4ARenderer struct{}

func NewM4ARenderer() *M4ARenderer {
	return &M4ARenderer{}
}

func (r *M4ARenderer) Render(frames []Frame, m *Manifest, playerName, outputPath string) error {
	return ErrExportNotImplemented
}

func (r *M4ARenderer) FileExtension() string { return "m4a" }
