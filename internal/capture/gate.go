package capture

import (
	"math"
	"sync/atomic"
)

// Gate is a hard noise gate: frames whose RMS falls below the threshold are
// zeroed after a short hold period, so brief pauses in speech don't get
// chopped. One addition over a plain gate: setting changes are latched
// through an atomic "dirty" flag and only applied at
// the start of the next Process call, so a callback already in flight
// never observes a setting change mid-frame.
type Gate struct {
	openDB, closeDB                         float64
	attackFrames, holdFrames, releaseFrames int

	openStreak int // consecutive above-openDB frames while closed, for attack
	remaining  int // frames left before closing once triggered
	open       bool

	dirty   atomic.Bool
	pending GateSettings
}

const framesPerMs = 1.0 / 20.0 // one Process call == one 20ms frame

// GateSettings mirrors a {open_db, close_db, attack_ms, hold_ms,
// release_ms} tuple. attack_ms and release_ms are accepted for API parity
// with that shape; this gate applies them as whole-frame hold counts
// rather than a sample-accurate envelope.
type GateSettings struct {
	OpenDB    float64
	CloseDB   float64
	AttackMs  float64
	HoldMs    float64
	ReleaseMs float64
}

// DefaultGateSettings are sensible defaults translated to dB (threshold RMS
// 0.01 ~= -40dBFS) with a 200ms hold.
var DefaultGateSettings = GateSettings{
	OpenDB:    -40,
	CloseDB:   -40,
	AttackMs:  0,
	HoldMs:    200,
	ReleaseMs: 0,
}

// NewGate builds a Gate with the given settings.
func NewGate(s GateSettings) *Gate {
	g := &Gate{}
	g.applySettings(s)
	return g
}

func (g *Gate) applySettings(s GateSettings) {
	g.openDB = s.OpenDB
	g.closeDB = s.CloseDB
	g.attackFrames = msToFrames(s.AttackMs)
	g.holdFrames = msToFrames(s.HoldMs)
	g.releaseFrames = msToFrames(s.ReleaseMs)
}

func msToFrames(ms float64) int {
	n := int(ms * framesPerMs)
	if n < 0 {
		return 0
	}
	return n
}

// UpdateSettings marks new settings as pending; they take effect at the
// start of the next Process call, never mid-frame.
func (g *Gate) UpdateSettings(s GateSettings) {
	g.pending = s
	g.dirty.Store(true)
}

// Process applies the gate in place to frame, zeroing it if RMS has stayed
// below threshold past the hold period. Returns the frame's RMS as
// measured before gating (used for input level metering).
func (g *Gate) Process(frame []float32) float32 {
	if g.dirty.Load() {
		g.applySettings(g.pending)
		g.dirty.Store(false)
	}

	rms := RMS(frame)
	openThresh := dbToLinear(g.openDB)
	closeThresh := dbToLinear(g.closeDB)

	if g.open {
		if rms >= closeThresh {
			g.remaining = g.holdFrames + g.releaseFrames
		} else if g.remaining > 0 {
			g.remaining--
		} else {
			g.open = false
		}
	} else {
		if rms >= openThresh {
			g.openStreak++
			if g.openStreak > g.attackFrames {
				g.open = true
				g.remaining = g.holdFrames + g.releaseFrames
				g.openStreak = 0
			}
		} else {
			g.openStreak = 0
		}
	}

	if !g.open {
		for i := range frame {
			frame[i] = 0
		}
	}
	return rms
}

// RMS returns the root-mean-square of a float32 PCM frame.
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

func dbToLinear(db float64) float32 {
	return float32(math.Pow(10, db/20.0))
}

// IsOpen reports whether the most recent Process call left the gate open.
func (g *Gate) IsOpen() bool { return g.open }
