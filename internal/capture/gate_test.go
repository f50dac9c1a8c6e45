package capture

import "testing"

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.5
	}
	return f
}

func silentFrame(n int) []float32 {
	return make([]float32, n)
}

func TestGateOpensAboveThreshold(t *testing.T) {
	g := NewGate(GateSettings{OpenDB: -40, CloseDB: -40, HoldMs: 0})
	frame := loudFrame(960)
	g.Process(frame)
	if !g.IsOpen() {
		t.Fatal("expected gate to open for a loud frame")
	}
	if frame[0] == 0 {
		t.Fatal("expected loud frame to pass through unmodified")
	}
}

func TestGateClosesBelowThresholdAfterHoldExpires(t *testing.T) {
	g := NewGate(GateSettings{OpenDB: -20, CloseDB: -20, HoldMs: 20})
	g.Process(loudFrame(960)) // opens, hold = 1 frame (20ms/20ms)

	quiet := silentFrame(960)
	g.Process(quiet) // still within hold
	if !g.IsOpen() {
		t.Fatal("expected gate to remain open during hold")
	}

	quiet2 := silentFrame(960)
	g.Process(quiet2) // hold expired
	if g.IsOpen() {
		t.Fatal("expected gate to close after hold expires")
	}
	for _, s := range quiet2 {
		if s != 0 {
			t.Fatal("expected frame zeroed once gate is closed")
		}
	}
}

func TestGateAttackRequiresConsecutiveLoudFrames(t *testing.T) {
	g := NewGate(GateSettings{OpenDB: -40, CloseDB: -40, AttackMs: 40}) // 2 frames
	g.Process(loudFrame(960))
	if g.IsOpen() {
		t.Fatal("expected gate to stay closed during attack window")
	}
	g.Process(loudFrame(960))
	g.Process(loudFrame(960))
	if !g.IsOpen() {
		t.Fatal("expected gate open after attack window satisfied")
	}
}

func TestUpdateSettingsIsLatchedNotAppliedMidFrame(t *testing.T) {
	g := NewGate(GateSettings{OpenDB: -40, CloseDB: -40})
	g.UpdateSettings(GateSettings{OpenDB: -10, CloseDB: -10})
	if g.openDB != -40 {
		t.Fatal("expected pending settings not applied before next Process call")
	}
	g.Process(loudFrame(960))
	if g.openDB != -10 {
		t.Fatal("expected pending settings applied at start of next Process call")
	}
}
