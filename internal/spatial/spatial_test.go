package spatial

import (
	"math"
	"testing"
)

func TestZeroDistanceNoDivideByZero(t *testing.T) {
	ears := Place(Vec3{0, 0, 0}, Vec3{0, 0, 0}, 0, false)
	if math.IsNaN(ears.Gain) || math.IsNaN(ears.Left.X) {
		t.Fatal("expected no NaN at zero distance")
	}
}

func TestBoundaryDistancePoint01NoDivideByZero(t *testing.T) {
	ears := Place(Vec3{0, 0, 0.01}, Vec3{0, 0, 0}, 0, false)
	if math.IsNaN(ears.Left.X) || math.IsNaN(ears.Right.X) {
		t.Fatal("expected no NaN at d=0.01")
	}
}

func TestInaudibleBeyondFarDist(t *testing.T) {
	ears := Place(Vec3{0, 0, farDist + 0.1}, Vec3{0, 0, 0}, 0, false)
	if ears.Gain != 0 {
		t.Errorf("expected gain 0 beyond farDist, got %v", ears.Gain)
	}
}

func TestAudibleWithinFarDist(t *testing.T) {
	ears := Place(Vec3{0, 0, farDist - 0.1}, Vec3{0, 0, 0}, 0, false)
	if ears.Gain != 1 {
		t.Errorf("expected gain 1 within farDist, got %v", ears.Gain)
	}
}

func TestDeafenedCloseRangeReducedGain(t *testing.T) {
	ears := Place(Vec3{0, 0, 2}, Vec3{0, 0, 0}, 0, true)
	if ears.Gain != deafenedCloseGain {
		t.Errorf("expected reduced gain %v within deafened close range, got %v", deafenedCloseGain, ears.Gain)
	}
}

func TestDeafenedBeyondCloseRangeIsSilent(t *testing.T) {
	ears := Place(Vec3{0, 0, 10}, Vec3{0, 0, 0}, 0, true)
	if ears.Gain != 0 {
		t.Errorf("expected gain 0 for deafened emitter beyond close range, got %v", ears.Gain)
	}
}

func TestEarInversionAtD24(t *testing.T) {
	below := Place(Vec3{0, 0, invertEarDistance - 0.5}, Vec3{0, 0, 0}, 0, false)
	above := Place(Vec3{0, 0, invertEarDistance + 0.5}, Vec3{0, 0, 0}, 0, false)

	// Just below the threshold, left.X should differ in sign from just
	// above the threshold for the same emitter bearing (ears swap).
	if (below.Left.X > 0) == (above.Left.X > 0) {
		t.Error("expected ear assignment to invert at d>=invertEarDistance")
	}
}

func TestCloseRangeVirtualListenerPulledIn(t *testing.T) {
	ears := Place(Vec3{0, 0, 1}, Vec3{0, 0, 0}, 0, false)
	if ears.Gain != 1 {
		t.Errorf("expected full gain at close range, got %v", ears.Gain)
	}
}
