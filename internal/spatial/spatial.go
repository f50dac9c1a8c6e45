// Package spatial implements the pure-function spatializer that turns an
// emitter position, a listener position/orientation, and a recipient mute
// flag into a stereo gain and ear placement.
package spatial

import "math"

const (
	closeDist = 12.0 // within this distance, listener is pulled in close
	virtDist  = 1.33 // virtual listener distance when emitter is very close
	farDist   = 48.0 // beyond this distance, the emitter is inaudible
	steepDist = 38.0 // extra rolloff kicks in beyond this distance

	earOffset = 0.3

	// invertEarDistance is the distance at which left/right ear assignment
	// flips. This reproduces a documented engine quirk verbatim; see
	// DESIGN.md for why it is kept rather than "fixed".
	invertEarDistance = 24.0

	// deafenedCloseRange is the distance within which a deafened listener
	// still hears a reduced-gain version of the emitter.
	deafenedCloseRange = 3.0
	deafenedCloseGain  = 0.35
)

// Vec3 is a position or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

func sub(a, b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func length(v Vec3) float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func scale(v Vec3, s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func add(a, b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

// Ears is the stereo placement computed for one emitter/listener pair.
type Ears struct {
	Left, Right Vec3
	Gain        float64
}

// Place runs the spatializer. emitter and listener
// are world positions, listenerYawDeg is the listener's facing in degrees
// (0 = +Z, clockwise), and mutedByRecipient indicates the recipient has
// deafened this emitter specifically.
func Place(emitter, listener Vec3, listenerYawDeg float64, mutedByRecipient bool) Ears {
	delta := sub(emitter, listener)
	d := length(delta)

	var u Vec3
	if d <= 0.01 {
		u = Vec3{0, 0, -1}
	} else {
		u = scale(delta, 1/d)
	}

	virtual := placeVirtualListener(emitter, u, d)

	yawRad := listenerYawDeg * math.Pi / 180
	fx := math.Sin(yawRad)
	fz := -math.Cos(yawRad)
	leftUnit := Vec3{-fz, 0, fx}

	left := add(virtual, scale(leftUnit, earOffset))
	right := add(virtual, scale(leftUnit, -earOffset))

	if d >= invertEarDistance {
		left, right = right, left
	}

	gain := computeGain(d, mutedByRecipient)

	return Ears{Left: left, Right: right, Gain: gain}
}

// placeVirtualListener computes where the listener is "pulled to" so that
// near-field panning stays stable and far-field falloff follows an
// inverse-square-like curve with an extra steep rolloff past steepDist.
func placeVirtualListener(emitter Vec3, u Vec3, d float64) Vec3 {
	switch {
	case d <= closeDist:
		return sub(emitter, scale(u, virtDist))

	case d <= farDist:
		// Interpolate target "volume" from 1/virtDist^2 (at closeDist) down
		// to 1/closeDist^2 (at farDist) across the mid-range band.
		near := 1 / (virtDist * virtDist)
		far := 1 / (closeDist * closeDist)
		t := (d - closeDist) / (farDist - closeDist)
		volume := near + (far-near)*t

		if d > steepDist {
			rolloffT := (d - steepDist) / (farDist - steepDist)
			volume *= 1 - 0.5*rolloffT*rolloffT
		}
		if volume <= 0 {
			// Degenerate: place the virtual listener at the real listener
			// position (equivalent to the far-field branch below).
			return sub(emitter, scale(u, d))
		}
		virtualDist := 1 / math.Sqrt(volume)
		return sub(emitter, scale(u, virtualDist))

	default: // d > farDist: inaudible, virtual listener is the real listener
		return sub(emitter, scale(u, d))
	}
}

// computeGain returns the overall mix gain for the emitter, independent of
// stereo placement.
func computeGain(d float64, mutedByRecipient bool) float64 {
	if d > farDist {
		return 0
	}
	if mutedByRecipient {
		if d <= deafenedCloseRange {
			return deafenedCloseGain
		}
		return 0
	}
	return 1
}
