package capture

// BitrateLadder selects the Opus encoder's target bitrate from observed
// connection quality. cmd/voicechat's adaptLoop steps it from the
// health-check loss rate and smoothed RTT; it does not read the jitter
// buffer's quality signal.
var BitrateLadder = []int{8000, 12000, 16000, 24000, 32000, 48000}

// DefaultBitrateBps is the starting rung for a new encoder.
const DefaultBitrateBps = 32000

// NextBitrateBps returns the next rung to step to given the current
// bitrate and the latest loss rate / RTT observation, one rung at a time:
// down when loss exceeds 5%, up when loss is under 1% and RTT is a known,
// healthy sub-150ms value, held otherwise.
func NextBitrateBps(currentBps int, lossRate float64, rttMs float64) int {
	idx := closestRung(currentBps)
	switch {
	case lossRate > 0.05 && idx > 0:
		return BitrateLadder[idx-1]
	case lossRate < 0.01 && rttMs > 0 && rttMs < 150 && idx < len(BitrateLadder)-1:
		return BitrateLadder[idx+1]
	default:
		return BitrateLadder[idx]
	}
}

func closestRung(bps int) int {
	best, bestDist := 0, iabs(bps-BitrateLadder[0])
	for i, step := range BitrateLadder {
		if d := iabs(bps - step); d < bestDist {
			bestDist, best = d, i
		}
	}
	return best
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
