package jitter

// Quality classifies link quality from recent loss/jitter/rtt-variance
// measurements. Thresholds extend a three-tier classifier (qualityLevel) to
// four tiers; "good"/"moderate"/"poor" cutoffs become this package's
// Good/Fair/Poor, with an added Excellent tier above Good.
type Quality int

const (
	QualityExcellent Quality = iota
	QualityGood
	QualityFair
	QualityPoor
)

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	default:
		return "poor"
	}
}

// BufferMultiplier scales the base jitter buffer capacity for this quality
// tier.
func (q Quality) BufferMultiplier() float64 {
	switch q {
	case QualityExcellent:
		return 1.0
	case QualityGood:
		return 1.2
	case QualityFair:
		return 1.6
	default:
		return 2.0
	}
}

// WarmupPackets is how many packets must buffer before Running starts.
func (q Quality) WarmupPackets() int {
	switch q {
	case QualityExcellent, QualityGood:
		return 2
	case QualityFair:
		return 3
	default:
		return 6
	}
}

// ReorderWindowMs returns a per-quality tolerance, in ms, for out-of-order
// arrivals. Buffer.Enqueue does not consult it: a timestamp at or below the
// last accepted one is always dropped as stale.
func (q Quality) ReorderWindowMs() int64 {
	switch q {
	case QualityExcellent:
		return 60
	case QualityGood:
		return 80
	case QualityFair:
		return 120
	default:
		return 200
	}
}

// AssessQuality classifies link quality from loss rate (0.0-1.0), smoothed
// inter-arrival jitter in ms, and RTT variance in ms.
func AssessQuality(lossRate, jitterMs, rttVarianceMs float64) Quality {
	switch {
	case lossRate < 0.005 && jitterMs < 10 && rttVarianceMs < 20:
		return QualityExcellent
	case lossRate < 0.02 && jitterMs < 20 && rttVarianceMs < 50:
		return QualityGood
	case lossRate < 0.10 && jitterMs < 50 && rttVarianceMs < 100:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Congestion classifies the local jitter buffer's own depth behavior.
type Congestion int

const (
	CongestionNone Congestion = iota
	CongestionLight
	CongestionModerate
	CongestionHeavy
)

func (c Congestion) String() string {
	switch c {
	case CongestionNone:
		return "none"
	case CongestionLight:
		return "light"
	case CongestionModerate:
		return "moderate"
	default:
		return "heavy"
	}
}

// CapacityAdjustment scales capacity for this congestion tier.
func (c Congestion) CapacityAdjustment() float64 {
	switch c {
	case CongestionNone:
		return 0.9
	case CongestionLight:
		return 1.0
	case CongestionModerate:
		return 1.15
	default:
		return 1.3
	}
}

// AssessCongestion classifies congestion from the average observed queue
// depth against the target depth, and which of underrun/overflow has been
// more frequent recently.
func AssessCongestion(avgDepth, targetDepth float64, underruns, overflows uint64) Congestion {
	switch {
	case underruns > overflows*2 && avgDepth < targetDepth*0.5:
		return CongestionNone
	case overflows > underruns*2 && avgDepth > targetDepth*1.5:
		return CongestionHeavy
	case avgDepth > targetDepth*1.2 || overflows > underruns:
		return CongestionModerate
	default:
		return CongestionLight
	}
}
