// Package velocity estimates how often a discovered item changes and maps the
// estimate to a re-scan cadence. Pure logic; the scheduler service owns all I/O.
package velocity

import "time"

// RiskTier is the freshness criticality of an item or rule. Higher tiers are
// re-scanned more aggressively and harden arbitration escalation
type RiskTier string

const (
	RiskCritical RiskTier = "CRITICAL"
	RiskHigh     RiskTier = "HIGH"
	RiskMedium   RiskTier = "MEDIUM"
	RiskLow      RiskTier = "LOW"
)

// Rank orders tiers with CRITICAL highest. Unknown tiers rank below LOW
func (r RiskTier) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	case RiskLow:
		return 0
	}
	return -1
}

// Valid reports whether r is one of the defined tiers
func (r RiskTier) Valid() bool { return r.Rank() >= 0 }

const (
	alphaMin = 0.05
	alphaMax = 0.5

	// minInterval floors the cadence so a hot item cannot melt its source
	minInterval = 30 * time.Minute

	// ErrorCooldown pushes next-due back after a scan error; fixed, not
	// exponential, per the scheduler contract
	ErrorCooldown = 4 * time.Hour
)

// Update folds one scan observation into the change-frequency estimate.
// Observed change pulls the estimate toward 1, an unchanged scan decays it
// toward 0. The observation weight shrinks as scanCount grows so
// well-observed items stay stable
func Update(old float64, scanCount int, changed bool) float64 {
	if old < 0 {
		old = 0
	}
	if old > 1 {
		old = 1
	}
	if scanCount < 0 {
		scanCount = 0
	}

	alpha := 1.0 / (1.0 + float64(scanCount)/2.0)
	if alpha < alphaMin {
		alpha = alphaMin
	}
	if alpha > alphaMax {
		alpha = alphaMax
	}

	target := 0.0
	if changed {
		target = 1.0
	}
	f := old + alpha*(target-old)
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f
}

// baseWindow is the tier cadence before frequency scaling
func baseWindow(risk RiskTier) time.Duration {
	switch risk {
	case RiskCritical:
		return 6 * time.Hour
	case RiskHigh:
		return 24 * time.Hour
	case RiskMedium:
		return 72 * time.Hour
	default:
		return 168 * time.Hour
	}
}

// NextInterval maps (frequency, risk) to the wait before the next scan.
// Monotonic in both inputs: higher frequency and higher risk always shorten
// the interval. freq is clamped to [0,1]
func NextInterval(freq float64, risk RiskTier) time.Duration {
	if freq < 0 {
		freq = 0
	}
	if freq > 1 {
		freq = 1
	}
	// freq 0 stretches the window 1.25x, freq 1 compresses it to 0.25x
	scaled := time.Duration(float64(baseWindow(risk)) * (1.25 - freq))
	if scaled < minInterval {
		scaled = minInterval
	}
	return scaled
}
