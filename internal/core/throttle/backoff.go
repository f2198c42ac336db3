package throttle

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultRetryBase is the first retry delay before jitter
	DefaultRetryBase = 500 * time.Millisecond

	// DefaultRetryMax caps any single retry delay
	DefaultRetryMax = 30 * time.Second
)

// Backoff returns the delay before retry attempt n (0-based):
// min(base * 2^n, max) with multiplicative jitter in [0.5, 1.5), clamped to
// max. Jitter keeps synchronized retry herds off a recovering upstream
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultRetryBase
	}
	if max <= 0 {
		max = DefaultRetryMax
	}
	if attempt < 0 {
		attempt = 0
	}

	d := base
	// shift with overflow guard; 63 doublings exceed any practical max anyway
	for i := 0; i < attempt; i++ {
		if d >= max {
			d = max
			break
		}
		d *= 2
	}
	if d > max {
		d = max
	}

	jittered := time.Duration(float64(d) * (0.5 + rand.Float64()))
	if jittered > max {
		jittered = max
	}
	if jittered <= 0 {
		jittered = base / 2
	}
	return jittered
}
