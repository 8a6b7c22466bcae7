package normalize

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Estimator supplies placeholder values when no authoritative data exists.
// A nil *Estimator is valid and always returns the midpoint of the requested range.
type Estimator struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewEstimator returns an estimator whose sequence is fixed by seed.
func NewEstimator(seed uint64) *Estimator {
	return &Estimator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // placeholder data, not security sensitive
}

// RandomEstimator returns an estimator seeded from the clock.
func RandomEstimator() *Estimator {
	return NewEstimator(uint64(time.Now().UnixNano())) //nolint:gosec // non-negative
}

// Float returns a value in [lo, hi).
func (e *Estimator) Float(lo, hi float64) float64 {
	if e == nil {
		return lo + (hi-lo)/2
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo + e.rng.Float64()*(hi-lo)
}

// Int returns a value in [lo, hi].
func (e *Estimator) Int(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	if e == nil {
		return lo + (hi-lo)/2
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo + e.rng.IntN(hi-lo+1)
}
