package dispatch

import (
	"sync/atomic"
	"time"
)

const estimatorWeight = 0.2

// LatencyEstimator keeps an exponentially weighted average of observed
// gateway call durations. It is seeded from the configured per-account
// estimate so the deadline margin is sane before the first observation,
// then drifts toward what the gateway actually does.
type LatencyEstimator struct {
	avg atomic.Int64
}

func NewLatencyEstimator(seed time.Duration) *LatencyEstimator {
	e := &LatencyEstimator{}
	e.avg.Store(int64(seed))
	return e
}

func (e *LatencyEstimator) Observe(d time.Duration) {
	for {
		cur := e.avg.Load()
		next := int64(float64(cur)*(1-estimatorWeight) + float64(d)*estimatorWeight)
		if e.avg.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (e *LatencyEstimator) Average() time.Duration {
	return time.Duration(e.avg.Load())
}
