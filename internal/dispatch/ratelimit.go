package dispatch

import (
	"sync/atomic"
	"time"
)

// SlidingLimiter grants at most `limit` permits in any trailing window of
// the configured length. One instance is shared process-wide per account.
//
// Grant timestamps live in a ring sized to the limit: a new permit is only
// possible once the grant `limit` positions back has left the window. The
// grant commits by CAS on the slot timestamp itself, so two racing Ticks
// can never both consume the same aged-out slot; no lock on the hot path.
type SlidingLimiter struct {
	limit  int
	window time.Duration
	head   atomic.Uint64
	grants []atomic.Int64
	now    func() time.Time
}

func NewSlidingLimiter(limit int, window time.Duration) *SlidingLimiter {
	return &SlidingLimiter{
		limit:  limit,
		window: window,
		grants: make([]atomic.Int64, limit),
		now:    time.Now,
	}
}

// Tick grants a permit and returns true, or returns false without blocking
// when the trailing window is already at its limit.
func (l *SlidingLimiter) Tick() bool {
	now := l.now().UnixNano()
	for {
		head := l.head.Load()
		slot := &l.grants[head%uint64(l.limit)]
		oldest := slot.Load()
		if oldest != 0 && now-oldest < int64(l.window) {
			return false
		}
		if slot.CompareAndSwap(oldest, now) {
			l.head.Add(1)
			return true
		}
	}
}
