package dispatch

import (
	"sync/atomic"
)

// Window bounds how many dispatches for one account may be in flight at
// once. A single instance is shared by every concurrent dispatch; callers
// that fail to acquire are expected to poll with their own deadline check.
type Window struct {
	max      int64
	occupied atomic.Int64
}

func NewWindow(max int) *Window {
	return &Window{max: int64(max)}
}

// TryAcquire attempts to occupy one slot without blocking. It returns the
// occupancy after the attempt; the ticket is nil when the window is full.
func (w *Window) TryAcquire() (*Ticket, int64) {
	for {
		cur := w.occupied.Load()
		if cur >= w.max {
			return nil, cur
		}
		if w.occupied.CompareAndSwap(cur, cur+1) {
			return &Ticket{window: w}, cur + 1
		}
	}
}

func (w *Window) Occupancy() int64 {
	return w.occupied.Load()
}

// Ticket is ownership of one occupied window slot. Only the first Release
// frees the slot, so the occupancy counter cannot be corrupted by a cleanup
// path that runs twice.
type Ticket struct {
	window   *Window
	released atomic.Bool
}

func (t *Ticket) Release() {
	if t.released.CompareAndSwap(false, true) {
		t.window.occupied.Add(-1)
	}
}
