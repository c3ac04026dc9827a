package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type flushCollector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (c *flushCollector) collect(batch []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]Event, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
}

func (c *flushCollector) snapshot() [][]Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]Event(nil), c.batches...)
}

func newTestTracker(flush func([]Event)) *PgTracker {
	t := &PgTracker{
		buffer: make(chan Event, bufferSize),
		done:   make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		flush:  flush,
	}
	go t.consume()
	return t
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within a second")
}

func TestPgTracker_FlushesOnWindow(t *testing.T) {
	c := &flushCollector{}
	tr := newTestTracker(c.collect)
	defer tr.Close()

	_ = tr.LogSubmission(context.Background(), true, "tx-1", time.Now(), 0)
	_ = tr.LogProcessing(context.Background(), false, time.Now(), "tx-1", "declined")

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	batch := c.snapshot()[0]
	if len(batch) != 2 {
		t.Fatalf("expected both events in one batch, got %d", len(batch))
	}
	if batch[0].Stage != StageSubmission || !batch[0].Success {
		t.Fatalf("expected a successful submission event, got %+v", batch[0])
	}
	if batch[1].Stage != StageProcessing || batch[1].Success || batch[1].Reason != "declined" {
		t.Fatalf("expected a failed processing event with reason, got %+v", batch[1])
	}
}

func TestPgTracker_FlushesOnSize(t *testing.T) {
	c := &flushCollector{}
	tr := newTestTracker(c.collect)
	defer tr.Close()

	for i := range maxBatchSize {
		_ = tr.LogSubmission(context.Background(), true, "tx", time.Now(), time.Duration(i))
	}

	waitFor(t, func() bool {
		for _, b := range c.snapshot() {
			if len(b) == maxBatchSize {
				return true
			}
		}
		return false
	})
}

func TestPgTracker_NoEventLostOnClose(t *testing.T) {
	c := &flushCollector{}
	tr := newTestTracker(c.collect)

	_ = tr.LogSubmission(context.Background(), true, "tx-last", time.Now(), 0)
	time.Sleep(5 * time.Millisecond) // let consume pick the event up
	tr.Close()

	waitFor(t, func() bool {
		for _, b := range c.snapshot() {
			for _, ev := range b {
				if ev.TransactionID == "tx-last" {
					return true
				}
			}
		}
		return false
	})
}
