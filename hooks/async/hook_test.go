package asynchook

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/requery"
)

type countingHooks struct {
	requery.NopHooks
	invalidated atomic.Int32
	started     chan struct{} // signaled on Invalidated entry
	gate        chan struct{} // blocks Invalidated until closed
}

func (c *countingHooks) Invalidated(string) {
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	c.invalidated.Add(1)
}

func TestAsyncDeliversAndDrains(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 64)

	for i := 0; i < 10; i++ {
		h.Invalidated("k")
	}
	h.Close() // drains the queue

	if got := inner.invalidated.Load(); got != 10 {
		t.Fatalf("delivered %d events, want 10", got)
	}
}

func TestAsyncDropsWhenQueueFull(t *testing.T) {
	inner := &countingHooks{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	h := New(inner, 1, 1)

	h.Invalidated("a")
	select {
	case <-inner.started: // worker is now blocked inside the first event
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never picked up the first event")
	}
	h.Invalidated("b") // fills the queue
	h.Invalidated("c") // queue full: dropped

	close(inner.gate)
	select {
	case <-inner.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("second event never ran")
	}
	h.Close()

	if got := inner.invalidated.Load(); got != 2 {
		t.Fatalf("delivered %d events, want 2 (one dropped)", got)
	}
}

func TestAsyncCloseIdempotent(t *testing.T) {
	h := New(&countingHooks{}, 1, 8)
	h.Close()
	h.Close() // must not panic
}
