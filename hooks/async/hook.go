// Package asynchook decouples hook callbacks from the cache's hot paths by
// running them on a small worker pool behind a bounded queue. Events are
// dropped when the queue is full - hooks are observability, never control
// flow.
//
// Usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FetchEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := requery.New[Movie](requery.Options[Movie]{Hooks: hooks})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/requery"
)

type Hooks struct {
	inner requery.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ requery.Hooks = (*Hooks)(nil)

func New(inner requery.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) FetchStarted(k string, seq uint64)  { h.try(func() { h.inner.FetchStarted(k, seq) }) }
func (h *Hooks) FetchDeduped(k string)              { h.try(func() { h.inner.FetchDeduped(k) }) }
func (h *Hooks) RunSuperseded(k string, seq uint64) { h.try(func() { h.inner.RunSuperseded(k, seq) }) }
func (h *Hooks) EntryEvicted(k string)              { h.try(func() { h.inner.EntryEvicted(k) }) }
func (h *Hooks) Invalidated(k string)               { h.try(func() { h.inner.Invalidated(k) }) }
func (h *Hooks) SnapshotRestored(k string)          { h.try(func() { h.inner.SnapshotRestored(k) }) }
func (h *Hooks) SnapshotSkipped(k, reason string) {
	h.try(func() { h.inner.SnapshotSkipped(k, reason) })
}
func (h *Hooks) RetryScheduled(k string, attempt int, delay time.Duration) {
	h.try(func() { h.inner.RetryScheduled(k, attempt, delay) })
}
