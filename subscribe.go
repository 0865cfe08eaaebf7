package requery

import (
	"context"
	"sync"
	"time"
)

// Subscription is one consumer's handle on a shared entry. It carries a live
// snapshot view and a conflated change signal; the entry itself stays owned
// by the cache.
type Subscription[V any] struct {
	cl   *client[V]
	e    *entry[V]
	sub  *subscriber[V]
	stop chan struct{}
	once sync.Once
}

func (cl *client[V]) Subscribe(key Key, fn FetchFunc[V], cfg SubscribeConfig[V]) (*Subscription[V], error) {
	canon, err := Canonical(key)
	if err != nil {
		return nil, err
	}

	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return nil, ErrClosed
	}

	e := cl.entries[canon]
	if e == nil {
		e = cl.newEntryLocked(canon, key, cfg)
		if cfg.InitialData != nil {
			if v, ok := cfg.InitialData(); ok {
				e.data = v
				e.hasData = true
				e.status = StatusSuccess
				e.updatedAt = cl.now()
			}
		}
	} else {
		if e.key == nil {
			e.key = key // hydrated entries only know their canonical form
		}
		// Later subscribers can extend the entry's lifetime and tighten
		// its freshness window, never the reverse.
		if ct := coalesce(cfg.CacheTime, cl.cacheTime); ct > e.cacheTime {
			e.cacheTime = ct
		}
		if st := cl.resolveStale(cfg.StaleTime); st < e.staleTime {
			e.staleTime = st
		}
	}
	if fn != nil {
		e.fetch = fn
	}

	sub := &subscriber[V]{cfg: cfg, updates: make(chan struct{}, 1)}
	sub.updates <- struct{}{} // synchronous first snapshot
	e.subs[sub] = struct{}{}
	if e.gc != nil {
		e.gc.Stop()
		e.gc = nil
	}

	if !cfg.Disabled {
		switch cfg.RefetchOnMount {
		case RefetchNever:
		case RefetchAlways:
			cl.startRunLocked(e)
		default:
			if cl.needsFetchLocked(e) {
				cl.startRunLocked(e)
			}
		}
	}
	// The Add must happen while cl.closed has been observed false under the
	// lock; otherwise it can race a concurrent Close already waiting on the
	// group.
	startLoop := cfg.RefetchInterval > 0 && !cfg.Disabled
	if startLoop {
		cl.loopWg.Add(1)
	}
	cl.mu.Unlock()

	s := &Subscription[V]{cl: cl, e: e, sub: sub, stop: make(chan struct{})}
	if startLoop {
		go cl.intervalLoop(e, sub, s.stop)
	}
	return s, nil
}

// Snapshot returns the current state of the subscribed entry, with the
// subscription's Select transform applied.
func (s *Subscription[V]) Snapshot() Snapshot[V] {
	s.cl.mu.Lock()
	snap := s.cl.snapshotLocked(s.e)
	s.cl.mu.Unlock()

	if s.sub.cfg.Select != nil && snap.HasData {
		snap.Data = s.sub.cfg.Select(snap.Data)
	}
	return snap
}

// Updates signals state transitions of the entry (conflated: consecutive
// changes may coalesce into one token). It holds a token when the
// subscription is created, so the first receive yields the initial snapshot.
// The channel is closed by Unsubscribe.
func (s *Subscription[V]) Updates() <-chan struct{} { return s.sub.updates }

// Refetch forces a run regardless of staleness and waits for it (or the
// in-flight run it attaches to) to complete. ctx bounds the wait, not the
// run itself.
func (s *Subscription[V]) Refetch(ctx context.Context) (Snapshot[V], error) {
	s.cl.mu.Lock()
	if s.cl.closed {
		s.cl.mu.Unlock()
		return s.Snapshot(), ErrClosed
	}
	r := s.cl.startRunLocked(s.e)
	s.cl.mu.Unlock()

	if r == nil {
		return s.Snapshot(), ErrNoFetcher
	}
	select {
	case <-r.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Unsubscribe releases the subscription. Idempotent, and always decrements
// the entry's subscriber count exactly once. When the last subscriber
// leaves, the in-flight run (if any) is cancelled and the eviction timer is
// armed.
func (s *Subscription[V]) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		cl := s.cl
		cl.mu.Lock()
		delete(s.e.subs, s.sub)
		close(s.sub.updates)
		if !cl.closed && len(s.e.subs) == 0 {
			cl.cancelRunLocked(s.e)
			cl.scheduleGCLocked(s.e)
		}
		cl.mu.Unlock()
	})
}

// intervalLoop drives fixed-interval polling for one subscription. It fires
// regardless of staleness, but is suppressed while the environment reports
// itself backgrounded unless the subscription opted in.
func (cl *client[V]) intervalLoop(e *entry[V], sub *subscriber[V], stop <-chan struct{}) {
	defer cl.loopWg.Done()
	t := time.NewTicker(sub.cfg.RefetchInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if cl.inBackground != nil && cl.inBackground() && !sub.cfg.RefetchIntervalInBackground {
				continue
			}
			cl.mu.Lock()
			if !cl.closed {
				cl.startRunLocked(e)
			}
			cl.mu.Unlock()
		case <-stop:
			return
		case <-cl.baseCtx.Done():
			return
		}
	}
}
