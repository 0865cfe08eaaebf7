package requery

import (
	"context"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/requery/codec"
	"github.com/unkn0wn-root/requery/internal/util"
)

// client owns the entry registry. All entry mutations happen under mu; the
// only blocking operation (the fetch itself) runs outside it. Subscriber
// callbacks are likewise invoked outside the lock.
type client[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	closed  bool

	log   Logger
	hooks Hooks
	codec c.Codec[V]

	staleTime time.Duration
	cacheTime time.Duration
	retry     RetryPolicy

	focus        <-chan struct{}
	reconnect    <-chan struct{}
	inBackground func() bool
	onInvalidate func(canon string)

	now func() time.Time // swapped in tests

	baseCtx    context.Context
	baseCancel context.CancelFunc
	loopWg     sync.WaitGroup // signal + interval loops; not fetch goroutines
	closeOnce  sync.Once
}

func newClient[V any](opts Options[V]) (*client[V], error) {
	if opts.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("requery: negative MaxRetries %d", opts.Retry.MaxRetries)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := &client[V]{
		entries:      make(map[string]*entry[V]),
		codec:        opts.Codec,
		staleTime:    opts.StaleTime,
		cacheTime:    coalesce(opts.CacheTime, DefaultCacheTime),
		retry:        opts.Retry,
		focus:        opts.Focus,
		reconnect:    opts.Reconnect,
		inBackground: opts.InBackground,
		onInvalidate: opts.OnInvalidate,
		now:          time.Now,
		baseCtx:      ctx,
		baseCancel:   cancel,
	}
	cl.log = coalesce[Logger](opts.Logger, NopLogger{})
	cl.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if cl.focus != nil || cl.reconnect != nil {
		cl.loopWg.Add(1)
		go cl.signalLoop()
	}
	return cl, nil
}

func (cl *client[V]) Close(ctx context.Context) error {
	cl.closeOnce.Do(func() {
		cl.mu.Lock()
		cl.closed = true
		for _, e := range cl.entries {
			if e.gc != nil {
				e.gc.Stop()
				e.gc = nil
			}
			cl.cancelRunLocked(e)
		}
		cl.entries = make(map[string]*entry[V])
		cl.mu.Unlock()
		cl.baseCancel()
	})

	done := make(chan struct{})
	go func() {
		cl.loopWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookup canonicalizes key and returns the entry, or nil if absent.
func (cl *client[V]) lookup(key Key) (string, *entry[V], error) {
	canon, err := Canonical(key)
	if err != nil {
		return "", nil, err
	}
	return canon, cl.entries[canon], nil
}

// newEntryLocked creates an entry, resolving per-entry durations from cfg
// with cache-wide fallbacks.
func (cl *client[V]) newEntryLocked(canon string, key Key, cfg SubscribeConfig[V]) *entry[V] {
	e := &entry[V]{
		canon:     canon,
		key:       key,
		status:    StatusIdle,
		staleTime: cl.resolveStale(cfg.StaleTime),
		cacheTime: coalesce(cfg.CacheTime, cl.cacheTime),
		subs:      make(map[*subscriber[V]]struct{}),
	}
	cl.entries[canon] = e
	return e
}

func (cl *client[V]) resolveStale(d time.Duration) time.Duration {
	if d == 0 {
		return cl.staleTime
	}
	return d
}

// staleLocked implements: stale = invalidated || now-updatedAt >= staleTime.
func (cl *client[V]) staleLocked(e *entry[V]) bool {
	if e.invalidated {
		return true
	}
	if !e.hasData {
		return true
	}
	st := e.staleTime
	if st < 0 {
		return true
	}
	if st == StaleNever {
		return false
	}
	return cl.now().Sub(e.updatedAt) >= st
}

// needsFetchLocked decides whether a read-shaped trigger starts a run:
// missing data, Error status, or staleness.
func (cl *client[V]) needsFetchLocked(e *entry[V]) bool {
	if e.status == StatusError {
		return true
	}
	if !e.hasData {
		return true
	}
	return cl.staleLocked(e)
}

func (cl *client[V]) snapshotLocked(e *entry[V]) Snapshot[V] {
	return Snapshot[V]{
		Status:         e.status,
		Data:           e.data,
		HasData:        e.hasData,
		Error:          e.err,
		UpdatedAt:      e.updatedAt,
		ErrorUpdatedAt: e.errorUpdatedAt,
		IsFetching:     e.fetching,
		Stale:          cl.staleLocked(e),
	}
}

func (cl *client[V]) notifyLocked(e *entry[V]) {
	for sub := range e.subs {
		sub.notify()
	}
}

// scheduleGCLocked arms the eviction timer; called whenever subscriber count
// reaches (or an entry is created with) zero.
func (cl *client[V]) scheduleGCLocked(e *entry[V]) {
	if e.gc != nil {
		e.gc.Stop()
	}
	e.gc = time.AfterFunc(e.cacheTime, func() { cl.evict(e) })
}

func (cl *client[V]) evict(e *entry[V]) {
	cl.mu.Lock()
	if cl.closed || len(e.subs) > 0 || cl.entries[e.canon] != e {
		cl.mu.Unlock()
		return
	}
	cl.cancelRunLocked(e)
	delete(cl.entries, e.canon)
	cl.mu.Unlock()

	cl.hooks.EntryEvicted(util.ShortKey(e.canon))
	cl.log.Debug("entry evicted", Fields{"key": util.ShortKey(e.canon)})
}

// signalLoop consumes external focus/reconnect triggers. A nil channel
// blocks forever in select, so absent signals cost nothing.
func (cl *client[V]) signalLoop() {
	defer cl.loopWg.Done()
	focus, reconnect := cl.focus, cl.reconnect
	for {
		select {
		case _, ok := <-focus:
			if !ok {
				focus = nil
				continue
			}
			cl.refetchOnSignal(func(cfg SubscribeConfig[V]) RefetchMode { return cfg.RefetchOnFocus })
		case _, ok := <-reconnect:
			if !ok {
				reconnect = nil
				continue
			}
			cl.refetchOnSignal(func(cfg SubscribeConfig[V]) RefetchMode { return cfg.RefetchOnReconnect })
		case <-cl.baseCtx.Done():
			return
		}
	}
}

// refetchOnSignal starts a run for every subscribed entry whose subscribers
// opt in: RefetchAlways fires regardless of staleness, the default mode only
// when the entry is stale.
func (cl *client[V]) refetchOnSignal(mode func(SubscribeConfig[V]) RefetchMode) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return
	}
	for _, e := range cl.entries {
		if len(e.subs) == 0 || e.fetch == nil {
			continue
		}
		trigger := false
		for sub := range e.subs {
			if sub.cfg.Disabled {
				continue
			}
			switch mode(sub.cfg) {
			case RefetchAlways:
				trigger = true
			case RefetchNever:
			default:
				trigger = cl.staleLocked(e)
			}
			if trigger {
				break
			}
		}
		if trigger {
			cl.startRunLocked(e)
		}
	}
}
