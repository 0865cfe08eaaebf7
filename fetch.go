package requery

import (
	"context"
	"time"

	"github.com/unkn0wn-root/requery/internal/util"
)

// startRunLocked is the deduplicating fetch executor. If a run is already in
// flight for the entry, the caller attaches to it; otherwise a new run with
// the next sequence number starts. Returns nil when the entry has no fetch
// function.
func (cl *client[V]) startRunLocked(e *entry[V]) *run {
	if e.run != nil {
		cl.hooks.FetchDeduped(util.ShortKey(e.canon))
		return e.run
	}
	if e.fetch == nil {
		return nil
	}

	e.seq++
	ctx, cancel := context.WithCancel(cl.baseCtx)
	r := &run{seq: e.seq, cancel: cancel, done: make(chan struct{})}
	e.run = r
	e.fetching = true
	// A fresh entry becomes Loading; during background revalidation the
	// prior Success/Error status stays visible and only fetching flips.
	if e.status == StatusIdle {
		e.status = StatusLoading
	}
	cl.hooks.FetchStarted(util.ShortKey(e.canon), r.seq)
	cl.notifyLocked(e)

	go cl.execute(ctx, e, r, e.fetch)
	return r
}

// cancelRunLocked detaches and cancels the in-flight run, if any. The run's
// goroutine keeps going (cancellation is advisory) but its result will be
// discarded because the entry no longer owns it.
func (cl *client[V]) cancelRunLocked(e *entry[V]) {
	if e.run == nil {
		return
	}
	e.run.cancel()
	e.run = nil
	if e.status == StatusLoading && !e.hasData {
		e.status = StatusIdle
	}
	if e.fetching {
		e.fetching = false
		cl.notifyLocked(e)
	}
}

func (cl *client[V]) execute(ctx context.Context, e *entry[V], r *run, fn FetchFunc[V]) {
	defer r.cancel()
	defer close(r.done)

	v, err := cl.attempt(ctx, e, fn)

	cl.mu.Lock()
	owned := e.run == r
	if owned {
		e.run = nil
	}
	// Discard the result of a run that was cancelled, superseded, or
	// raced by cache shutdown. Prior entry state stays untouched.
	if cl.closed || !owned || r.seq <= e.appliedSeq || (err != nil && ctx.Err() != nil) {
		if owned {
			e.fetching = false
			if e.status == StatusLoading && !e.hasData {
				e.status = StatusIdle
			}
			cl.notifyLocked(e)
		}
		cl.mu.Unlock()
		cl.hooks.RunSuperseded(util.ShortKey(e.canon), r.seq)
		return
	}

	e.appliedSeq = r.seq
	e.fetching = false
	now := cl.now()

	var onSuccess []func(V)
	var onError []func(error)
	if err != nil {
		ferr := &FetchError{Key: e.key, Seq: r.seq, Err: err}
		e.status = StatusError
		e.err = ferr
		e.errorUpdatedAt = now
		// last-known-good data is preserved alongside the error
		for sub := range e.subs {
			if sub.cfg.OnError != nil {
				onError = append(onError, sub.cfg.OnError)
			}
		}
		cl.notifyLocked(e)
		cl.mu.Unlock()

		cl.log.Warn("fetch failed", Fields{"key": util.ShortKey(e.canon), "seq": r.seq, "err": err})
		for _, f := range onError {
			f(ferr)
		}
		return
	}

	e.status = StatusSuccess
	e.data = v
	e.hasData = true
	e.err = nil
	e.updatedAt = now
	e.invalidated = false
	for sub := range e.subs {
		if sub.cfg.OnSuccess != nil {
			onSuccess = append(onSuccess, sub.cfg.OnSuccess)
		}
	}
	cl.notifyLocked(e)
	cl.mu.Unlock()

	for _, f := range onSuccess {
		f(v)
	}
}

// attempt runs fn with the configured retry policy. The backoff sleep is
// context-cancellable so an abandoned run does not linger between retries.
func (cl *client[V]) attempt(ctx context.Context, e *entry[V], fn FetchFunc[V]) (V, error) {
	var zero V
	for i := 0; ; i++ {
		v, err := fn(ctx)
		if err == nil || i >= cl.retry.MaxRetries || ctx.Err() != nil {
			return v, err
		}
		attempt := i + 1
		delay := cl.retry.delay(attempt)
		cl.hooks.RetryScheduled(util.ShortKey(e.canon), attempt, delay)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		}
	}
}
