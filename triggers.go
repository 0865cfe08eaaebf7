package requery

import (
	"context"

	"github.com/unkn0wn-root/requery/internal/util"
)

func (cl *client[V]) Refetch(ctx context.Context, key Key) error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	_, e, err := cl.lookup(key)
	if err != nil {
		cl.mu.Unlock()
		return err
	}
	if e == nil || e.fetch == nil {
		cl.mu.Unlock()
		return ErrNoFetcher
	}
	r := cl.startRunLocked(e)
	cl.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cl *client[V]) Invalidate(key Key) error {
	canon, err := Canonical(key)
	if err != nil {
		return err
	}
	cl.invalidateCanon(canon, true)
	return nil
}

func (cl *client[V]) InvalidateCanonical(canon string) {
	// announce=false: remote invalidations must not echo back onto the
	// bus, or two replicas would ping-pong forever.
	cl.invalidateCanon(canon, false)
}

func (cl *client[V]) invalidateCanon(canon string, announce bool) {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return
	}
	e := cl.entries[canon]
	if e != nil {
		e.invalidated = true
		if len(e.subs) > 0 && e.fetch != nil {
			cl.startRunLocked(e)
		} else {
			cl.notifyLocked(e)
		}
	}
	cl.mu.Unlock()

	cl.hooks.Invalidated(util.ShortKey(canon))
	cl.log.Debug("invalidated", Fields{"key": util.ShortKey(canon), "cached": e != nil})
	if announce && cl.onInvalidate != nil {
		cl.onInvalidate(canon)
	}
}

func (cl *client[V]) SetData(key Key, update func(old V, ok bool) V) error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	canon, e, err := cl.lookup(key)
	if err != nil {
		cl.mu.Unlock()
		return err
	}
	if e == nil {
		e = cl.newEntryLocked(canon, key, SubscribeConfig[V]{})
		cl.scheduleGCLocked(e)
	}
	e.data = update(e.data, e.hasData)
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.updatedAt = cl.now()
	e.invalidated = false
	cl.notifyLocked(e)
	cl.mu.Unlock()
	return nil
}

func (cl *client[V]) GetData(key Key) (V, bool, error) {
	var zero V
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return zero, false, ErrClosed
	}
	_, e, err := cl.lookup(key)
	if err != nil {
		return zero, false, err
	}
	if e == nil || !e.hasData {
		return zero, false, nil
	}
	return e.data, true, nil
}
