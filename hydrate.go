package requery

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/requery/internal/util"
	"github.com/unkn0wn-root/requery/internal/wire"
)

// Dehydrate serializes every successful entry into a portable snapshot:
// canonical key, success timestamp, and the value encoded with Options.Codec.
// Loading/Error/Idle entries are skipped - there is nothing usable to carry.
// Entries whose canonical key exceeds the wire format's key size are skipped
// too, reported via the SnapshotSkipped hook with reason "key_too_long".
func (cl *client[V]) Dehydrate(ctx context.Context) ([]byte, error) {
	if cl.codec == nil {
		return nil, ErrNoCodec
	}

	type pending struct {
		canon     string
		updatedAt time.Time
		data      V
	}
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return nil, ErrClosed
	}
	snaps := make([]pending, 0, len(cl.entries))
	for canon, e := range cl.entries {
		if e.status != StatusSuccess || !e.hasData {
			continue
		}
		snaps = append(snaps, pending{canon: canon, updatedAt: e.updatedAt, data: e.data})
	}
	cl.mu.Unlock()

	// encode outside the lock; codecs can be arbitrarily slow
	items := make([]wire.Item, 0, len(snaps))
	for _, p := range snaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(p.canon) > wire.MaxKeyLen {
			cl.hooks.SnapshotSkipped(util.ShortKey(p.canon), "key_too_long")
			continue
		}
		payload, err := cl.codec.Encode(p.data)
		if err != nil {
			return nil, fmt.Errorf("requery: dehydrate %s: %w", util.ShortKey(p.canon), err)
		}
		items = append(items, wire.Item{
			Key:       p.canon,
			UpdatedAt: p.updatedAt.UnixNano(),
			Payload:   payload,
		})
	}
	return wire.EncodeSnapshot(items)
}

// Hydrate restores entries from a Dehydrate snapshot. Restored entries are
// Success with the snapshot's timestamp, so normal staleness applies. An
// item is skipped when the live entry already has data at least as new -
// hydration must never clobber state written since the snapshot was taken.
func (cl *client[V]) Hydrate(ctx context.Context, snapshot []byte) error {
	if cl.codec == nil {
		return ErrNoCodec
	}
	items, err := wire.DecodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	type decoded struct {
		canon     string
		updatedAt time.Time
		data      V
	}
	vals := make([]decoded, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := cl.codec.Decode(it.Payload)
		if err != nil {
			cl.hooks.SnapshotSkipped(util.ShortKey(it.Key), "decode")
			continue
		}
		vals = append(vals, decoded{canon: it.Key, updatedAt: time.Unix(0, it.UpdatedAt), data: v})
	}

	restored := 0
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	for _, d := range vals {
		e := cl.entries[d.canon]
		if e != nil && e.hasData && !e.updatedAt.Before(d.updatedAt) {
			cl.hooks.SnapshotSkipped(util.ShortKey(d.canon), "newer")
			continue
		}
		if e == nil {
			e = cl.newEntryLocked(d.canon, nil, SubscribeConfig[V]{})
			cl.scheduleGCLocked(e)
		}
		e.data = d.data
		e.hasData = true
		e.status = StatusSuccess
		e.err = nil
		e.updatedAt = d.updatedAt
		e.invalidated = false
		cl.notifyLocked(e)
		cl.hooks.SnapshotRestored(util.ShortKey(d.canon))
		restored++
	}
	cl.mu.Unlock()

	cl.log.Info("hydrated snapshot", Fields{"items": len(items), "restored": restored})
	return nil
}
