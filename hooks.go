package requery

import "time"

// Hooks are lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking - the cache calls them on
// hot paths (wrap with hooks/async to decouple). The key argument is a short
// hash of the canonical key, safe for log sinks.
type Hooks interface {
	// A run started for an entry.
	FetchStarted(key string, seq uint64)

	// A trigger attached to an already in-flight run instead of starting
	// a new one.
	FetchDeduped(key string)

	// A run completed after being cancelled or superseded; its result was
	// discarded.
	RunSuperseded(key string, seq uint64)

	// A failed attempt will be retried after delay.
	RetryScheduled(key string, attempt int, delay time.Duration)

	// The entry was removed after cacheTime elapsed with no subscribers.
	EntryEvicted(key string)

	// The entry was marked stale by Invalidate.
	Invalidated(key string)

	// Hydrate restored (or skipped, with reason "newer" or "decode") an
	// entry from a snapshot.
	SnapshotRestored(key string)
	SnapshotSkipped(key string, reason string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) FetchStarted(string, uint64)                {}
func (NopHooks) FetchDeduped(string)                        {}
func (NopHooks) RunSuperseded(string, uint64)               {}
func (NopHooks) RetryScheduled(string, int, time.Duration)  {}
func (NopHooks) EntryEvicted(string)                        {}
func (NopHooks) Invalidated(string)                         {}
func (NopHooks) SnapshotRestored(string)                    {}
func (NopHooks) SnapshotSkipped(string, string)             {}
