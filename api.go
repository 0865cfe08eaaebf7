package requery

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/requery/codec"
)

// Defaults applied by New and Subscribe when the corresponding option is zero.
const (
	DefaultCacheTime = 5 * time.Minute

	// StaleAlways marks data stale the moment it lands (any negative
	// stale time behaves the same). Useful as a per-subscription override
	// when the cache-wide default is non-zero.
	StaleAlways time.Duration = -1

	// StaleNever disables staleness-driven refetches for an entry.
	StaleNever time.Duration = 1<<63 - 1
)

// FetchFunc produces the value for a key. The context is cancelled when the
// last subscriber leaves or the cache closes; cancellation is advisory - a
// fetch that ignores it simply has its result discarded.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// RefetchMode controls whether a trigger (mount, focus, reconnect) starts a
// background fetch. The zero value refetches only when the entry is stale.
type RefetchMode uint8

const (
	RefetchStale RefetchMode = iota
	RefetchAlways
	RefetchNever
)

// Cache is the consumer-facing contract. One Cache holds entries of a single
// value type V; entries are keyed by canonical query key. Consumers only
// ever hold read snapshots and action handles, never entry references.
type Cache[V any] interface {
	// Subscribe registers a consumer against the entry for key, creating
	// the entry if absent. Returns *InvalidKeyError for malformed keys.
	Subscribe(key Key, fn FetchFunc[V], cfg SubscribeConfig[V]) (*Subscription[V], error)

	// Refetch forces a run for key regardless of staleness and waits for
	// it (or an in-flight run it deduplicates against) to complete.
	Refetch(ctx context.Context, key Key) error

	// Invalidate marks key stale immediately. If subscribers exist a
	// background refetch starts; otherwise the next read fetches.
	Invalidate(key Key) error

	// InvalidateCanonical is Invalidate for an already-canonicalized key,
	// e.g. one received from another replica. It does not re-announce the
	// invalidation via Options.OnInvalidate.
	InvalidateCanonical(canon string)

	// SetData synchronously replaces cached data without a network call.
	// ok reports whether prior data existed. update must not call back
	// into the cache. IsFetching is left untouched.
	SetData(key Key, update func(old V, ok bool) V) error

	// GetData is a point-in-time read without subscribing.
	GetData(key Key) (v V, ok bool, err error)

	// Dehydrate serializes all successful entries using Options.Codec.
	Dehydrate(ctx context.Context) ([]byte, error)

	// Hydrate restores entries from a Dehydrate snapshot. An item never
	// overwrites an entry with newer data.
	Hydrate(ctx context.Context, snapshot []byte) error

	// Close cancels in-flight runs, stops timers and trigger loops, and
	// drops all entries. Blocks until trigger loops exit or ctx expires.
	Close(ctx context.Context) error
}

// Options tune a Cache. All fields are optional.
type Options[V any] struct {
	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Codec is required only for Dehydrate/Hydrate.
	Codec c.Codec[V]

	StaleTime time.Duration // default for entries; 0 => immediately stale
	CacheTime time.Duration // default for entries; 0 => DefaultCacheTime

	// Retry applies inside each run before it is considered failed.
	Retry RetryPolicy

	// Focus and Reconnect deliver external triggers (window refocus,
	// network reconnect). Senders must not close these channels.
	Focus     <-chan struct{}
	Reconnect <-chan struct{}

	// InBackground reports whether the surrounding environment is
	// backgrounded; interval refetches are suppressed while it returns
	// true unless a subscription sets RefetchIntervalInBackground.
	InBackground func() bool

	// OnInvalidate is called (outside any cache lock) with the canonical
	// key after a local Invalidate. Intended for cross-replica fan-out,
	// e.g. redisbus.Bus.Publish.
	OnInvalidate func(canon string)
}

// SubscribeConfig tunes a single subscription.
type SubscribeConfig[V any] struct {
	StaleTime time.Duration // 0 => Options.StaleTime; negative => always stale
	CacheTime time.Duration // 0 => Options.CacheTime

	// Disabled suppresses all automatic fetches for this subscription
	// (mount, focus, reconnect, interval). Manual Refetch still works.
	Disabled bool

	RefetchOnMount     RefetchMode
	RefetchOnFocus     RefetchMode
	RefetchOnReconnect RefetchMode

	// RefetchInterval > 0 polls at that period regardless of staleness.
	RefetchInterval             time.Duration
	RefetchIntervalInBackground bool

	// InitialData seeds the entry when it is first created. Returning
	// ok=false leaves the entry without data.
	InitialData func() (V, bool)

	// Select transforms snapshot data before delivery to this subscriber.
	Select func(V) V

	OnSuccess func(V)
	OnError   func(error)
}

// New creates a Cache. The zero Options value is valid.
func New[V any](opts Options[V]) (Cache[V], error) {
	return newClient(opts)
}
