// Package requery implements a keyed async query cache: it fetches remote
// data keyed by a composite query key, collapses concurrent requests for the
// same key into one in-flight fetch, serves stale-but-usable cached data
// while revalidating in the background, and invalidates or updates entries
// in response to mutations.
//
// Components:
//   - Key: ordered sequence of JSON-like segments, canonicalized with
//     deterministic CBOR so structurally equal keys are identical.
//   - Cache[V]: owns one entry per canonical key (status, data, error,
//     timestamps, subscriber count, in-flight run).
//   - Subscription[V]: read-only snapshots plus a conflated change signal;
//     multiple subscriptions to the same key share a single entry.
//   - Codec[V]: (de)serializes V for snapshot dehydration/hydration.
//
// Entries move Idle -> Loading -> {Success, Error} and then cycle: a
// background revalidation keeps the prior status visible and only flips
// IsFetching. A fetch error never erases last-known-good data.
//
// Staleness and lifetime:
//
//	stale:   invalidated || now - updatedAt >= staleTime (default 0)
//	evicted: cacheTime (default 5m) after the last unsubscribe
//
// Typical use:
//
//	cache, _ := requery.New[[]Movie](requery.Options[[]Movie]{})
//	sub, _ := cache.Subscribe(requery.K("bookmarks", "movies"), fetchMovies,
//	    requery.SubscribeConfig[[]Movie]{StaleTime: 30 * time.Second})
//	defer sub.Unsubscribe()
//	for range sub.Updates() {
//	    render(sub.Snapshot())
//	}
//
// At most one fetch is in flight per key; a superseded run's result is
// discarded (per-run sequence guard), never written over newer state.
package requery
