package requery

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("requery: cache closed")

	// ErrNoFetcher is returned when a refetch is requested for a key that
	// has no fetch function registered (no subscriber ever supplied one).
	ErrNoFetcher = errors.New("requery: no fetch function registered for key")

	// ErrNoCodec is returned by Dehydrate/Hydrate when Options.Codec is nil.
	ErrNoCodec = errors.New("requery: no snapshot codec configured")

	errEmptyKey  = errors.New("empty key")
	errCyclicKey = errors.New("segment contains a cyclic reference")
)

// InvalidKeyError reports a key that cannot be canonicalized. It is raised
// synchronously by Subscribe, Refetch, Invalidate, SetData and GetData.
type InvalidKeyError struct {
	Key     Key
	Segment int // index of the offending segment, -1 if not attributable
	Err     error
}

func (e *InvalidKeyError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("requery: invalid key %s: segment %d: %v", e.Key, e.Segment, e.Err)
	}
	return fmt.Sprintf("requery: invalid key %s: %v", e.Key, e.Err)
}

func (e *InvalidKeyError) Unwrap() error { return e.Err }

// FetchError wraps a fetch failure stored on an entry. It is observed via
// snapshots, never thrown across the subscription boundary.
type FetchError struct {
	Key Key
	Seq uint64 // sequence number of the failing run
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("requery: fetch %s (run %d): %v", e.Key, e.Seq, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
