package requery

import (
	"context"
	"time"
)

// Status is the lifecycle state of an entry. There is no terminal state;
// entries cycle between Success and Error until evicted.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time, read-only view of an entry. Data and Error
// are exposed independently: after a failed revalidation, HasData still
// reports the last-known-good value alongside Error.
//
// Snapshots of reference types (slices, maps) share backing storage with the
// cache; treat Data as read-only.
type Snapshot[V any] struct {
	Status         Status
	Data           V
	HasData        bool
	Error          error
	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time

	// IsFetching is true while any fetch (initial or background) is in
	// flight, independent of Status.
	IsFetching bool

	// Stale reports whether a read would trigger a background refetch.
	Stale bool
}

// IsLoading reports the initial load: fetching with nothing cached yet.
func (s Snapshot[V]) IsLoading() bool { return s.Status == StatusLoading }

// run is the ownership handle for one in-flight fetch. seq increases
// monotonically per entry so a stale completion can never overwrite state
// written by a later run.
type run struct {
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{} // closed when the run's goroutine finishes
}

// entry is the unit of cached state for one canonical key. All fields are
// guarded by the owning client's mutex.
type entry[V any] struct {
	canon string
	key   Key // first-seen form, for error messages

	status         Status
	data           V
	hasData        bool
	err            error
	updatedAt      time.Time
	errorUpdatedAt time.Time
	fetching       bool
	invalidated    bool

	staleTime time.Duration
	cacheTime time.Duration

	fetch FetchFunc[V] // most recently registered fetch function

	subs map[*subscriber[V]]struct{}

	run        *run
	seq        uint64 // last issued run sequence
	appliedSeq uint64 // last run sequence applied to the entry

	gc *time.Timer // armed while subscriber count is zero
}

// subscriber is one registered consumer of an entry.
type subscriber[V any] struct {
	cfg     SubscribeConfig[V]
	updates chan struct{} // conflated change signal, buffered 1
}

func (s *subscriber[V]) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
