package requery

import (
	"context"
	"errors"
)

// ErrNoMutation is returned by Mutation.Do when Fn is nil.
var ErrNoMutation = errors.New("requery: mutation has no Fn")

// Mutation wraps a state-changing operation with lifecycle callbacks. It is
// deliberately independent of any Cache: callbacks typically close over a
// cache and call SetData (optimistic write in OnMutate, rollback in OnError)
// or Invalidate (in OnSuccess/OnSettled).
type Mutation[T any] struct {
	Fn func(ctx context.Context) (T, error)

	// OnMutate runs synchronously before Fn starts - the place for
	// optimistic cache writes.
	OnMutate func()

	OnSuccess func(T)
	OnError   func(error)

	// OnSettled runs after either outcome, following OnSuccess/OnError.
	OnSettled func(T, error)
}

// Do executes the mutation and its callbacks, returning Fn's result
// unchanged.
func (m Mutation[T]) Do(ctx context.Context) (T, error) {
	var zero T
	if m.Fn == nil {
		return zero, ErrNoMutation
	}
	if m.OnMutate != nil {
		m.OnMutate()
	}
	v, err := m.Fn(ctx)
	if err != nil {
		if m.OnError != nil {
			m.OnError(err)
		}
	} else if m.OnSuccess != nil {
		m.OnSuccess(v)
	}
	if m.OnSettled != nil {
		m.OnSettled(v, err)
	}
	return v, err
}
