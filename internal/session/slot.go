// Package session holds per-operation request state for an interactive client.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/book-expert/voice-client/internal/voiceapi"
)

// ErrBusy is returned while a submission is in flight.
var ErrBusy = errors.New("a request is already in progress")

// Slot holds the latest result and error of one kind of operation. Only one
// submission runs at a time. A completion is stored only if the slot was not
// reset meanwhile and the submitting context is still live.
type Slot[T any] struct {
	value      T
	err        *voiceapi.Error
	generation uint64
	hasValue   bool
	busy       bool
	mu         sync.Mutex
}

// Submit runs op unless another submission is in flight, in which case it
// fails with ErrBusy without calling op. The returned result is what op
// produced, whether or not the slot kept it.
func (s *Slot[T]) Submit(ctx context.Context, op func(context.Context) voiceapi.Result[T]) voiceapi.Result[T] {
	return s.SubmitThen(ctx, op, nil)
}

// SubmitThen is Submit with apply called on a successful value the slot
// keeps. apply runs under the slot lock, so it is never called for a result
// dropped by Reset or by a cancelled ctx.
func (s *Slot[T]) SubmitThen(
	ctx context.Context,
	op func(context.Context) voiceapi.Result[T],
	apply func(T),
) voiceapi.Result[T] {
	generation, ok := s.begin()
	if !ok {
		return voiceapi.Fail[T](voiceapi.Validation(ErrBusy))
	}

	finished := false

	defer func() {
		if !finished {
			s.release(generation)
		}
	}()

	result := op(ctx)
	finished = true

	s.commit(ctx, generation, result, apply)

	return result
}

func (s *Slot[T]) begin() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return 0, false
	}

	s.busy = true
	s.err = nil
	s.generation++

	return s.generation, true
}

// release clears busy for an op that panicked.
func (s *Slot[T]) release(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation == s.generation {
		s.busy = false
	}
}

func (s *Slot[T]) commit(ctx context.Context, generation uint64, result voiceapi.Result[T], apply func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return
	}

	s.busy = false

	if ctx.Err() != nil {
		return
	}

	if !result.OK() {
		s.err = result.Err()

		return
	}

	s.value = result.Value()
	s.hasValue = true
	s.err = nil

	if apply != nil {
		apply(s.value)
	}
}

// Busy reports whether a submission is in flight.
func (s *Slot[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.busy
}

// Value returns the current result, if any.
func (s *Slot[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.value, s.hasValue
}

// Err returns the current error, if any.
func (s *Slot[T]) Err() *voiceapi.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Fail records err without running anything, as for input rejected before
// submission.
func (s *Slot[T]) Fail(err *voiceapi.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// Reset clears the slot. Submissions still in flight are abandoned and their
// results dropped.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T

	s.generation++
	s.value = zero
	s.hasValue = false
	s.err = nil
	s.busy = false
}
