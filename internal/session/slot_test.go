package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-client/internal/session"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

var errBackend = errors.New("backend exploded")

func okOp(value string) func(context.Context) voiceapi.Result[string] {
	return func(context.Context) voiceapi.Result[string] {
		return voiceapi.Ok(value)
	}
}

func failOp() voiceapi.Result[string] {
	return voiceapi.Fail[string](&voiceapi.Error{Kind: voiceapi.KindApplication, Message: errBackend.Error(), Err: errBackend})
}

// blockingOp returns an op that signals when it starts and waits for release.
func blockingOp(value string) (op func(context.Context) voiceapi.Result[string], started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})

	op = func(context.Context) voiceapi.Result[string] {
		close(started)
		<-release

		return voiceapi.Ok(value)
	}

	return op, started, release
}

func TestSlot_SuccessReplacesAndClearsError(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	_, ok := slot.Value()
	assert.False(t, ok)

	result := slot.Submit(context.Background(), func(context.Context) voiceapi.Result[string] { return failOp() })
	require.False(t, result.OK())
	require.NotNil(t, slot.Err())
	require.ErrorIs(t, slot.Err(), errBackend)

	slot.Submit(context.Background(), okOp("first"))
	assert.Nil(t, slot.Err())

	value, ok := slot.Value()
	require.True(t, ok)
	assert.Equal(t, "first", value)

	slot.Submit(context.Background(), okOp("second"))
	value, _ = slot.Value()
	assert.Equal(t, "second", value)
	assert.False(t, slot.Busy())
}

func TestSlot_RefusesWhileBusy(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	op, started, release := blockingOp("slow")
	done := make(chan voiceapi.Result[string], 1)

	go func() { done <- slot.Submit(context.Background(), op) }()

	<-started
	assert.True(t, slot.Busy())

	called := false
	refused := slot.Submit(context.Background(), func(context.Context) voiceapi.Result[string] {
		called = true

		return voiceapi.Ok("never")
	})

	require.False(t, refused.OK())
	require.ErrorIs(t, refused.Err(), session.ErrBusy)
	assert.False(t, called)

	close(release)
	require.True(t, (<-done).OK())

	value, _ := slot.Value()
	assert.Equal(t, "slow", value)
}

func TestSlot_ResetDropsStaleCompletion(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	op, started, release := blockingOp("stale")
	done := make(chan struct{})

	go func() {
		defer close(done)

		slot.Submit(context.Background(), op)
	}()

	<-started
	slot.Reset()
	assert.False(t, slot.Busy())

	slot.Submit(context.Background(), okOp("fresh"))

	close(release)
	<-done

	value, ok := slot.Value()
	require.True(t, ok)
	assert.Equal(t, "fresh", value)
}

func TestSlot_DiscardsAfterContextDone(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	ctx, cancel := context.WithCancel(context.Background())

	result := slot.Submit(ctx, func(context.Context) voiceapi.Result[string] {
		cancel()

		return voiceapi.Ok("unmounted")
	})

	assert.True(t, result.OK())
	assert.False(t, slot.Busy())

	_, ok := slot.Value()
	assert.False(t, ok)
}

func TestSlot_Fail(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	slot.Fail(voiceapi.Validation(voiceapi.ErrTextEmpty))
	require.ErrorIs(t, slot.Err(), voiceapi.ErrTextEmpty)

	slot.Reset()
	assert.Nil(t, slot.Err())
	assert.False(t, slot.Busy())
}

func TestSlot_SubmitThenAppliesOnlyKeptValues(t *testing.T) {
	t.Parallel()

	var (
		slot    session.Slot[string]
		applied []string
	)

	record := func(value string) { applied = append(applied, value) }

	slot.SubmitThen(context.Background(), okOp("kept"), record)
	slot.SubmitThen(context.Background(), func(context.Context) voiceapi.Result[string] { return failOp() }, record)

	ctx, cancel := context.WithCancel(context.Background())
	slot.SubmitThen(ctx, func(context.Context) voiceapi.Result[string] {
		cancel()

		return voiceapi.Ok("cancelled")
	}, record)

	op, started, release := blockingOp("stale")
	done := make(chan voiceapi.Result[string], 1)

	go func() { done <- slot.SubmitThen(context.Background(), op, record) }()

	<-started
	slot.Reset()
	close(release)

	stale := <-done
	assert.True(t, stale.OK())
	assert.Equal(t, []string{"kept"}, applied)
}

func TestSlot_PanickingOpReleasesSlot(t *testing.T) {
	t.Parallel()

	var slot session.Slot[string]

	require.Panics(t, func() {
		slot.Submit(context.Background(), func(context.Context) voiceapi.Result[string] {
			panic("op blew up")
		})
	})

	assert.False(t, slot.Busy())
	assert.True(t, slot.Submit(context.Background(), okOp("after")).OK())

	value, ok := slot.Value()
	require.True(t, ok)
	assert.Equal(t, "after", value)
}
