package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 2, TaskTimeout: time.Second, Retries: 2, Backoff: time.Millisecond}, testLogger())

	var calls atomic.Int32
	ok := d.Go("flaky", func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.True(t, ok)

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_GivesUpAfterRetries(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 1, Retries: 1, Backoff: time.Millisecond}, testLogger())

	var calls atomic.Int32
	d.Go("broken", func(context.Context) error {
		calls.Add(1)
		return errors.New("permanent")
	})

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

type recordingDrops struct {
	mu    sync.Mutex
	tasks []string
}

func (r *recordingDrops) TaskDropped(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

func (r *recordingDrops) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tasks...)
}

func TestDispatcher_DropsWhenSaturated(t *testing.T) {
	drops := &recordingDrops{}
	d := NewDispatcher(DispatcherConfig{Workers: 1, Dropped: drops}, testLogger())

	release := make(chan struct{})
	require.True(t, d.Go("blocker", func(context.Context) error {
		<-release
		return nil
	}))
	assert.False(t, d.Go("extra", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.Go("late", func(context.Context) error { return nil }))
	assert.Equal(t, []string{"extra", "late"}, drops.Tasks())
}

func TestDispatcher_InboundChatConfigNeverRerunsTasks(t *testing.T) {
	cfg := InboundChatDispatcherConfig(25 * time.Second)
	assert.Zero(t, cfg.Retries)
	assert.GreaterOrEqual(t, cfg.TaskTimeout, 25*time.Second)

	d := NewDispatcher(cfg, testLogger())
	var calls atomic.Int32
	d.Go("once", func(context.Context) error {
		calls.Add(1)
		return errors.New("failed")
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(DefaultDispatcherConfig(), testLogger())
	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.Go("late", func(context.Context) error { return nil }))
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(DefaultDispatcherConfig(), testLogger())
	d.Go("panics", func(context.Context) error { panic("boom") })
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseCancelsStragglers(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 1}, testLogger())

	started := make(chan struct{})
	var cancelled atomic.Bool
	d.Go("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cancelled.Load())
}
