package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func (m *manualTicker) factory() TickerFactory {
	return func(time.Duration) Ticker { return m }
}

// tick blocks until the task has received the tick
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("task did not take the tick")
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not end")
	}
}

func TestTask_RunsUntilFuncReturnsFalse(t *testing.T) {
	ticker := newManualTicker()
	task := NewTask("poll", time.Second, ticker.factory(), logrus.New())

	var calls atomic.Int32
	require.NoError(t, task.Start(context.Background(), func(ctx context.Context, now time.Time) bool {
		return calls.Add(1) < 3
	}))
	assert.True(t, task.Running())

	ticker.tick(t)
	ticker.tick(t)
	ticker.tick(t)
	waitDone(t, task)

	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, task.Running())
	assert.True(t, ticker.stopped.Load())

	// nobody reads the channel any more
	select {
	case ticker.c <- time.Now():
		t.Fatal("tick accepted after task ended")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTask_StopIsIdempotent(t *testing.T) {
	ticker := newManualTicker()
	task := NewTask("poll", time.Second, ticker.factory(), nil)

	require.NoError(t, task.Start(context.Background(), func(context.Context, time.Time) bool { return true }))
	ticker.tick(t)

	task.Stop()
	task.Stop()
	assert.False(t, task.Running())
	assert.True(t, ticker.stopped.Load())
}

func TestTask_StopCancelsRunningTick(t *testing.T) {
	ticker := newManualTicker()
	task := NewTask("poll", time.Second, ticker.factory(), nil)

	entered := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, task.Start(context.Background(), func(ctx context.Context, now time.Time) bool {
		close(entered)
		<-ctx.Done()
		cancelled.Store(true)
		return true
	}))

	ticker.tick(t)
	<-entered
	task.Stop()
	assert.True(t, cancelled.Load())
}

func TestTask_StopBeforeStart(t *testing.T) {
	task := NewTask("poll", time.Second, nil, nil)
	task.Stop()
	waitDone(t, task)

	err := task.Start(context.Background(), func(context.Context, time.Time) bool { return true })
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.False(t, task.Running())
}

func TestTask_StartTwice(t *testing.T) {
	task := NewTask("poll", time.Hour, nil, nil)
	defer task.Stop()

	fn := func(context.Context, time.Time) bool { return true }
	require.NoError(t, task.Start(context.Background(), fn))
	assert.ErrorIs(t, task.Start(context.Background(), fn), ErrAlreadyStarted)
}

func TestTask_ParentContextEndsTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := NewTask("poll", time.Hour, nil, nil)
	require.NoError(t, task.Start(ctx, func(context.Context, time.Time) bool { return true }))

	cancel()
	waitDone(t, task)
}

func TestTask_TicksDoNotOverlap(t *testing.T) {
	task := NewTask("poll", time.Millisecond, nil, nil)

	var mu sync.Mutex
	active, maxActive, calls := 0, 0, 0
	require.NoError(t, task.Start(context.Background(), func(context.Context, time.Time) bool {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		calls++
		mu.Unlock()

		time.Sleep(3 * time.Millisecond)

		mu.Lock()
		active--
		done := calls >= 5
		mu.Unlock()
		return !done
	}))

	waitDone(t, task)
	assert.Equal(t, 1, maxActive)
}
