package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrAlreadyStarted = errors.New("task already started")

// Ticker is the subset of time.Ticker used by a Task
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the ticker driving a Task
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// NewTicker wraps time.NewTicker
func NewTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// TickFunc is run on every tick. Returning false ends the task.
type TickFunc func(ctx context.Context, now time.Time) bool

// Task runs a TickFunc on a fixed interval in a single goroutine, so ticks
// never overlap and their results are applied in order. A Task runs once;
// it ends when the TickFunc returns false, when its context is cancelled or
// when Stop is called.
type Task struct {
	name      string
	interval  time.Duration
	newTicker TickerFactory
	logger    *logrus.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTask creates a task. A nil factory uses NewTicker.
func NewTask(name string, interval time.Duration, factory TickerFactory, logger *logrus.Logger) *Task {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if factory == nil {
		factory = NewTicker
	}

	return &Task{
		name:      name,
		interval:  interval,
		newTicker: factory,
		logger:    logger,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins ticking. The TickFunc receives a context that is cancelled
// by Stop.
func (t *Task) Start(ctx context.Context, fn TickFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	ticker := t.newTicker(t.interval)

	go t.run(ctx, ticker, fn)
	return nil
}

func (t *Task) run(ctx context.Context, ticker Ticker, fn TickFunc) {
	defer close(t.done)
	defer ticker.Stop()
	defer t.cancel()

	t.logger.WithFields(logrus.Fields{
		"task":     t.name,
		"interval": t.interval.String(),
	}).Debug("Task started")

	for {
		select {
		case <-t.stopChan:
			t.logger.WithField("task", t.name).Debug("Task stopped")
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			// Stop may have raced with this tick
			if ctx.Err() != nil {
				return
			}
			if !fn(ctx, now) {
				t.logger.WithField("task", t.name).Debug("Task finished")
				return
			}
		}
	}
}

// Stop ends the task and waits for a running tick to return. It is safe to
// call more than once and before Start. It must not be called from the
// TickFunc; return false instead.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		started := t.started
		t.started = true
		if t.cancel != nil {
			t.cancel()
		}
		t.mu.Unlock()

		close(t.stopChan)
		if !started {
			close(t.done)
		}
	})
	<-t.done
}

// Done is closed once the task has ended
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the task has started and not yet ended
func (t *Task) Running() bool {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
