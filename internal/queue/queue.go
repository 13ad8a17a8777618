package queue

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Kind identifies a dashboard event
type Kind string

const (
	// KindReload asks the dashboard to refetch every analytics view
	KindReload Kind = "reload"
	// KindJobFinished reports a scrape job reaching a terminal status
	KindJobFinished Kind = "job_finished"
)

type Event struct {
	Kind   Kind      `json:"kind"`
	JobID  string    `json:"job_id,omitempty"`
	Status string    `json:"status,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// EventQueue is an in-memory queue delivering dashboard events to
// subscribers in order, one event at a time.
type EventQueue struct {
	items    chan Event
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	started  bool
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(Event) error
}

// NewEventQueue creates a new event queue with the specified buffer size
func NewEventQueue(bufferSize int, logger *logrus.Logger) *EventQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &EventQueue{
		items:    make(chan Event, bufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(Event) error, 0),
	}
}

// Push adds an event to the queue without blocking. A zero At is set to the
// current time.
func (q *EventQueue) Push(event Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case q.items <- event:
		q.logger.WithFields(logrus.Fields{
			"kind":   event.Kind,
			"job_id": event.JobID,
		}).Debug("Pushed event to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each event
func (q *EventQueue) Subscribe(handler func(Event) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins delivering events. Calling it again has no effect.
func (q *EventQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.process()
}

func (q *EventQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			return
		case event := <-q.items:
			q.deliver(event)
		}
	}
}

// deliver sends the event to all subscribed handlers
func (q *EventQueue) deliver(event Event) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			q.logger.WithError(err).WithField("kind", event.Kind).Error("Handler failed to process event")
		}
	}
}

// Close stops delivery and rejects further events. It waits for an event
// being delivered to finish. Undelivered events are dropped.
func (q *EventQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	return nil
}

// Len returns the current number of queued events
func (q *EventQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *EventQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
