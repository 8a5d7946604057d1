// Package worker runs fire-and-forget store writes off the request path.
package worker

import (
	"log/slog"
	"sync"
)

// Task is a unit of background work
type Task struct {
	Name string
	Run  func()
}

// Queue is a bounded channel drained by a fixed set of workers.
// Submit never blocks: when the channel is full the task gets its own goroutine.
type Queue struct {
	tasks    chan Task
	logger   *slog.Logger
	onDrop   func(name string)
	mu       sync.RWMutex
	closed   bool
	workers  sync.WaitGroup
	overflow sync.WaitGroup
}

// Option configures a Queue
type Option func(*Queue)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// WithOverflowHook is called with the task name whenever the channel is full
func WithOverflowHook(fn func(name string)) Option {
	return func(q *Queue) { q.onDrop = fn }
}

// New starts workers goroutines reading from a channel of the given size
func New(workers, size int, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	q := &Queue{
		tasks:  make(chan Task, size),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer q.workers.Done()
			for t := range q.tasks {
				q.run(t)
			}
		}()
	}
	return q
}

// Submit hands t to the queue. After Close the task runs inline.
func (q *Queue) Submit(t Task) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.run(t)
		return
	}

	select {
	case q.tasks <- t:
	default:
		q.logger.Warn("writer queue full, running task on its own goroutine", "task", t.Name)
		if q.onDrop != nil {
			q.onDrop(t.Name)
		}
		q.overflow.Add(1)
		go func() {
			defer q.overflow.Done()
			q.run(t)
		}()
	}
}

// Close stops accepting queued work and waits for pending tasks to finish
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.workers.Wait()
	q.overflow.Wait()
}

func (q *Queue) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("background task panicked", "task", t.Name, "panic", r)
		}
	}()
	t.Run()
}
