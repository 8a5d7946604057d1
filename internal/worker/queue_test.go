package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsTasks(t *testing.T) {
	q := New(2, 8)

	var n atomic.Int32
	for i := 0; i < 20; i++ {
		q.Submit(Task{Name: "count", Run: func() { n.Add(1) }})
	}
	q.Close()

	if got := n.Load(); got != 20 {
		t.Errorf("ran %d tasks, want 20", got)
	}
}

func TestQueueSubmitDoesNotBlockWhenFull(t *testing.T) {
	var overflowed atomic.Int32
	q := New(1, 1, WithOverflowHook(func(string) { overflowed.Add(1) }))

	release := make(chan struct{})
	started := make(chan struct{})
	q.Submit(Task{Name: "block", Run: func() {
		close(started)
		<-release
	}})
	<-started

	// Worker is busy; this fills the channel.
	q.Submit(Task{Name: "queued", Run: func() {}})

	done := make(chan struct{})
	var ran atomic.Bool
	go func() {
		q.Submit(Task{Name: "overflow", Run: func() { ran.Store(true) }})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	q.Close()

	if overflowed.Load() != 1 {
		t.Errorf("overflow hook called %d times, want 1", overflowed.Load())
	}
	if !ran.Load() {
		t.Error("overflow task never ran")
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	q := New(1, 4)

	var wg sync.WaitGroup
	wg.Add(1)
	q.Submit(Task{Name: "panic", Run: func() { panic("boom") }})
	q.Submit(Task{Name: "after", Run: wg.Done})

	wg.Wait()
	q.Close()
}

func TestQueueSubmitAfterClose(t *testing.T) {
	q := New(1, 1)
	q.Close()
	q.Close()

	ran := false
	q.Submit(Task{Name: "late", Run: func() { ran = true }})
	if !ran {
		t.Error("task submitted after Close should run inline")
	}
}
