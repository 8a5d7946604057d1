package janitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls   atomic.Int32
	removed int
}

func (s *countingSweeper) Sweep(context.Context) int {
	s.calls.Add(1)
	return s.removed
}

func TestRunOnce(t *testing.T) {
	c := &countingSweeper{removed: 3}
	s := &countingSweeper{removed: 1}
	j, err := New("@every 1h", map[string]Sweeper{"cache": c, "sessions": s}, nil)
	if err != nil {
		t.Fatal(err)
	}

	removed := j.RunOnce(context.Background())
	if removed["cache"] != 3 || removed["sessions"] != 1 {
		t.Errorf("removed = %v", removed)
	}
	if c.calls.Load() != 1 || s.calls.Load() != 1 {
		t.Error("each sweeper should run once")
	}
}

func TestScheduleRuns(t *testing.T) {
	c := &countingSweeper{}
	j, err := New("@every 1s", map[string]Sweeper{"cache": c}, nil)
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	defer j.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for c.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if c.calls.Load() == 0 {
		t.Error("scheduled sweep never ran")
	}
}

func TestInvalidSchedule(t *testing.T) {
	if _, err := New("every minute please", nil, nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
