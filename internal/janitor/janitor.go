// Package janitor periodically evicts expired cache entries and idle sessions.
package janitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper is anything that can drop its expired entries
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Janitor runs every sweeper on a cron schedule
type Janitor struct {
	cron     *cron.Cron
	sweepers map[string]Sweeper
	logger   *slog.Logger
}

// New parses schedule ("@every 1m", "*/5 * * * *", ...) and registers the sweep job.
func New(schedule string, sweepers map[string]Sweeper, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweepers: sweepers,
		logger:   logger,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce sweeps every store and returns the number of entries removed per store
func (j *Janitor) RunOnce(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(j.sweepers))
	for name, s := range j.sweepers {
		removed[name] = s.Sweep(ctx)
	}
	j.logger.Debug("sweep finished", "removed", removed)
	return removed
}

// Start begins the schedule in the background
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
