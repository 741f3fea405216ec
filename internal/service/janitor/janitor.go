package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/todoserver/internal/logger"
)

const defaultInterval = 10 * time.Minute

// Periodic cleanup job, returns count of removed rows
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type Janitor struct {
	interval time.Duration
	jobs     []Job
	logger   logger.Logger
}

// Default interval is used if interval is zero
func New(interval time.Duration, logger logger.Logger, jobs ...Job) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Janitor{
		interval: interval,
		jobs:     jobs,
		logger:   logger,
	}
}

// Run jobs every interval until ctx is done
// Job errors are logged and don't stop the janitor
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	j.logger.Debug("Starting janitor", "interval", j.interval, "jobs", len(j.jobs))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Janitor stopped by context")
				return

			case <-ticker.C:
				j.runJobs(ctx)
			}
		}
	}()

	return idleStopped
}

func (j *Janitor) runJobs(ctx context.Context) {
	for _, job := range j.jobs {
		if ctx.Err() != nil {
			return
		}

		removed, err := job.Run(ctx)
		if err != nil {
			j.logger.Error("Janitor job failed", "job", job.Name, "error", err)
			continue
		}

		j.logger.Info("Janitor job done", "job", job.Name, "removed", removed)
	}
}
