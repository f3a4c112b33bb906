package queue

import (
	"context"
	"time"

	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/submission"
)

const popBatchSize = 10

// HandleFunc processes one due job. It must not panic through the poller.
type HandleFunc func(ctx context.Context, job *submission.Job)

// Poller drains due jobs on a fixed interval and hands them to the runner
// one at a time. Jobs for distinct customers may be processed by concurrent
// pollers; the same claimed job is never processed twice.
type Poller struct {
	scheduler *RedisScheduler
	interval  time.Duration
	handle    HandleFunc
	logger    logger.Logger
}

func NewPoller(scheduler *RedisScheduler, interval time.Duration, handle HandleFunc, log logger.Logger) *Poller {
	return &Poller{
		scheduler: scheduler,
		interval:  interval,
		handle:    handle,
		logger:    log,
	}
}

// Run blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Queue poller started", map[string]interface{}{
		"interval": p.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Queue poller stopped", nil)
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	for {
		jobs, err := p.scheduler.PopDue(ctx, time.Now(), popBatchSize)
		if err != nil {
			p.logger.Warn("Failed to poll queue", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			p.handle(ctx, job)
		}
	}
}
