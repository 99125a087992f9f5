package main

import (
	"context"
	"time"

	"AvailGate/internal/biz"
	"AvailGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// RebuildCron runs the nightly filter rebuild on the configured cron
// schedule. It implements the Kratos transport.Server interface so the
// schedule starts and stops with the application.
type RebuildCron struct {
	cron   *cron.Cron
	task   *biz.RebuildTask
	spec   string
	logger *log.Helper

	cancel context.CancelFunc
}

// NewRebuildCron creates the rebuild schedule. The cron expression uses
// six fields (seconds first), e.g. "0 0 3 * * *" for 03:00 daily.
func NewRebuildCron(c *conf.Filter, task *biz.RebuildTask, logger log.Logger) *RebuildCron {
	return &RebuildCron{
		cron:   cron.New(cron.WithSeconds()),
		task:   task,
		spec:   c.RebuildCron,
		logger: log.NewHelper(logger),
	}
}

// Start registers the rebuild job and runs the schedule until the
// application stops.
func (r *RebuildCron) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	_, err := r.cron.AddFunc(r.spec, func() {
		r.logger.Info("scheduled filter rebuild starting")
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := r.task.Rebuild(jobCtx); err != nil {
			r.logger.Errorw("scheduled filter rebuild failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Infow("filter rebuild cron started", "spec", r.spec)

	<-ctx.Done()
	return nil
}

// Stop halts the schedule and waits for a running rebuild to finish.
func (r *RebuildCron) Stop(context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.cron.Stop().Done()
	r.logger.Info("filter rebuild cron stopped")
	return nil
}
