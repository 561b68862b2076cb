// Package interval takes pictures on a cron schedule by pressing the
// capture button.
package interval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// Presser injects a control press.
type Presser interface {
	Inject(ctx context.Context, control msg.InputType, magnitude int16) (msg.Result, error)
}

// Scheduler fires capture presses on a schedule.
type Scheduler struct {
	cron    *cron.Cron
	presser Presser
	log     *slog.Logger
	ctx     context.Context
}

// New parses schedule, a standard five-field cron expression or a
// descriptor such as "@every 1m", evaluated in location.
func New(schedule, location string, presser Presser) (*Scheduler, error) {
	loc := time.Local
	if location != "" {
		l, err := time.LoadLocation(location)
		if err != nil {
			return nil, fmt.Errorf("error loading location %q: %w", location, err)
		}
		loc = l
	}

	log := slog.Default().With("component", "interval")
	cl := &logger.CronLogger{Logger: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		presser: presser,
		log:     log,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.Fire); err != nil {
		return nil, fmt.Errorf("invalid interval schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Fire presses the capture button once. Nobody listening is not an error;
// the camera is simply not in liveview.
func (s *Scheduler) Fire() {
	r, err := s.presser.Inject(s.ctx, msg.KeyCapture, 1)
	switch {
	case r == msg.ResultOK:
		s.log.Info("Interval capture")
	case r == msg.ResultDoNothing:
		s.log.Debug("Interval capture skipped, liveview not active")
	default:
		s.log.Warn("Interval capture failed", "result", r.String(), "error", err)
	}
}

// Next returns when the schedule fires next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running press to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("Interval shooting scheduled", "next", s.Next())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
