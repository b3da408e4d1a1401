package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/review-autopublisher/internal/publisher"
)

// RunFunc runs one auto-publish batch.
type RunFunc func(ctx context.Context, req publisher.Request) (publisher.Report, error)

// Scheduler fires a run on a fixed cadence for deployments without an
// external cron. A tick that lands while a run is still going is dropped.
type Scheduler struct {
	Run      RunFunc
	Interval time.Duration
	Log      logrus.FieldLogger
}

func (s *Scheduler) Start(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.Log.WithField("interval", s.Interval.String()).Info("scheduler started")

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.WithField("panic", r).Error("scheduled run panicked; next tick will retry")
		}
	}()
	rep, err := s.Run(ctx, publisher.Request{})
	if err != nil {
		s.Log.WithError(err).Error("scheduled run failed")
		return
	}
	if rep.Skipped {
		s.Log.WithField("reason", rep.Reason).Debug("scheduled run skipped")
	}
}
