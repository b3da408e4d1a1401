package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/config"
	"github.com/example/review-autopublisher/internal/db"
	"github.com/example/review-autopublisher/internal/events"
)

// Request is what a trigger may ask for. Zero values mean defaults.
type Request struct {
	TenantID string `json:"tenantId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	DryRun   bool   `json:"dryRun,omitempty"`
}

// Locker is an optional "one run at a time" guard. Correctness does not
// depend on it: every transition is conditioned on the draft being pending.
type Locker interface {
	TryLock(ctx context.Context) (bool, func(), error)
}

// AdvisoryLock is a Postgres session advisory lock.
type AdvisoryLock struct {
	DB  *db.DB
	Key int64
}

// RunLockKey identifies the auto-publish run in pg_advisory_lock.
const RunLockKey int64 = 0x72657669657773 // "reviews"

func (l AdvisoryLock) TryLock(ctx context.Context) (bool, func(), error) {
	return l.DB.TryAdvisoryLock(ctx, l.Key)
}

// Runner is the entry point fired by the scheduler or the HTTP trigger.
type Runner struct {
	Drafts       DraftStore
	Orchestrator *Orchestrator
	Window       autopublish.Window
	DefaultLimit int
	// Deadline is the soft run budget; zero means none.
	Deadline time.Duration
	Lock     Locker
	Events   events.Publisher
	Log      logrus.FieldLogger
	Clock    func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// Run executes one batch. The only error is a fatal one (the pending drafts
// could not be loaded, or the lock could not be queried); everything else is
// reported in the Report.
func (r *Runner) Run(ctx context.Context, req Request) (Report, error) {
	started := r.now()
	rep := Report{RunID: uuid.NewString(), DryRun: req.DryRun, StartedAt: started, Tenants: []TenantReport{}}
	log := r.Log.WithField("run_id", rep.RunID)

	if !r.Window.AllowsHour(started) {
		rep.Skipped = true
		rep.Reason = ReasonOutsideHours
		rep.FinishedAt = r.now()
		log.WithField("hour", started.In(r.location()).Hour()).Info("outside allowed hours; run skipped")
		return rep, nil
	}

	if r.Lock != nil && !req.DryRun {
		ok, release, err := r.Lock.TryLock(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			rep.Skipped = true
			rep.Reason = ReasonRunInProgress
			rep.FinishedAt = r.now()
			log.Info("another run holds the lock; run skipped")
			return rep, nil
		}
		defer release()
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.DefaultLimit
	}
	limit = config.ClampLimit(limit)

	cands, err := r.Drafts.LoadPending(ctx, req.TenantID, limit)
	if err != nil {
		log.WithError(err).Error("could not load pending drafts")
		return Report{}, fmt.Errorf("load pending drafts: %w", err)
	}

	soft, cancel := r.softContext(ctx)
	defer cancel()

	rep.Tenants, rep.Totals = r.Orchestrator.Process(ctx, batch{runID: rep.RunID, dryRun: req.DryRun, soft: soft}, cands)
	for _, t := range rep.Tenants {
		if t.Partial {
			rep.Partial = true
		}
	}
	rep.FinishedAt = r.now()

	log.WithFields(logrus.Fields{
		"loaded":     len(cands),
		"limit":      limit,
		"tenants":    len(rep.Tenants),
		"considered": rep.Totals.Considered,
		"published":  rep.Totals.Published,
		"skipped":    rep.Totals.Skipped,
		"errored":    rep.Totals.Errored,
		"deferred":   rep.Totals.Deferred,
		"partial":    rep.Partial,
		"dry_run":    req.DryRun,
		"elapsed":    rep.FinishedAt.Sub(started).String(),
	}).Info("auto-publish run finished")

	if !req.DryRun && r.Events != nil {
		if err := r.Events.Publish(ctx, events.KeyRunCompleted, events.NewEnvelope(events.KeyRunCompleted, rep.RunID, rep)); err != nil {
			log.WithError(err).Warn("could not emit run report event")
		}
	}
	return rep, nil
}

func (r *Runner) softContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Deadline)
}

func (r *Runner) location() *time.Location {
	if r.Window.Location != nil {
		return r.Window.Location
	}
	return time.UTC
}
