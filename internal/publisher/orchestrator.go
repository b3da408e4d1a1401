package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/events"
	"github.com/example/review-autopublisher/internal/internaltypes"
	"github.com/example/review-autopublisher/internal/replytext"
)

type DraftStore interface {
	LoadPending(ctx context.Context, tenantID string, limit int) ([]autopublish.Candidate, error)
	MarkSkipped(ctx context.Context, id, reason string) error
	MarkDone(ctx context.Context, id string, publishedAt time.Time) error
	RecordFailure(ctx context.Context, id, msg string) error
}

type ConfigStore interface {
	GetAutoPublishConfig(ctx context.Context, tenantID string) (autopublish.Config, error)
}

type CredentialProvider interface {
	AccessToken(ctx context.Context, tenantID string) (string, error)
}

type TargetResolver interface {
	ResolveTargets(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error)
}

type ReplyPublisher interface {
	PutReply(ctx context.Context, accessToken, target, comment string) error
}

// Orchestrator drives one batch of candidates through the gates, one
// goroutine per tenant.
type Orchestrator struct {
	Drafts  DraftStore
	Configs ConfigStore
	Creds   CredentialProvider
	Targets TargetResolver
	Replies ReplyPublisher
	Events  events.Publisher

	Window       autopublish.Window
	Workers      int
	CallTimeout  time.Duration
	WriteTimeout time.Duration

	Log   logrus.FieldLogger
	Clock func() time.Time
}

type batch struct {
	runID  string
	dryRun bool
	// soft is done once the run deadline passes; no new tenant or candidate
	// starts after that, but in-flight calls keep the parent context.
	soft context.Context
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// DefaultWriteTimeout bounds a state write made after the run context is gone.
const DefaultWriteTimeout = 10 * time.Second

// writeCtx detaches a state write from the run's cancellation. Once a reply
// is live, or a draft is decided, the record must land even if the trigger
// caller went away.
func (o *Orchestrator) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := o.WriteTimeout
	if d <= 0 {
		d = DefaultWriteTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.CallTimeout)
}

// Partition groups candidates by tenant, oldest draft first within each
// group. Tenant ids are returned sorted for stable reports.
func Partition(cands []autopublish.Candidate) ([]string, map[string][]autopublish.Candidate) {
	groups := make(map[string][]autopublish.Candidate)
	for _, c := range cands {
		groups[c.TenantID] = append(groups[c.TenantID], c)
	}
	ids := make([]string, 0, len(groups))
	for id, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].DraftCreatedAt.Before(g[j].DraftCreatedAt) })
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, groups
}

// Process runs every tenant sub-batch and merges their reports. It never
// fails: errors are counted per candidate or per tenant.
func (o *Orchestrator) Process(ctx context.Context, b batch, cands []autopublish.Candidate) ([]TenantReport, Counts) {
	ids, groups := Partition(cands)
	reports := make([]TenantReport, len(ids))

	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			reports[i] = o.processTenant(ctx, b, id, groups[id])
			return nil
		})
	}
	_ = g.Wait()

	var totals Counts
	for _, r := range reports {
		totals.add(r.Counts)
	}
	return reports, totals
}

func (o *Orchestrator) processTenant(ctx context.Context, b batch, tenantID string, cands []autopublish.Candidate) (rep TenantReport) {
	log := o.Log.WithFields(logrus.Fields{"run_id": b.runID, "tenant_id": tenantID})
	rep = TenantReport{TenantID: tenantID, Mode: autopublish.ModeManual}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("tenant sub-batch panicked; remaining drafts stay pending")
			rep.Error = fmt.Sprintf("panic: %v", r)
			// candidates not yet accounted for count as errors
			rep.Errored += len(cands) - rep.Considered
			rep.Considered = len(cands)
		}
	}()

	if b.soft.Err() != nil {
		rep.Partial = true
		rep.Deferred = len(cands)
		log.WithField("candidates", len(cands)).Info("run deadline reached before tenant started")
		return rep
	}

	cfg, err := o.Configs.GetAutoPublishConfig(ctx, tenantID)
	if err != nil {
		// an unreadable config is treated like manual, but surfaced
		log.WithError(err).Warn("tenant config lookup failed; treating as manual")
		rep.Error = "config: " + err.Error()
		cfg = autopublish.Manual
	}
	rep.Mode = cfg.Mode

	if cfg.Mode == autopublish.ModeManual {
		rep.Considered = len(cands)
		rep.Deferred = len(cands)
		log.WithField("candidates", len(cands)).Debug("tenant is manual; drafts left for a human")
		return rep
	}

	ids := make([]string, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if c.ReviewExternalID != "" && !seen[c.ReviewExternalID] {
			seen[c.ReviewExternalID] = true
			ids = append(ids, c.ReviewExternalID)
		}
	}
	cctx, cancel := o.callCtx(ctx)
	targets, err := o.Targets.ResolveTargets(cctx, tenantID, ids)
	cancel()
	if err != nil {
		rep.Considered = len(cands)
		rep.Errored = len(cands)
		rep.Error = "targets: " + err.Error()
		log.WithError(err).Warn("target lookup failed; sub-batch not attempted")
		return rep
	}

	cred := &lazyCredential{fetch: func() (string, error) {
		cctx, cancel := o.callCtx(ctx)
		defer cancel()
		return o.Creds.AccessToken(cctx, tenantID)
	}}

	for i, c := range cands {
		if b.soft.Err() != nil || ctx.Err() != nil {
			rep.Partial = true
			rep.Deferred += len(cands) - i
			log.WithField("remaining", len(cands)-i).Info("run deadline reached; leaving remaining drafts pending")
			break
		}
		rep.Considered++
		out := o.processCandidate(ctx, b, log, cfg, cred, targets, c)
		switch out := out.(type) {
		case autopublish.Done:
			rep.Published++
		case autopublish.Skipped:
			rep.Skipped++
		case autopublish.Retry:
			rep.Deferred++
		case autopublish.Failed:
			rep.Errored++
		default:
			panic(fmt.Sprintf("unhandled outcome %T", out))
		}
	}

	if cred.err != nil {
		rep.Error = "credential: " + cred.err.Error()
		entry := log.WithError(cred.err)
		if errors.Is(cred.err, internaltypes.ErrNoCredential) {
			entry.Warn("tenant has no platform credential; publishable drafts not attempted")
		} else {
			entry.Warn("credential resolution failed; publishable drafts not attempted")
		}
	}
	return rep
}

// lazyCredential fetches the tenant's access token on first use and reuses
// the result, success or failure, for the rest of the sub-batch. Drafts that
// a gate ends never need it, so they are decided even when the credential is
// broken.
type lazyCredential struct {
	fetch func() (string, error)
	done  bool
	token string
	err   error
}

func (l *lazyCredential) get() (string, error) {
	if !l.done {
		l.done = true
		l.token, l.err = l.fetch()
	}
	return l.token, l.err
}

// processCandidate decides, publishes and persists one draft. The returned
// outcome is what the report counts.
func (o *Orchestrator) processCandidate(ctx context.Context, b batch, tlog logrus.FieldLogger, cfg autopublish.Config, cred *lazyCredential, targets map[string]string, c autopublish.Candidate) (out autopublish.Outcome) {
	log := tlog.WithField("draft_id", c.DraftID)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("draft processing panicked; left pending")
			out = autopublish.Failed{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	now := o.now()
	target, out := autopublish.Gate(o.Window, cfg, now, c, targets)

	switch v := out.(type) {
	case autopublish.Retry:
		log.WithField("reason", v.Reason).Debug("draft not ready; stays pending")
		return out
	case autopublish.Skipped:
		return o.skip(ctx, b, log, c, v)
	}

	if b.dryRun {
		log.WithField("target", target).Info("dry run: would publish")
		return autopublish.Done{PublishedAt: now}
	}

	token, err := cred.get()
	if err != nil {
		return autopublish.Failed{Err: err}
	}

	cctx, cancel := o.callCtx(ctx)
	err = o.Replies.PutReply(cctx, token, target, replytext.Plain(c.Content))
	cancel()
	if err != nil {
		log.WithError(err).Warn("publish failed; draft stays pending for next run")
		wctx, wcancel := o.writeCtx(ctx)
		rerr := o.Drafts.RecordFailure(wctx, c.DraftID, err.Error())
		wcancel()
		if rerr != nil {
			log.WithError(rerr).Warn("could not record publish failure")
		}
		return autopublish.Failed{Err: err}
	}

	publishedAt := o.now()
	wctx, wcancel := o.writeCtx(ctx)
	err = o.Drafts.MarkDone(wctx, c.DraftID, publishedAt)
	wcancel()
	if err != nil {
		if gone(err) {
			log.Info("draft was transitioned by another run after publishing")
			return autopublish.Done{PublishedAt: publishedAt}
		}
		// the reply is live but not recorded; the next run re-sends it and the
		// platform replaces the existing reply
		log.WithError(err).Error("reply published but state update failed")
		return autopublish.Failed{Err: err}
	}
	log.WithField("target", target).Info("reply published")

	if o.Events != nil {
		env := events.NewEnvelope(events.KeyReplyPublished, b.runID, events.ReplyPublished{
			DraftID:          c.DraftID,
			TenantID:         c.TenantID,
			ReviewExternalID: c.ReviewExternalID,
			PublishedAt:      publishedAt,
		})
		ectx, ecancel := o.writeCtx(ctx)
		err := o.Events.Publish(ectx, events.KeyReplyPublished, env)
		ecancel()
		if err != nil {
			log.WithError(err).Warn("could not emit published event")
		}
	}
	return autopublish.Done{PublishedAt: publishedAt}
}

func (o *Orchestrator) skip(ctx context.Context, b batch, log logrus.FieldLogger, c autopublish.Candidate, s autopublish.Skipped) autopublish.Outcome {
	entry := log.WithField("reason", s.Reason)
	switch s.Reason {
	case autopublish.ReasonNotEligible, autopublish.ReasonReviewStale:
		entry.Debug("draft skipped")
	default:
		entry.Info("draft skipped: missing data")
	}
	if b.dryRun {
		return s
	}
	wctx, cancel := o.writeCtx(ctx)
	defer cancel()
	if err := o.Drafts.MarkSkipped(wctx, c.DraftID, s.Reason); err != nil {
		if gone(err) {
			entry.Debug("draft already transitioned")
			return s
		}
		entry.WithError(err).Warn("could not mark draft skipped; stays pending")
		return autopublish.Failed{Err: err}
	}
	return s
}

// gone reports a transition that found no pending draft to move: another run
// decided it, or it was deleted.
func gone(err error) bool {
	return errors.Is(err, internaltypes.ErrAlreadyTransitioned) || errors.Is(err, internaltypes.ErrNotFound)
}
