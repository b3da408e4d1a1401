package publisher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/events"
	"github.com/example/review-autopublisher/internal/internaltypes"
)

type storedDraft struct {
	cand        autopublish.Candidate
	status      autopublish.Status
	published   bool
	publishedAt *time.Time
	skipReason  string
	attempts    int
	lastError   string
}

type fakeDrafts struct {
	mu        sync.Mutex
	rows      map[string]*storedDraft
	loads     int
	lastLimit int
	loadErr   error
}

func newFakeDrafts(cands ...autopublish.Candidate) *fakeDrafts {
	f := &fakeDrafts{rows: map[string]*storedDraft{}}
	for _, c := range cands {
		f.rows[c.DraftID] = &storedDraft{cand: c, status: autopublish.StatusPending}
	}
	return f
}

func (f *fakeDrafts) LoadPending(_ context.Context, tenantID string, limit int) ([]autopublish.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.lastLimit = limit
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []autopublish.Candidate
	for _, r := range f.rows {
		if r.status != autopublish.StatusPending {
			continue
		}
		if tenantID != "" && r.cand.TenantID != tenantID {
			continue
		}
		out = append(out, r.cand)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DraftCreatedAt.Before(out[j].DraftCreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDrafts) transition(ctx context.Context, id string, to autopublish.Status, apply func(*storedDraft)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return internaltypes.ErrNotFound
	}
	if !autopublish.CanTransition(r.status, to) {
		return internaltypes.ErrAlreadyTransitioned
	}
	r.status = to
	apply(r)
	return nil
}

func (f *fakeDrafts) MarkSkipped(ctx context.Context, id, reason string) error {
	return f.transition(ctx, id, autopublish.StatusSkipped, func(r *storedDraft) { r.skipReason = reason })
}

func (f *fakeDrafts) MarkDone(ctx context.Context, id string, at time.Time) error {
	return f.transition(ctx, id, autopublish.StatusDone, func(r *storedDraft) {
		r.published = true
		r.publishedAt = &at
	})
}

func (f *fakeDrafts) RecordFailure(ctx context.Context, id, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok && r.status == autopublish.StatusPending {
		r.attempts++
		r.lastError = msg
	}
	return nil
}

func (f *fakeDrafts) get(id string) storedDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

type fakeConfigs map[string]autopublish.Config

func (f fakeConfigs) GetAutoPublishConfig(_ context.Context, tenantID string) (autopublish.Config, error) {
	if cfg, ok := f[tenantID]; ok {
		return cfg, nil
	}
	return autopublish.Manual, nil
}

type fakeCreds struct {
	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
}

func (f *fakeCreds) AccessToken(_ context.Context, tenantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[tenantID]++
	if err := f.fail[tenantID]; err != nil {
		return "", err
	}
	return "token-" + tenantID, nil
}

func (f *fakeCreds) count(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantID]
}

type fakeTargets struct {
	mu      sync.Mutex
	m       map[string]string
	lookups int
	err     error
}

func (f *fakeTargets) ResolveTargets(_ context.Context, _ string, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, id := range ids {
		if t, ok := f.m[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type replyCall struct {
	token, target, comment string
}

type fakeReplies struct {
	mu    sync.Mutex
	calls []replyCall
	fail  map[string]error
	panic map[string]bool
	// afterPut runs after every successful call
	afterPut func()
}

func (f *fakeReplies) PutReply(_ context.Context, token, target, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, replyCall{token: token, target: target, comment: comment})
	if f.panic[target] {
		panic("platform client bug")
	}
	if err := f.fail[target]; err != nil {
		return err
	}
	if f.afterPut != nil {
		f.afterPut()
	}
	return nil
}

func (f *fakeReplies) targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.target)
	}
	return out
}

type fakeEvents struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeEvents) Publish(_ context.Context, key string, _ events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.keys {
		if k == key {
			n++
		}
	}
	return n
}

type fakeLock struct {
	held     bool
	err      error
	released bool
}

func (f *fakeLock) TryLock(context.Context) (bool, func(), error) {
	if f.err != nil {
		return false, nil, f.err
	}
	if f.held {
		return false, nil, nil
	}
	return true, func() { f.released = true }, nil
}

var errTransient = errors.New("connection reset by peer")
