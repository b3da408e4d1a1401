package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/db"
	"github.com/example/review-autopublisher/internal/internaltypes"
)

// Draft is a stored reply as shown to operators.
type Draft struct {
	ID            string
	ReviewID      string
	TenantID      string
	Status        autopublish.Status
	Published     bool
	PublishedAt   *time.Time
	SkipReason    *string
	AttemptCount  int
	LastAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// The mode pre-filter only narrows the batch so manual tenants cannot starve
// it; the authoritative policy decision is still made in Go.
const loadPendingSQL = `
SELECT d.id, r.tenant_id, d.content, d.created_at, r.rating, COALESCE(r.external_id, ''), r.created_at_external
FROM draft_replies d
JOIN reviews r ON r.id = d.review_id
JOIN tenants t ON t.id = r.tenant_id
WHERE d.publication_status = 'pending'
  AND d.published = false
  AND lower(trim(COALESCE(t.auto_publish_config->>'mode', ''))) IN ('positives', 'mixed')
  AND ($1 = '' OR r.tenant_id = $1)
ORDER BY d.created_at ASC, d.id ASC
LIMIT $2`

// LoadPending returns up to limit pending drafts, oldest first, optionally
// restricted to one tenant.
func (r *Repo) LoadPending(ctx context.Context, tenantID string, limit int) ([]autopublish.Candidate, error) {
	rows, err := r.db.Query(ctx, loadPendingSQL, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []autopublish.Candidate
	for rows.Next() {
		var c autopublish.Candidate
		if err := rows.Scan(&c.DraftID, &c.TenantID, &c.Content, &c.DraftCreatedAt, &c.Rating, &c.ReviewExternalID, &c.ReviewCreatedExternal); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkSkipped moves a pending draft to skipped. A draft that is no longer
// pending is left alone and ErrAlreadyTransitioned is returned.
func (r *Repo) MarkSkipped(ctx context.Context, id, reason string) error {
	return r.transition(ctx, id, autopublish.StatusSkipped, `
UPDATE draft_replies
SET publication_status=$3, skip_reason=$4, updated_at=now()
WHERE id=$1 AND publication_status = ANY($2)`, reason)
}

// MarkDone records a confirmed publication; status, published and
// published_at change in the same statement.
func (r *Repo) MarkDone(ctx context.Context, id string, publishedAt time.Time) error {
	return r.transition(ctx, id, autopublish.StatusDone, `
UPDATE draft_replies
SET publication_status=$3, published=true, published_at=$4, last_error=NULL, updated_at=now()
WHERE id=$1 AND publication_status = ANY($2)`, publishedAt)
}

// transition runs an UPDATE guarded on the statuses allowed to move to to.
// sql takes $1 id, $2 allowed sources, $3 target status, then args.
func (r *Repo) transition(ctx context.Context, id string, to autopublish.Status, sql string, args ...any) error {
	sources := autopublish.Sources(to)
	if len(sources) == 0 {
		return fmt.Errorf("no transition leads to %s", to)
	}
	from := make([]string, len(sources))
	for i, st := range sources {
		from[i] = string(st)
	}

	n, err := r.db.ExecCount(ctx, sql, append([]any{id, from, string(to)}, args...)...)
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", to, id, err)
	}
	if n > 0 {
		return nil
	}
	var current string
	if err := r.db.QueryRow(ctx, `SELECT publication_status FROM draft_replies WHERE id=$1`, id).Scan(&current); err != nil {
		if db.IsNotFound(err) {
			return internaltypes.ErrNotFound
		}
		return fmt.Errorf("mark %s %s: %w", to, id, err)
	}
	return internaltypes.ErrAlreadyTransitioned
}

// RecordFailure notes a transient publish failure; the draft stays pending.
func (r *Repo) RecordFailure(ctx context.Context, id, msg string) error {
	return r.db.Exec(ctx, `
UPDATE draft_replies
SET attempt_count=attempt_count+1, last_attempt_at=now(), last_error=$2, updated_at=now()
WHERE id=$1 AND publication_status='pending'`, id, msg)
}

// List is for operators; status may be empty for all statuses.
func (r *Repo) List(ctx context.Context, tenantID string, status autopublish.Status, limit int) ([]Draft, error) {
	rows, err := r.db.Query(ctx, `
SELECT d.id, d.review_id, r.tenant_id, d.publication_status, d.published, d.published_at, d.skip_reason,
       d.attempt_count, d.last_attempt_at, d.last_error, d.created_at
FROM draft_replies d
JOIN reviews r ON r.id = d.review_id
WHERE ($1 = '' OR r.tenant_id = $1)
  AND ($2 = '' OR d.publication_status = $2)
ORDER BY d.created_at DESC
LIMIT $3`, tenantID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var d Draft
		var status string
		if err := rows.Scan(&d.ID, &d.ReviewID, &d.TenantID, &status, &d.Published, &d.PublishedAt, &d.SkipReason,
			&d.AttemptCount, &d.LastAttemptAt, &d.LastError, &d.CreatedAt); err != nil {
			return nil, err
		}
		if d.Status, err = autopublish.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
