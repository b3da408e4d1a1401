package targets

import (
	"context"

	"github.com/example/review-autopublisher/internal/db"
)

// Repo reads the mapping from a review's platform id to the resource name a
// reply is submitted to. Rows are written by the review sync job.
type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// ResolveTargets looks up all ids in one query. Ids without a mapping are
// simply absent from the result.
func (r *Repo) ResolveTargets(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
SELECT review_external_id, target
FROM external_review_targets
WHERE tenant_id=$1 AND review_external_id = ANY($2)`, tenantID, externalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, target string
		if err := rows.Scan(&id, &target); err != nil {
			return nil, err
		}
		out[id] = target
	}
	return out, rows.Err()
}

// Put upserts one mapping (operator backfill).
func (r *Repo) Put(ctx context.Context, tenantID, externalID, target string) error {
	return r.db.Exec(ctx, `
INSERT INTO external_review_targets (tenant_id, review_external_id, target) VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, review_external_id) DO UPDATE SET target=$3, synced_at=now()`, tenantID, externalID, target)
}
