package publisher

import (
	"time"

	"github.com/example/review-autopublisher/internal/autopublish"
)

// Run-level reason codes for a run that did no per-tenant work.
const (
	ReasonOutsideHours  = "outside_allowed_hours"
	ReasonRunInProgress = "run_in_progress"
)

// Counts are per-candidate tallies. Deferred drafts were left pending without
// an error: not matured yet, manual tenant, or the run deadline passed.
type Counts struct {
	Considered int `json:"considered"`
	Published  int `json:"published"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
	Deferred   int `json:"deferred"`
}

func (c *Counts) add(o Counts) {
	c.Considered += o.Considered
	c.Published += o.Published
	c.Skipped += o.Skipped
	c.Errored += o.Errored
	c.Deferred += o.Deferred
}

type TenantReport struct {
	TenantID string           `json:"tenantId"`
	Mode     autopublish.Mode `json:"mode"`
	Counts
	// Partial is set when the run deadline stopped this tenant early.
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	RunID      string         `json:"runId"`
	Skipped    bool           `json:"skipped"`
	Reason     string         `json:"reason,omitempty"`
	DryRun     bool           `json:"dryRun,omitempty"`
	Partial    bool           `json:"partial,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Totals     Counts         `json:"totals"`
	Tenants    []TenantReport `json:"tenants"`
}
