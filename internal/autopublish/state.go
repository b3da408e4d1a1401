package autopublish

import (
	"fmt"
	"time"
)

// Status is the publication lifecycle of a draft reply.
type Status string

const (
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
	StatusDone    Status = "done"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSkipped, StatusDone:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown publication status %q", s)
}

// Terminal reports whether no automatic transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped
}

// CanTransition allows only pending -> skipped and pending -> done.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Sources lists the statuses a draft may be in for a move to to succeed.
// Store updates are guarded on exactly this set.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusSkipped, StatusDone} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Reason codes recorded on skipped drafts and reported to operators.
const (
	ReasonTooEarly         = "draft_too_recent"
	ReasonReviewStale      = "review_too_old"
	ReasonReviewAgeUnknown = "review_age_unknown"
	ReasonNotEligible      = "policy_not_eligible"
	ReasonNoExternalID     = "missing_external_id"
	ReasonNoTarget         = "target_unresolved"
	ReasonEmptyContent     = "empty_content"
)

// Outcome is the result of processing one candidate. Exactly one of the
// concrete types below is produced; callers switch on it exhaustively.
type Outcome interface {
	// Next is the status the draft must hold once the outcome is applied.
	Next() Status
	outcome()
}

// Retry leaves the draft pending without counting a failure.
type Retry struct{ Reason string }

// Skipped is terminal: the draft will never be auto-published.
type Skipped struct{ Reason string }

// Done is terminal: the reply is live on the platform.
type Done struct{ PublishedAt time.Time }

// Failed is a transient publish failure; the draft stays pending and the run
// counts an error.
type Failed struct{ Err error }

func (Retry) Next() Status   { return StatusPending }
func (Skipped) Next() Status { return StatusSkipped }
func (Done) Next() Status    { return StatusDone }
func (Failed) Next() Status  { return StatusPending }

func (Retry) outcome()   {}
func (Skipped) outcome() {}
func (Done) outcome()    {}
func (Failed) outcome()  {}
