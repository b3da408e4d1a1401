package autopublish

import (
	"strings"
	"time"
)

// Candidate is everything the gates need to know about one draft.
type Candidate struct {
	DraftID               string
	TenantID              string
	Content               string
	DraftCreatedAt        time.Time
	Rating                *int
	ReviewExternalID      string
	ReviewCreatedExternal *time.Time
}

// Gate runs the pre-publication checks in order: minimum delay, review age,
// rating eligibility, external id, resolved target, then non-empty content. It returns the target to
// publish to when every check passes, or the Outcome that ends processing.
func Gate(w Window, cfg Config, now time.Time, c Candidate, targets map[string]string) (string, Outcome) {
	switch w.CheckTiming(now, c.DraftCreatedAt, c.ReviewCreatedExternal) {
	case TimingTooEarly:
		return "", Retry{Reason: ReasonTooEarly}
	case TimingReviewAgeUnknown:
		return "", Skipped{Reason: ReasonReviewAgeUnknown}
	case TimingStale:
		return "", Skipped{Reason: ReasonReviewStale}
	}
	if !Eligible(cfg, c.Rating) {
		return "", Skipped{Reason: ReasonNotEligible}
	}
	if c.ReviewExternalID == "" {
		return "", Skipped{Reason: ReasonNoExternalID}
	}
	target, ok := targets[c.ReviewExternalID]
	if !ok || target == "" {
		return "", Skipped{Reason: ReasonNoTarget}
	}
	if strings.TrimSpace(c.Content) == "" {
		return "", Skipped{Reason: ReasonEmptyContent}
	}
	return target, nil
}
