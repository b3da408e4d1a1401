package autopublish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate(t *testing.T) {
	w := DefaultWindow(time.UTC)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reviewAt := now.Add(-2 * time.Hour)
	staleAt := now.Add(-30 * time.Hour)
	targets := map[string]string{"rev-1": "accounts/1/locations/2/reviews/rev-1"}

	base := Candidate{
		DraftID:               "d1",
		TenantID:              "t1",
		Content:               "Thanks!",
		DraftCreatedAt:        now.Add(-15 * time.Minute),
		Rating:                intp(5),
		ReviewExternalID:      "rev-1",
		ReviewCreatedExternal: &reviewAt,
	}
	positives := Config{Mode: ModePositives}
	mixed := Config{Mode: ModeMixed}

	target, out := Gate(w, positives, now, base, targets)
	assert.Nil(t, out)
	assert.Equal(t, "accounts/1/locations/2/reviews/rev-1", target)

	c := base
	c.Rating = intp(2)
	_, out = Gate(w, mixed, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonNotEligible}, out)

	c = base
	c.Rating = intp(4)
	c.DraftCreatedAt = now.Add(-3 * time.Minute)
	_, out = Gate(w, mixed, now, c, targets)
	assert.Equal(t, Retry{Reason: ReasonTooEarly}, out)
	assert.Equal(t, StatusPending, out.Next())

	c = base
	c.ReviewCreatedExternal = &staleAt
	_, out = Gate(w, mixed, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonReviewStale}, out)

	c = base
	c.ReviewCreatedExternal = nil
	_, out = Gate(w, positives, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonReviewAgeUnknown}, out)

	c = base
	c.ReviewExternalID = ""
	_, out = Gate(w, positives, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonNoExternalID}, out)

	c = base
	c.ReviewExternalID = "rev-unsynced"
	_, out = Gate(w, positives, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonNoTarget}, out)
	assert.Equal(t, StatusSkipped, out.Next())

	c = base
	c.Content = "  \n "
	_, out = Gate(w, positives, now, c, targets)
	assert.Equal(t, Skipped{Reason: ReasonEmptyContent}, out)
}

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusSkipped, StatusDone}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	_, err := ParseStatus("published")
	assert.Error(t, err)
	s, err := ParseStatus("done")
	assert.NoError(t, err)
	assert.True(t, s.Terminal())
}

func TestSources(t *testing.T) {
	assert.Equal(t, []Status{StatusPending}, Sources(StatusDone))
	assert.Equal(t, []Status{StatusPending}, Sources(StatusSkipped))
	assert.Empty(t, Sources(StatusPending))
}
