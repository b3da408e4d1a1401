package autopublish

import "time"

const (
	DefaultFromHour     = 8
	DefaultToHour       = 24
	DefaultMinDraftAge  = 10 * time.Minute
	DefaultMaxReviewAge = 24 * time.Hour
)

// TimingVerdict classifies the per-candidate time checks.
type TimingVerdict int

const (
	TimingOK TimingVerdict = iota
	// TimingTooEarly: the draft has not matured yet; retry on a later run.
	TimingTooEarly
	// TimingStale: the review is older than the age ceiling.
	TimingStale
	// TimingReviewAgeUnknown: the platform-side creation time is missing.
	TimingReviewAgeUnknown
)

func (v TimingVerdict) String() string {
	switch v {
	case TimingOK:
		return "ok"
	case TimingTooEarly:
		return ReasonTooEarly
	case TimingStale:
		return ReasonReviewStale
	case TimingReviewAgeUnknown:
		return ReasonReviewAgeUnknown
	default:
		return "unknown"
	}
}

// Window holds the time-of-day and age limits applied to every run.
// Hours are evaluated in Location, half-open [FromHour, ToHour).
type Window struct {
	FromHour     int
	ToHour       int
	MinDraftAge  time.Duration
	MaxReviewAge time.Duration
	Location     *time.Location
}

func DefaultWindow(loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	return Window{
		FromHour:     DefaultFromHour,
		ToHour:       DefaultToHour,
		MinDraftAge:  DefaultMinDraftAge,
		MaxReviewAge: DefaultMaxReviewAge,
		Location:     loc,
	}
}

// AllowsHour is the global gate checked once per run before any candidate is loaded.
func (w Window) AllowsHour(now time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := now.In(loc).Hour()
	return h >= w.FromHour && h < w.ToHour
}

// CheckTiming applies the minimum draft age and maximum review age. The draft
// age check runs first so a young draft is always left for a later run.
func (w Window) CheckTiming(now, draftCreatedAt time.Time, reviewCreatedExternal *time.Time) TimingVerdict {
	if now.Sub(draftCreatedAt) < w.MinDraftAge {
		return TimingTooEarly
	}
	if reviewCreatedExternal == nil || reviewCreatedExternal.IsZero() {
		return TimingReviewAgeUnknown
	}
	if now.Sub(*reviewCreatedExternal) >= w.MaxReviewAge {
		return TimingStale
	}
	return TimingOK
}
