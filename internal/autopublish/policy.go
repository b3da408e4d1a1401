package autopublish

import (
	"encoding/json"
	"strings"
)

// Mode is a tenant's auto-publication policy.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModePositives Mode = "positives"
	ModeMixed     Mode = "mixed"
)

// Config is the typed form of a tenant's auto-publish settings.
type Config struct {
	Mode Mode
}

// Manual is the configuration every unreadable blob collapses to.
var Manual = Config{Mode: ModeManual}

type rawConfig struct {
	Mode    *string `json:"mode"`
	Enabled *bool   `json:"enabled"`
}

// ParseMode maps a stored mode string onto a Mode. Anything unrecognised is manual.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePositives:
		return ModePositives
	case ModeMixed:
		return ModeMixed
	default:
		return ModeManual
	}
}

// ParseConfig reads the raw JSON blob stored for a tenant. It never fails:
// empty, null, malformed or unknown shapes all yield Manual.
func ParseConfig(raw []byte) Config {
	if len(raw) == 0 {
		return Manual
	}
	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Manual
	}
	// older rows only carry an on/off switch; "off" is the only safe reading
	if rc.Enabled != nil && !*rc.Enabled {
		return Manual
	}
	if rc.Mode == nil {
		return Manual
	}
	return Config{Mode: ParseMode(*rc.Mode)}
}

// ValidRating reports whether rating is a usable 1..5 star value.
func ValidRating(rating *int) bool {
	return rating != nil && *rating >= 1 && *rating <= 5
}

// Eligible reports whether policy allows auto-publishing a reply to a review
// with the given rating. Timing is not considered here.
func Eligible(cfg Config, rating *int) bool {
	if !ValidRating(rating) {
		return false
	}
	switch cfg.Mode {
	case ModePositives:
		return *rating >= 4
	case ModeMixed:
		// 1 and 2 stars always go to a human
		return *rating >= 3
	default:
		return false
	}
}
