package autopublish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestParseConfig(t *testing.T) {
	cases := map[string]Mode{
		``:                                    ModeManual,
		`null`:                                ModeManual,
		`{`:                                   ModeManual,
		`[]`:                                  ModeManual,
		`{}`:                                  ModeManual,
		`{"mode":"positives"}`:                ModePositives,
		`{"mode":" MIXED "}`:                  ModeMixed,
		`{"mode":"manual"}`:                   ModeManual,
		`{"mode":"everything"}`:               ModeManual,
		`{"mode":42}`:                         ModeManual,
		`{"mode":"mixed","enabled":false}`:    ModeManual,
		`{"mode":"positives","enabled":true}`: ModePositives,
		`{"enabled":true}`:                    ModeManual,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseConfig([]byte(raw)).Mode, "raw=%q", raw)
	}
}

func TestEligibleInvalidRatingNeverPasses(t *testing.T) {
	for _, m := range []Mode{ModeManual, ModePositives, ModeMixed, Mode("junk")} {
		cfg := Config{Mode: m}
		assert.False(t, Eligible(cfg, nil), "mode=%s nil rating", m)
		for _, r := range []int{-1, 0, 6, 10} {
			assert.False(t, Eligible(cfg, intp(r)), "mode=%s rating=%d", m, r)
		}
	}
}

func TestEligibleByMode(t *testing.T) {
	for r := 1; r <= 5; r++ {
		assert.False(t, Eligible(Config{Mode: ModeManual}, intp(r)), "manual rating=%d", r)
		assert.Equal(t, r >= 4, Eligible(Config{Mode: ModePositives}, intp(r)), "positives rating=%d", r)
		assert.Equal(t, r >= 3, Eligible(Config{Mode: ModeMixed}, intp(r)), "mixed rating=%d", r)
		assert.False(t, Eligible(Config{Mode: Mode("junk")}, intp(r)), "junk rating=%d", r)
	}
}
