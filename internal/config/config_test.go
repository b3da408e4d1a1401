package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxCandidates, ClampLimit(0))
	assert.Equal(t, DefaultMaxCandidates, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxCandidatesCeiling, ClampLimit(MaxCandidatesCeiling))
	assert.Equal(t, MaxCandidatesCeiling, ClampLimit(5000))
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 50, cfg.MaxCandidates)
	assert.Equal(t, 10*time.Minute, cfg.MinDraftAge())
	assert.Equal(t, 24*time.Hour, cfg.MaxReviewAge())
	assert.Equal(t, 8, cfg.AllowedFromHour)
	assert.Equal(t, 24, cfg.AllowedToHour)
	assert.True(t, cfg.RunLock)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Error(t, cfg.RequireCredEncKey())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("MAX_CANDIDATES", "900")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CRED_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, MaxCandidatesCeiling, cfg.MaxCandidates)
	assert.NoError(t, cfg.RequireCredEncKey())
	assert.Len(t, cfg.CredEncKey, 32)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CRED_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 12)))
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnvReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, writeFile(path, "WORKERS=9\nTIMEZONE=UTC\n"))
	t.Setenv("ENV_FILE", path)
	// register cleanup, then unset so godotenv is free to fill them in
	for _, k := range []string{"WORKERS", "TIMEZONE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
