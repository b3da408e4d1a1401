package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/crypto"
	"github.com/example/review-autopublisher/internal/db"
	"github.com/example/review-autopublisher/internal/internaltypes"
)

type Repo struct {
	db   *db.DB
	aead *crypto.AEAD
}

// NewRepo builds the tenant store. aead may be nil for callers that never
// touch stored credentials.
func NewRepo(d *db.DB, aead *crypto.AEAD) *Repo { return &Repo{db: d, aead: aead} }

// GetAutoPublishConfig returns the tenant's parsed policy. Unknown tenants and
// unreadable blobs are manual.
func (r *Repo) GetAutoPublishConfig(ctx context.Context, tenantID string) (autopublish.Config, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT auto_publish_config FROM tenants WHERE id=$1`, tenantID).Scan(&raw)
	if err != nil {
		if db.IsNotFound(err) {
			return autopublish.Manual, nil
		}
		return autopublish.Manual, fmt.Errorf("tenant config %s: %w", tenantID, err)
	}
	return autopublish.ParseConfig(raw), nil
}

func (r *Repo) SetAutoPublishMode(ctx context.Context, tenantID string, mode autopublish.Mode) error {
	return r.db.Exec(ctx, `
INSERT INTO tenants (id, auto_publish_config) VALUES ($1, jsonb_build_object('mode', $2::text))
ON CONFLICT (id) DO UPDATE
SET auto_publish_config = COALESCE(tenants.auto_publish_config, '{}'::jsonb) || jsonb_build_object('mode', $2::text),
    updated_at = now()`, tenantID, string(mode))
}

func (r *Repo) SaveRefreshToken(ctx context.Context, tenantID, token string) error {
	if r.aead == nil {
		return errors.New("tenants: credential encryption key not configured")
	}
	enc, err := r.aead.EncryptToString(token, tenantID)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO platform_credentials (tenant_id, refresh_token_enc) VALUES ($1, $2)
ON CONFLICT (tenant_id) DO UPDATE SET refresh_token_enc=$2, updated_at=now()`, tenantID, enc)
}

// RefreshToken returns the decrypted platform refresh token, or
// ErrNoCredential when none is stored.
func (r *Repo) RefreshToken(ctx context.Context, tenantID string) (string, error) {
	if r.aead == nil {
		return "", errors.New("tenants: credential encryption key not configured")
	}
	var enc string
	err := r.db.QueryRow(ctx, `SELECT refresh_token_enc FROM platform_credentials WHERE tenant_id=$1`, tenantID).Scan(&enc)
	if err != nil {
		if db.IsNotFound(err) {
			return "", internaltypes.ErrNoCredential
		}
		return "", err
	}
	tok, err := r.aead.DecryptString(enc, tenantID)
	if err != nil {
		return "", fmt.Errorf("decrypt credential for %s: %w", tenantID, err)
	}
	return tok, nil
}
