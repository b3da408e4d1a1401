package gbp

import (
	"context"
	"fmt"
)

// RefreshTokenStore yields the stored long-lived credential of a tenant.
type RefreshTokenStore interface {
	RefreshToken(ctx context.Context, tenantID string) (string, error)
}

// TokenSource resolves a short-lived access token per tenant. Callers fetch
// once per tenant per run and reuse it for the whole sub-batch.
type TokenSource struct {
	Client       *Client
	Store        RefreshTokenStore
	TokenURL     string
	ClientID     string
	ClientSecret string
}

func (s *TokenSource) AccessToken(ctx context.Context, tenantID string) (string, error) {
	rt, err := s.Store.RefreshToken(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	return s.Client.ExchangeRefreshToken(ctx, s.TokenURL, s.ClientID, s.ClientSecret, rt)
}
