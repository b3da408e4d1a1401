package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/review-autopublisher/internal/internaltypes"
)

// DefaultTokenTTL is also the hard upper bound enforced on verification.
const DefaultTokenTTL = 365 * 24 * time.Hour

const tokenName = "autopub_trigger"

type ctxKey string

const callerKey ctxKey = "caller"

// Store issues and verifies trigger tokens for callers of the run endpoint
// (an external cron, a cloud scheduler job).
type Store struct {
	sc  *securecookie.SecureCookie
	ttl time.Duration
	now func() time.Time
}

func NewStore(hashKey, blockKey []byte, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl.Seconds()))
	return &Store{sc: sc, ttl: ttl, now: time.Now}
}

type claims struct {
	Caller   string `json:"c"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
	V        int    `json:"v"`
}

func (s *Store) IssueTriggerToken(caller string) (string, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return "", fmt.Errorf("caller name is required")
	}
	now := s.now()
	return s.sc.Encode(tokenName, claims{Caller: caller, IssuedAt: now.Unix(), Expires: now.Add(s.ttl).Unix(), V: 1})
}

// VerifyTriggerToken returns the caller name the token was issued to.
func (s *Store) VerifyTriggerToken(token string) (string, error) {
	var c claims
	if err := s.sc.Decode(tokenName, token, &c); err != nil {
		return "", fmt.Errorf("%w: %v", internaltypes.ErrUnauthorized, err)
	}
	if c.V != 1 || c.Caller == "" {
		return "", internaltypes.ErrUnauthorized
	}
	if c.Expires > 0 && !s.now().Before(time.Unix(c.Expires, 0)) {
		return "", fmt.Errorf("%w: token expired", internaltypes.ErrUnauthorized)
	}
	return c.Caller, nil
}

// RequireTrigger rejects requests without a valid "Authorization: Bearer" token.
func (s *Store) RequireTrigger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		caller, err := s.VerifyTriggerToken(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func CallerFromContext(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey).(string)
	return c, ok
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
