package okta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/config"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// Verifier validates RS256 bearer tokens: signature against the cached JWKS,
// issuer, audience, and expiry. Scopes come from the space-separated "scp"
// or "scope" claim.
type Verifier struct {
	issuer   string
	audience string
	cache    *JWKSCache
	now      func() time.Time
}

// NewVerifier builds a Verifier from config with a fresh JWKS cache.
func NewVerifier(cfg config.Config) *Verifier {
	return &Verifier{
		issuer:   cfg.OktaIssuer,
		audience: cfg.OktaAudience,
		cache:    NewJWKSCache(cfg.OktaIssuer, cfg.JWKSCacheTTL, nil, nil),
		now:      time.Now,
	}
}

// NewVerifierWithCache injects the cache and clock, for tests.
func NewVerifierWithCache(issuer, audience string, cache *JWKSCache, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{issuer: issuer, audience: audience, cache: cache, now: now}
}

type oktaClaims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	Scp    any    `json:"scp"`
	Scope  string `json:"scope"`
}

// Verify parses and validates the raw token and returns the caller principal.
func (v *Verifier) Verify(ctx context.Context, raw string) (domain.Principal, error) {
	var claims oktaClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token missing kid header", domain.ErrUnauthorized)
		}
		return v.cache.KeyFor(ctx, kid)
	})
	if err != nil {
		// JWKS unavailability is a 503, not a caller error.
		if errors.Is(err, domain.ErrAuthUnavailable) {
			return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, err)
		}
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	sub := claims.Subject
	if sub == "" {
		return domain.Principal{}, fmt.Errorf("%w: token missing subject", domain.ErrUnauthorized)
	}
	return domain.Principal{Subject: sub, Email: claims.Email, Scopes: claims.scopes()}, nil
}

// scopes normalizes the two common claim layouts: "scp" as a string array
// (Okta) and "scope" as one space-separated string (RFC 8693 style).
func (c oktaClaims) scopes() []string {
	switch v := c.Scp.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if v != "" {
			return strings.Fields(v)
		}
	}
	if c.Scope != "" {
		return strings.Fields(c.Scope)
	}
	return nil
}
