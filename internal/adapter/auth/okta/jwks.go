// Package okta verifies inbound bearer tokens against an OIDC identity
// provider. The provider's JSON Web Key Set is fetched once and cached for a
// configurable TTL.
package okta

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// JWKSCache fetches and caches the identity provider's signing keys.
// The clock is injected so expiry is deterministic under test.
type JWKSCache struct {
	url string
	ttl time.Duration
	hc  *http.Client
	now func() time.Time

	mu     sync.RWMutex
	keys   map[string]*rsa.PublicKey
	expiry time.Time
}

// NewJWKSCache builds a cache for {issuer}/.well-known/jwks.json with the
// given TTL. A nil now function defaults to time.Now.
func NewJWKSCache(issuer string, ttl time.Duration, hc *http.Client, now func() time.Time) *JWKSCache {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if now == nil {
		now = time.Now
	}
	return &JWKSCache{
		url: issuer + "/.well-known/jwks.json",
		ttl: ttl,
		hc:  hc,
		now: now,
	}
}

// KeyFor returns the RSA public key for the given key id, refreshing the
// cached key set when the TTL has lapsed.
func (c *JWKSCache) KeyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	if c.keys != nil && c.now().Before(c.expiry) {
		key, ok := c.keys[kid]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: signing key %q not found", domain.ErrUnauthorized, kid)
		}
		return key, nil
	}
	c.mu.RUnlock()

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: signing key %q not found", domain.ErrUnauthorized, kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: jwks fetch: %v", domain.ErrAuthUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: jwks fetch status=%d", domain.ErrAuthUnavailable, resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: jwks decode: %v", domain.ErrAuthUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			slog.Warn("skipping unparseable jwk", slog.String("kid", k.Kid), slog.Any("error", err))
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.expiry = c.now().Add(c.ttl)
	c.mu.Unlock()
	slog.Info("jwks cache updated", slog.String("url", c.url), slog.Int("keys", len(keys)))
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e <= 0 {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
