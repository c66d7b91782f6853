package cache

import (
	"sync/atomic"
	"time"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/auth"
)

const (
	// DefaultTokenTTL bounds how long a token is reused regardless of its claims
	DefaultTokenTTL = 15 * time.Minute
	// DefaultTokenSafetyMargin is subtracted from the token's own expiry
	DefaultTokenSafetyMargin = 2 * time.Minute
)

// cachedToken is replaced as a whole; it is never mutated after creation
type cachedToken struct {
	token       string
	owner       invoicing.Credential
	cacheExpiry time.Time
	claimExpiry time.Time
	expiresAt   time.Time
}

// TokenCache holds the provider token of the most recent credential.
// Only one token is retained; storing a token for another credential evicts
// the previous one.
type TokenCache struct {
	current      atomic.Pointer[cachedToken]
	ttl          time.Duration
	safetyMargin time.Duration
	clock        Clock
}

// NewTokenCache creates a token cache. A non-positive ttl or a negative
// safety margin falls back to the defaults.
func NewTokenCache(ttl, safetyMargin time.Duration, clock Clock) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if safetyMargin < 0 {
		safetyMargin = DefaultTokenSafetyMargin
	}
	return &TokenCache{
		ttl:          ttl,
		safetyMargin: safetyMargin,
		clock:        clock,
	}
}

// Get returns the cached token for cred. A miss caused by a foreign owner or
// an expired entry clears the cache.
func (c *TokenCache) Get(cred invoicing.Credential) (string, bool) {
	entry := c.current.Load()
	if entry == nil {
		return "", false
	}
	if !entry.owner.Equal(cred) || !c.clock.Now().Before(entry.expiresAt) {
		c.current.CompareAndSwap(entry, nil)
		return "", false
	}
	return entry.token, true
}

// Set stores token for cred. The entry expires at the earlier of now+ttl and
// the token's exp claim minus the safety margin.
func (c *TokenCache) Set(cred invoicing.Credential, token string) time.Time {
	now := c.clock.Now()
	entry := &cachedToken{
		token:       token,
		owner:       cred,
		cacheExpiry: now.Add(c.ttl),
	}
	entry.expiresAt = entry.cacheExpiry

	if exp, ok := auth.ClaimExpiry(token); ok {
		entry.claimExpiry = exp
		if adjusted := exp.Add(-c.safetyMargin); adjusted.Before(entry.expiresAt) {
			entry.expiresAt = adjusted
		}
	}

	c.current.Store(entry)
	return entry.expiresAt
}

// Clear drops the cached token unconditionally
func (c *TokenCache) Clear() {
	c.current.Store(nil)
}
