package cache

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/google/uuid"
)

// DefaultIdempotencyTTL is how long a submitted invoice is replayed for its key
const DefaultIdempotencyTTL = 10 * time.Minute

var (
	compactKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	tokenKeyPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{10,64}$`)
)

// NormalizeIdempotencyKey canonicalizes a caller supplied key.
// A hyphenated UUID v4 and its 32 character compact form map to the same
// lowercase compact key. Other keys, hyphenated non-v4 UUIDs included, must
// be 10 to 64 characters of [A-Za-z0-9_-]. Anything else is rejected.
func NormalizeIdempotencyKey(raw string) (string, bool) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", false
	}

	if len(key) == 36 && strings.Count(key, "-") == 4 {
		if id, err := uuid.Parse(key); err == nil && id.Version() == 4 {
			return strings.ReplaceAll(id.String(), "-", ""), true
		}
	}

	if compactKeyPattern.MatchString(key) {
		return strings.ToLower(key), true
	}

	if tokenKeyPattern.MatchString(key) {
		return key, true
	}
	return "", false
}

// GenerateIdempotencyKey returns a random compact key: a hyphen-less UUID v4,
// or 24 random bytes in unpadded Base64URL when no UUID can be produced.
func GenerateIdempotencyKey() string {
	if id, err := uuid.NewRandom(); err == nil {
		return strings.ReplaceAll(id.String(), "-", "")
	}
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// IdempotencyStore maps normalized idempotency keys to the invoice produced
// by their first successful submission
type IdempotencyStore struct {
	records *TTLCache[string, invoicing.InvoiceResult]
}

// NewIdempotencyStore creates an idempotency store
func NewIdempotencyStore(ttl time.Duration, clock Clock) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{
		records: NewTTLCache[string, invoicing.InvoiceResult](ttl, TTLCacheOptions{
			CleanupInterval: ttl,
			Clock:           clock,
		}),
	}
}

// Get returns a copy of the result cached for key
func (s *IdempotencyStore) Get(key string) (*invoicing.InvoiceResult, bool) {
	result, ok := s.records.Get(key)
	if !ok {
		return nil, false
	}
	return &result, true
}

// Set caches result under key
func (s *IdempotencyStore) Set(key string, result invoicing.InvoiceResult) {
	s.records.Set(key, result)
}

// Len returns the number of stored records
func (s *IdempotencyStore) Len() int {
	return s.records.Len()
}

// Close stops the background sweep
func (s *IdempotencyStore) Close() error {
	return s.records.Close()
}
