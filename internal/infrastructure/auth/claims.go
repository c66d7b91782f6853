package auth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TenantClaimKeys lists the claims that may carry the provider tenant id, in priority order
var TenantClaimKeys = []string{"partner_id", "tenant_id", "subscription_id", "tid"}

var unverifiedParser = jwt.NewParser(jwt.WithPaddingAllowed())

// UnverifiedClaims decodes the payload segment of a provider token WITHOUT
// checking its signature. The provider owns the signing key, so the result is
// an untrusted hint: it may drive cache expiry and header values, never an
// authorization decision.
func UnverifiedClaims(token string) (jwt.MapClaims, bool) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// ClaimExpiry returns the exp claim of token, if any
func ClaimExpiry(token string) (time.Time, bool) {
	claims, ok := UnverifiedClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TenantClaim returns the first non-empty tenant claim of token
func TenantClaim(token string) (string, bool) {
	claims, ok := UnverifiedClaims(token)
	if !ok {
		return "", false
	}
	for _, key := range TenantClaimKeys {
		if v := claimString(claims[key]); v != "" {
			return v, true
		}
	}
	return "", false
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
