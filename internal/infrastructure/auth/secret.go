package auth

import (
	"encoding/base64"
	"strings"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// EncodeAccessKey returns the access key in the Base64 form the provider's
// auth endpoint expects.
//
// With CredentialFormatAuto the secret is probed: a raw value containing the
// separator is a plain "id:secret" pair and gets encoded; a value that decodes
// to something containing the separator is taken as already encoded. Anything
// else is sent untouched. Declaring the format skips the probe entirely.
func EncodeAccessKey(secret string, format invoicing.CredentialFormat) string {
	switch format {
	case invoicing.CredentialFormatPlain:
		return base64.StdEncoding.EncodeToString([]byte(secret))
	case invoicing.CredentialFormatEncoded:
		return secret
	}

	if strings.Contains(secret, invoicing.SecretSeparator) {
		return base64.StdEncoding.EncodeToString([]byte(secret))
	}
	return secret
}

// DecodeSecret returns the plain "id:secret" form of secret when it can be
// recovered
func DecodeSecret(secret string, format invoicing.CredentialFormat) (string, bool) {
	if format != invoicing.CredentialFormatEncoded && strings.Contains(secret, invoicing.SecretSeparator) {
		return secret, true
	}
	if format == invoicing.CredentialFormatPlain {
		return "", false
	}
	decoded, ok := decodeBase64(secret)
	if !ok || !strings.Contains(decoded, invoicing.SecretSeparator) {
		return "", false
	}
	return decoded, true
}

// HeuristicTenant extracts the tenant part of a secret, the segment before
// the separator of its plain form
func HeuristicTenant(secret string, format invoicing.CredentialFormat) (string, bool) {
	plain, ok := DecodeSecret(secret, format)
	if !ok {
		return "", false
	}
	tenant, _, _ := strings.Cut(plain, invoicing.SecretSeparator)
	tenant = strings.TrimSpace(tenant)
	return tenant, tenant != ""
}

func decodeBase64(s string) (string, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), true
		}
	}
	return "", false
}
