package invoicing

import "strings"

// CredentialFormat declares how Credential.Secret is encoded.
type CredentialFormat string

const (
	// CredentialFormatAuto probes the secret to decide whether it is already encoded
	CredentialFormatAuto CredentialFormat = "auto"
	// CredentialFormatPlain means the secret is a plain "id:secret" pair
	CredentialFormatPlain CredentialFormat = "plain"
	// CredentialFormatEncoded means the secret is already Base64 encoded
	CredentialFormatEncoded CredentialFormat = "encoded"
)

// IsValid returns true if the format is known
func (f CredentialFormat) IsValid() bool {
	switch f {
	case CredentialFormatAuto, CredentialFormatPlain, CredentialFormatEncoded:
		return true
	default:
		return false
	}
}

// SecretSeparator separates the tenant part from the key part of a plain secret
const SecretSeparator = ":"

// Credential identifies a caller to the invoicing provider.
// It is immutable for the lifetime of a request.
type Credential struct {
	Identity string
	Secret   string
	Format   CredentialFormat
}

// NewCredential creates a credential with automatic format detection
func NewCredential(identity, secret string) Credential {
	return Credential{
		Identity: strings.TrimSpace(identity),
		Secret:   strings.TrimSpace(secret),
		Format:   CredentialFormatAuto,
	}
}

// IsZero reports whether the credential carries no identity and no secret
func (c Credential) IsZero() bool {
	return c.Identity == "" && c.Secret == ""
}

// Validate checks that both parts of the credential are present
func (c Credential) Validate() error {
	if c.Identity == "" {
		return NewValidationError("identity", "provider identity is required")
	}
	if c.Secret == "" {
		return NewValidationError("secret", "provider secret is required")
	}
	if c.Format != "" && !c.Format.IsValid() {
		return NewValidationError("format", "unknown credential format: "+string(c.Format))
	}
	return nil
}

// Equal reports whether two credentials identify the same caller
func (c Credential) Equal(other Credential) bool {
	return c.Identity == other.Identity && c.Secret == other.Secret
}

// AuthHeaders are the headers every authenticated provider call carries
type AuthHeaders struct {
	Authorization string
	TenantID      string
}
