package invoicing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is without knowing the concrete type.
var (
	ErrAuthentication      = errors.New("invoicing: authentication failed")
	ErrUnauthorized        = errors.New("invoicing: provider rejected credentials")
	ErrSellerUnresolved    = errors.New("invoicing: seller could not be resolved")
	ErrCustomerCreate      = errors.New("invoicing: customer creation failed")
	ErrExternalAPI         = errors.New("invoicing: provider request failed")
	ErrNotFound            = errors.New("invoicing: resource not found")
	ErrValidation          = errors.New("invoicing: invalid input")
	ErrProviderUnavailable = errors.New("invoicing: provider temporarily unavailable")
)

// AuthenticationError reports a credential or token failure, including an
// unresolvable tenant id
type AuthenticationError struct {
	Reason string
	Err    error
}

// NewAuthenticationError creates an AuthenticationError
func NewAuthenticationError(reason string, cause error) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Err: cause}
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthentication, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Reason)
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthentication, e.Err}
	}
	return []error{ErrAuthentication}
}

// SellerUnresolvedError is fatal: no catalog fallback produced a seller id
type SellerUnresolvedError struct {
	Hint     string
	TenantID string
}

func (e *SellerUnresolvedError) Error() string {
	return fmt.Sprintf("%s (tenant=%s, hint=%q)", ErrSellerUnresolved, e.TenantID, e.Hint)
}

func (e *SellerUnresolvedError) Unwrap() error { return ErrSellerUnresolved }

// CustomerCreateError reports a customer creation failure that is not a
// duplicate-customer conflict
type CustomerCreateError struct {
	Identification string
	Err            error
}

func (e *CustomerCreateError) Error() string {
	return fmt.Sprintf("%s: identification %s: %v", ErrCustomerCreate, e.Identification, e.Err)
}

func (e *CustomerCreateError) Unwrap() []error { return []error{ErrCustomerCreate, e.Err} }

// ProviderErrorDetail is a single entry of the provider error envelope
type ProviderErrorDetail struct {
	Code    string   `json:"Code"`
	Message string   `json:"Message"`
	Params  []string `json:"Params,omitempty"`
}

// ExternalAPIError is a non-2xx response from the provider. It carries enough
// of the failing request shape to reproduce it.
type ExternalAPIError struct {
	Operation string
	Status    int
	Details   []ProviderErrorDetail
	Body      string

	// Diagnostics filled in by the submitter
	Variant     string
	SellerShape string
	TaxShape    string
}

// Code returns the first upstream error code
func (e *ExternalAPIError) Code() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0].Code
}

// Message returns the first upstream error message
func (e *ExternalAPIError) Message() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0].Message
}

// Signature returns every code, message and param of the envelope, lowercased,
// for error classification
func (e *ExternalAPIError) Signature() string {
	var b strings.Builder
	for _, d := range e.Details {
		b.WriteString(d.Code)
		b.WriteByte(' ')
		b.WriteString(d.Message)
		b.WriteByte(' ')
		b.WriteString(strings.Join(d.Params, " "))
		b.WriteByte(' ')
	}
	if len(e.Details) == 0 {
		b.WriteString(e.Body)
	}
	return strings.ToLower(b.String())
}

func (e *ExternalAPIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: HTTP %d", ErrExternalAPI, e.Operation, e.Status)
	if code := e.Code(); code != "" {
		fmt.Fprintf(&b, " %s - %s", code, e.Message())
	}
	if e.Variant != "" {
		fmt.Fprintf(&b, " (variant=%s seller=%s taxes=%s)", e.Variant, e.SellerShape, e.TaxShape)
	}
	return b.String()
}

func (e *ExternalAPIError) Unwrap() []error {
	if e.Status == http.StatusUnauthorized {
		return []error{ErrExternalAPI, ErrUnauthorized}
	}
	return []error{ErrExternalAPI}
}

// NotFoundError reports a missing provider resource
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrNotFound, e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports malformed caller input
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsUnauthorized reports whether err is a provider 401
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
