package dto

import "net/http"

// Error codes
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeNotFound    = "ERR_NOT_FOUND"

	// ErrCodeUnauthorized is returned when the caller sent no usable provider credential
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeAuthentication is returned when the provider rejected the credential
	ErrCodeAuthentication = "ERR_AUTHENTICATION"
	// ErrCodeSignature is returned for webhook deliveries with a bad signature
	ErrCodeSignature = "ERR_SIGNATURE_INVALID"

	ErrCodeSellerUnresolved    = "ERR_SELLER_UNRESOLVED"
	ErrCodeCustomerCreate      = "ERR_CUSTOMER_CREATE"
	ErrCodeUnknownStore        = "ERR_UNKNOWN_STORE"
	ErrCodeProviderRejected    = "ERR_PROVIDER_REJECTED"
	ErrCodeProviderUnavailable = "ERR_PROVIDER_UNAVAILABLE"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeNotFound:    http.StatusNotFound,

	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeAuthentication: http.StatusUnauthorized,
	ErrCodeSignature:      http.StatusUnauthorized,

	ErrCodeSellerUnresolved:    http.StatusUnprocessableEntity,
	ErrCodeCustomerCreate:      http.StatusUnprocessableEntity,
	ErrCodeUnknownStore:        http.StatusUnprocessableEntity,
	ErrCodeProviderRejected:    http.StatusBadGateway,
	ErrCodeProviderUnavailable: http.StatusServiceUnavailable,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
