package invoicing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// failureKind classifies a rejected submission
type failureKind int

const (
	failureOther failureKind = iota
	failureIdempotencyKey
	failureInvalidTax
	failureSellerParam
)

var sellerTerms = []string{"seller", "salesperson"}

var sellerProblems = []string{"required", "invalid", "missing", "not_found", "not found", "unknown", "not allowed", "parameter"}

var taxProblems = []string{"invalid", "reference", "not_found", "not found", "does not exist"}

// classifySubmission inspects the provider error signature of a failed invoice submission
func classifySubmission(apiErr *invoicing.ExternalAPIError) failureKind {
	sig := apiErr.Signature()
	switch {
	case strings.Contains(sig, "idempotency"):
		return failureIdempotencyKey
	case strings.Contains(sig, "tax") && containsAny(sig, taxProblems):
		return failureInvalidTax
	case containsAny(sig, sellerTerms) && containsAny(sig, sellerProblems):
		return failureSellerParam
	default:
		return failureOther
	}
}

// isCustomerConflict reports whether err says the customer already exists
func isCustomerConflict(err error) bool {
	var apiErr *invoicing.ExternalAPIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusConflict {
		return true
	}
	sig := apiErr.Signature()
	return strings.Contains(sig, "already_exists") ||
		strings.Contains(sig, "already exists") ||
		strings.Contains(sig, "duplicate")
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
