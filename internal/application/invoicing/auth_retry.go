package invoicing

import (
	"context"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// WithAuthRetry runs fn with the auth headers of cred. A provider 401 clears
// the token and retries fn once with fresh headers; a second 401, or a failed
// refresh, becomes an AuthenticationError.
func WithAuthRetry[T any](
	ctx context.Context,
	source HeaderSource,
	cred invoicing.Credential,
	fn func(ctx context.Context, h invoicing.AuthHeaders) (T, error),
) (T, error) {
	var zero T

	h, err := source.AuthHeaders(ctx, cred)
	if err != nil {
		return zero, err
	}

	result, err := fn(ctx, h)
	if err == nil || !invoicing.IsUnauthorized(err) {
		return result, err
	}

	h, err = source.Refresh(ctx, cred)
	if err != nil {
		return zero, invoicing.NewAuthenticationError("token refresh failed", err)
	}

	result, err = fn(ctx, h)
	if invoicing.IsUnauthorized(err) {
		return zero, invoicing.NewAuthenticationError("provider rejected refreshed token", err)
	}
	return result, err
}
