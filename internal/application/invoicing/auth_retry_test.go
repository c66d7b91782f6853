package invoicing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// stubSource hands out numbered tokens and counts refreshes
type stubSource struct {
	headersErr error
	refreshErr error
	refreshes  int
}

func (s *stubSource) AuthHeaders(context.Context, invoicing.Credential) (invoicing.AuthHeaders, error) {
	if s.headersErr != nil {
		return invoicing.AuthHeaders{}, s.headersErr
	}
	return invoicing.AuthHeaders{Authorization: "Bearer t0", TenantID: "acme"}, nil
}

func (s *stubSource) Refresh(context.Context, invoicing.Credential) (invoicing.AuthHeaders, error) {
	s.refreshes++
	if s.refreshErr != nil {
		return invoicing.AuthHeaders{}, s.refreshErr
	}
	return invoicing.AuthHeaders{Authorization: "Bearer t1", TenantID: "acme"}, nil
}

func TestWithAuthRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("success needs no refresh", func(t *testing.T) {
		src := &stubSource{}
		got, err := WithAuthRetry(ctx, src, testCred, func(_ context.Context, h invoicing.AuthHeaders) (string, error) {
			return h.Authorization, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Bearer t0", got)
		assert.Equal(t, 0, src.refreshes)
	})

	t.Run("single 401 is retried once with fresh headers", func(t *testing.T) {
		src := &stubSource{}
		var seen []string
		got, err := WithAuthRetry(ctx, src, testCred, func(_ context.Context, h invoicing.AuthHeaders) (string, error) {
			seen = append(seen, h.Authorization)
			if len(seen) == 1 {
				return "", unauthorized()
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, []string{"Bearer t0", "Bearer t1"}, seen)
		assert.Equal(t, 1, src.refreshes)
	})

	t.Run("second 401 becomes authentication error", func(t *testing.T) {
		src := &stubSource{}
		calls := 0
		_, err := WithAuthRetry(ctx, src, testCred, func(context.Context, invoicing.AuthHeaders) (int, error) {
			calls++
			return 0, unauthorized()
		})
		assert.ErrorIs(t, err, invoicing.ErrAuthentication)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, src.refreshes)
	})

	t.Run("refresh failure becomes authentication error", func(t *testing.T) {
		src := &stubSource{refreshErr: errors.New("auth endpoint down")}
		calls := 0
		_, err := WithAuthRetry(ctx, src, testCred, func(context.Context, invoicing.AuthHeaders) (int, error) {
			calls++
			return 0, unauthorized()
		})
		assert.ErrorIs(t, err, invoicing.ErrAuthentication)
		assert.Equal(t, 1, calls)
	})

	t.Run("other errors pass through untouched", func(t *testing.T) {
		src := &stubSource{}
		want := apiError(http.StatusBadRequest, "invalid", "nope")
		_, err := WithAuthRetry(ctx, src, testCred, func(context.Context, invoicing.AuthHeaders) (int, error) {
			return 0, want
		})
		assert.Same(t, want, err)
		assert.Equal(t, 0, src.refreshes)
	})

	t.Run("header failure short-circuits", func(t *testing.T) {
		src := &stubSource{headersErr: invoicing.NewAuthenticationError("tenant id could not be resolved", nil)}
		called := false
		_, err := WithAuthRetry(ctx, src, testCred, func(context.Context, invoicing.AuthHeaders) (int, error) {
			called = true
			return 0, nil
		})
		assert.ErrorIs(t, err, invoicing.ErrAuthentication)
		assert.False(t, called)
	})
}
