package invoicing

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/auth"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
)

// HeaderSource supplies and refreshes provider auth headers for a credential
type HeaderSource interface {
	AuthHeaders(ctx context.Context, cred invoicing.Credential) (invoicing.AuthHeaders, error)
	Refresh(ctx context.Context, cred invoicing.Credential) (invoicing.AuthHeaders, error)
}

// AuthResolver obtains provider tokens and derives the auth headers of a call
type AuthResolver struct {
	provider       invoicing.InvoicingProvider
	tokens         *cache.TokenCache
	tenantOverride string
	defaultFormat  invoicing.CredentialFormat
	group          singleflight.Group
	metrics        Metrics
	logger         *zap.Logger
}

// NewAuthResolver creates an AuthResolver
func NewAuthResolver(
	provider invoicing.InvoicingProvider,
	tokens *cache.TokenCache,
	cfg Config,
	metrics Metrics,
	logger *zap.Logger,
) *AuthResolver {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthResolver{
		provider:       provider,
		tokens:         tokens,
		tenantOverride: strings.TrimSpace(cfg.TenantOverride),
		defaultFormat:  cfg.CredentialFormat,
		metrics:        metrics,
		logger:         logger,
	}
}

// Authenticate exchanges cred for a fresh token, bypassing the cache
func (r *AuthResolver) Authenticate(ctx context.Context, cred invoicing.Credential) (string, error) {
	if err := cred.Validate(); err != nil {
		return "", invoicing.NewAuthenticationError("invalid credential", err)
	}

	accessKey := auth.EncodeAccessKey(cred.Secret, r.format(cred))
	token, err := r.provider.Authenticate(ctx, cred.Identity, accessKey)
	if err != nil {
		var authErr *invoicing.AuthenticationError
		var apiErr *invoicing.ExternalAPIError
		switch {
		case errors.As(err, &authErr):
			return "", err
		case errors.As(err, &apiErr):
			return "", invoicing.NewAuthenticationError("provider rejected credentials", err)
		default:
			return "", err
		}
	}
	if strings.TrimSpace(token) == "" {
		return "", invoicing.NewAuthenticationError("token missing from auth response", nil)
	}
	return token, nil
}

// ExtractTenantID reads the tenant claim of token without verifying it.
// The value is a routing hint only.
func (r *AuthResolver) ExtractTenantID(token string) (string, bool) {
	return auth.TenantClaim(token)
}

// AuthHeaders returns the headers for cred, authenticating on a cache miss.
// Concurrent misses for the same credential share one token request.
func (r *AuthResolver) AuthHeaders(ctx context.Context, cred invoicing.Credential) (invoicing.AuthHeaders, error) {
	if token, ok := r.tokens.Get(cred); ok {
		return r.headers(token, cred)
	}

	token, err := r.obtain(ctx, cred)
	if err != nil {
		return invoicing.AuthHeaders{}, err
	}
	return r.headers(token, cred)
}

// Refresh drops the cached token and authenticates again
func (r *AuthResolver) Refresh(ctx context.Context, cred invoicing.Credential) (invoicing.AuthHeaders, error) {
	r.tokens.Clear()
	r.metrics.RecordTokenRefresh(ctx, "unauthorized")

	token, err := r.obtain(ctx, cred)
	if err != nil {
		return invoicing.AuthHeaders{}, err
	}
	return r.headers(token, cred)
}

// obtain runs the token request detached from the caller's cancellation so a
// coalesced caller is not failed by another one giving up. The provider
// client timeouts still bound it.
func (r *AuthResolver) obtain(ctx context.Context, cred invoicing.Credential) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := r.group.Do(flightKey(cred), func() (any, error) {
		token, err := r.Authenticate(flightCtx, cred)
		if err != nil {
			return "", err
		}
		expiresAt := r.tokens.Set(cred, token)
		r.logger.Info("provider token obtained",
			zap.String("identity", cred.Identity),
			zap.Time("expires_at", expiresAt),
		)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		r.logger.Debug("token request coalesced", zap.String("identity", cred.Identity))
	}
	return v.(string), nil
}

func (r *AuthResolver) headers(token string, cred invoicing.Credential) (invoicing.AuthHeaders, error) {
	tenant, err := r.resolveTenant(token, cred)
	if err != nil {
		return invoicing.AuthHeaders{}, err
	}
	return invoicing.AuthHeaders{
		Authorization: "Bearer " + token,
		TenantID:      tenant,
	}, nil
}

// resolveTenant applies: configured override, token claim, secret heuristic
func (r *AuthResolver) resolveTenant(token string, cred invoicing.Credential) (string, error) {
	if r.tenantOverride != "" {
		return r.tenantOverride, nil
	}
	if tenant, ok := r.ExtractTenantID(token); ok {
		return tenant, nil
	}
	if tenant, ok := auth.HeuristicTenant(cred.Secret, r.format(cred)); ok {
		return tenant, nil
	}
	return "", invoicing.NewAuthenticationError("tenant id could not be resolved", nil)
}

func (r *AuthResolver) format(cred invoicing.Credential) invoicing.CredentialFormat {
	if cred.Format == "" || cred.Format == invoicing.CredentialFormatAuto {
		return r.defaultFormat
	}
	return cred.Format
}

func flightKey(cred invoicing.Credential) string {
	return cred.Identity + "\x00" + cred.Secret
}

var _ HeaderSource = (*AuthResolver)(nil)
