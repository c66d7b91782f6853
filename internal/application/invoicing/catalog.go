package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
)

// CatalogCache caches provider catalogs per tenant and resolves the ids an
// invoice needs. A miss fetches the whole catalog once; entries are never
// invalidated before their TTL.
type CatalogCache struct {
	provider invoicing.InvoicingProvider

	paymentTypes *cache.TTLCache[string, []invoicing.PaymentMethod]
	users        *cache.TTLCache[string, []invoicing.User]
	taxes        *cache.TTLCache[string, []invoicing.Tax]
	group        singleflight.Group

	paymentOverride int64
	cashNames       []string
	defaultSellerID int64

	metrics Metrics
	logger  *zap.Logger
}

// NewCatalogCache creates a CatalogCache
func NewCatalogCache(provider invoicing.InvoicingProvider, cfg Config, clock cache.Clock, metrics Metrics, logger *zap.Logger) *CatalogCache {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := cache.TTLCacheOptions{CleanupInterval: cfg.CatalogTTL, Clock: clock}
	return &CatalogCache{
		provider:        provider,
		paymentTypes:    cache.NewTTLCache[string, []invoicing.PaymentMethod](cfg.CatalogTTL, opts),
		users:           cache.NewTTLCache[string, []invoicing.User](cfg.CatalogTTL, opts),
		taxes:           cache.NewTTLCache[string, []invoicing.Tax](cfg.CatalogTTL, opts),
		paymentOverride: cfg.PaymentMethodOverride,
		cashNames:       cfg.CashPaymentNames,
		defaultSellerID: cfg.DefaultSellerID,
		metrics:         metrics,
		logger:          logger,
	}
}

// Close stops the background sweeps
func (c *CatalogCache) Close() error {
	_ = c.paymentTypes.Close()
	_ = c.users.Close()
	return c.taxes.Close()
}

// ---------------------------------------------------------------------------
// Catalog access
// ---------------------------------------------------------------------------

// PaymentTypes returns the payment types catalog of the tenant in h
func (c *CatalogCache) PaymentTypes(ctx context.Context, h invoicing.AuthHeaders, documentType string) ([]invoicing.PaymentMethod, error) {
	key := h.TenantID + "|" + documentType
	return loadCatalog(ctx, c, c.paymentTypes, invoicing.CatalogKindPaymentTypes, key, func(ctx context.Context) ([]invoicing.PaymentMethod, error) {
		return c.provider.ListPaymentTypes(ctx, h, documentType)
	})
}

// Users returns the users catalog of the tenant in h
func (c *CatalogCache) Users(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.User, error) {
	return loadCatalog(ctx, c, c.users, invoicing.CatalogKindUsers, h.TenantID, func(ctx context.Context) ([]invoicing.User, error) {
		return c.provider.ListUsers(ctx, h)
	})
}

// Taxes returns the taxes catalog of the tenant in h
func (c *CatalogCache) Taxes(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.Tax, error) {
	return loadCatalog(ctx, c, c.taxes, invoicing.CatalogKindTaxes, h.TenantID, func(ctx context.Context) ([]invoicing.Tax, error) {
		return c.provider.ListTaxes(ctx, h)
	})
}

func loadCatalog[T any](
	ctx context.Context,
	c *CatalogCache,
	store *cache.TTLCache[string, []T],
	kind invoicing.CatalogKind,
	key string,
	fetch func(ctx context.Context) ([]T, error),
) ([]T, error) {
	if entries, ok := store.Get(key); ok {
		c.metrics.RecordCatalogFetch(ctx, kind.String(), true)
		return entries, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(kind.String()+"|"+key, func() (any, error) {
		entries, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		store.Set(key, entries)
		c.logger.Debug("catalog fetched",
			zap.String("kind", kind.String()),
			zap.String("tenant", key),
			zap.Int("entries", len(entries)),
		)
		return entries, nil
	})
	c.metrics.RecordCatalogFetch(ctx, kind.String(), false)
	if err != nil {
		return nil, fmt.Errorf("fetch %s catalog: %w", kind, err)
	}
	return v.([]T), nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolvePaymentMethod picks the payment method of an invoice: the configured
// override when active, else an active cash entry, else the first active
// entry, else the override as given (0 when unset).
func (c *CatalogCache) ResolvePaymentMethod(ctx context.Context, h invoicing.AuthHeaders, documentType string) (int64, error) {
	methods, err := c.PaymentTypes(ctx, h, documentType)
	if err != nil {
		if invoicing.IsUnauthorized(err) {
			return 0, err
		}
		c.logger.Warn("payment types unavailable, using override",
			zap.Int64("payment_method", c.paymentOverride),
			zap.Error(err),
		)
		return c.paymentOverride, nil
	}

	if c.paymentOverride > 0 {
		for _, m := range methods {
			if m.ID == c.paymentOverride && m.Active {
				return m.ID, nil
			}
		}
	}

	fold := cases.Fold()
	for _, m := range methods {
		if !m.Active {
			continue
		}
		name := fold.String(strings.TrimSpace(m.Name))
		for _, cash := range c.cashNames {
			if name == fold.String(cash) {
				return m.ID, nil
			}
		}
	}

	for _, m := range methods {
		if m.Active {
			return m.ID, nil
		}
	}
	return c.paymentOverride, nil
}

// ResolveSeller picks the seller of an invoice: an active user whose email or
// username matches hint, else the first active user flagged as seller, else
// the first active user, else the configured default.
func (c *CatalogCache) ResolveSeller(ctx context.Context, h invoicing.AuthHeaders, hint string) (int64, error) {
	users, err := c.Users(ctx, h)
	if err != nil {
		if invoicing.IsUnauthorized(err) {
			return 0, err
		}
		c.logger.Warn("users catalog unavailable", zap.Error(err))
		users = nil
	}

	hint = strings.TrimSpace(hint)
	if hint != "" {
		fold := cases.Fold()
		want := fold.String(hint)
		for _, u := range users {
			if fold.String(u.Email) == want || fold.String(u.Username) == want {
				if u.Active {
					return u.ID, nil
				}
				break
			}
		}
	}

	for _, u := range users {
		if u.Seller && u.Active {
			return u.ID, nil
		}
	}
	for _, u := range users {
		if u.Active {
			return u.ID, nil
		}
	}
	if c.defaultSellerID > 0 {
		return c.defaultSellerID, nil
	}
	return 0, &invoicing.SellerUnresolvedError{Hint: hint, TenantID: h.TenantID}
}

// IsValidTax reports whether taxID is an active entry of the taxes catalog.
// An unavailable catalog counts as empty.
func (c *CatalogCache) IsValidTax(ctx context.Context, h invoicing.AuthHeaders, taxID int64) (bool, error) {
	tax, ok, err := c.findTax(ctx, h, taxID)
	if err != nil {
		return false, err
	}
	return ok && tax.Active, nil
}

// TaxRate returns the fractional rate of taxID, zero when absent or non-positive
func (c *CatalogCache) TaxRate(ctx context.Context, h invoicing.AuthHeaders, taxID int64) (decimal.Decimal, error) {
	tax, ok, err := c.findTax(ctx, h, taxID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return tax.Rate(), nil
}

func (c *CatalogCache) findTax(ctx context.Context, h invoicing.AuthHeaders, taxID int64) (invoicing.Tax, bool, error) {
	taxes, err := c.Taxes(ctx, h)
	if err != nil {
		if invoicing.IsUnauthorized(err) {
			return invoicing.Tax{}, false, err
		}
		c.logger.Warn("taxes catalog unavailable, assuming no taxes",
			zap.Int64("tax_id", taxID),
			zap.Error(err),
		)
		return invoicing.Tax{}, false, nil
	}
	for _, t := range taxes {
		if t.ID == taxID {
			return t, true, nil
		}
	}
	return invoicing.Tax{}, false, nil
}
