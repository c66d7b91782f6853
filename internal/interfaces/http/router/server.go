package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/logger"
	"github.com/erp/invoice-relay/internal/interfaces/http/handler"
	"github.com/erp/invoice-relay/internal/interfaces/http/middleware"
)

// Dependencies are the collaborators of the relay HTTP API
type Dependencies struct {
	Logger     *zap.Logger
	Invoices   handler.InvoiceService
	Orders     handler.OrderSyncer     // nil disables the webhook route
	Deliveries handler.DeliveryTracker // optional

	DefaultCredential invoicing.Credential

	ServiceName    string
	Version        string
	WebhookSecret  string
	MaxBodySize    int64
	RequestTimeout time.Duration
	TrustedProxies []string

	// RateLimiter bounds /api requests per caller; nil disables it
	RateLimiter *middleware.RateLimiter

	TracingEnabled bool
	TracerProvider trace.TracerProvider
	Meter          metric.Meter
}

// NewEngine builds the gin engine serving:
//
//	GET  /health
//	POST /api/v1/invoices
//	POST /api/v1/invoices/:serie/:number/cancel
//	GET  /api/v1/catalog/payment-types
//	GET  /api/v1/catalog/sellers
//	POST /api/v1/webhooks/orders
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName:    deps.ServiceName,
			Enabled:        deps.TracingEnabled,
			TracerProvider: deps.TracerProvider,
		}),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(deps.Meter),
		logger.GinMiddleware(log),
	)

	engine.GET("/health", handler.NewHealthHandler(deps.ServiceName, deps.Version).Health)

	api := []gin.HandlerFunc{middleware.BodyLimit(deps.MaxBodySize), middleware.Timeout(deps.RequestTimeout)}
	if deps.RateLimiter != nil {
		api = append(api, middleware.RateLimit(deps.RateLimiter))
	}

	base := handler.NewBaseHandler(deps.DefaultCredential)
	invoices := handler.NewInvoiceHandler(base, deps.Invoices)
	catalog := handler.NewCatalogHandler(base, deps.Invoices)

	r := NewRouter(engine)
	r.Register(NewDomainGroup("invoices", "/invoices").
		Use(api...).
		POST("", invoices.Create).
		POST("/:serie/:number/cancel", invoices.Cancel))
	r.Register(NewDomainGroup("catalog", "/catalog").
		Use(api...).
		GET("/payment-types", catalog.PaymentTypes).
		GET("/sellers", catalog.Sellers))

	if deps.Orders != nil {
		webhooks := handler.NewWebhookHandler(deps.DefaultCredential, deps.Orders, deps.Deliveries)
		r.Register(NewDomainGroup("webhooks", "/webhooks").
			Use(middleware.BodyLimit(deps.MaxBodySize), middleware.WebhookSignature(deps.WebhookSecret), middleware.Timeout(deps.RequestTimeout)).
			POST("/orders", webhooks.Orders))
	}

	r.Setup()
	return engine, nil
}
