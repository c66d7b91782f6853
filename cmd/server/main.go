package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	invoicingapp "github.com/erp/invoice-relay/internal/application/invoicing"
	"github.com/erp/invoice-relay/internal/application/ordersync"
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
	"github.com/erp/invoice-relay/internal/infrastructure/config"
	"github.com/erp/invoice-relay/internal/infrastructure/logger"
	"github.com/erp/invoice-relay/internal/infrastructure/provider"
	"github.com/erp/invoice-relay/internal/infrastructure/telemetry"
	"github.com/erp/invoice-relay/internal/interfaces/http/handler"
	"github.com/erp/invoice-relay/internal/interfaces/http/middleware"
	"github.com/erp/invoice-relay/internal/interfaces/http/router"
)

var (
	_ invoicingapp.Metrics     = (*telemetry.InvoicingMetrics)(nil)
	_ provider.RequestObserver = (*telemetry.InvoicingMetrics)(nil)
	_ handler.InvoiceService   = (*invoicingapp.Service)(nil)
	_ handler.OrderSyncer      = (*ordersync.Service)(nil)
	_ handler.DeliveryTracker  = (*cache.DeliveryStore)(nil)
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting invoice relay",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("provider", cfg.Provider.BaseURL),
		zap.Bool("webhook_enabled", cfg.Webhook.Enabled),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	invoicingMetrics, err := telemetry.NewInvoicingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register invoicing metrics", zap.Error(err))
	}

	// Provider adapter
	providerCfg := provider.NewConfig(cfg.Provider.BaseURL)
	providerCfg.AuthURL = cfg.Provider.AuthURL
	providerCfg.TenantHeader = cfg.Provider.TenantHeader
	providerCfg.AuthTimeoutSeconds = cfg.Provider.AuthTimeoutSeconds
	providerCfg.TimeoutSeconds = cfg.Provider.TimeoutSeconds
	providerCfg.RatePerSecond = cfg.Provider.RatePerSecond
	providerCfg.RateBurst = cfg.Provider.RateBurst
	providerCfg.PageSize = cfg.Provider.PageSize
	providerCfg.MaxPages = cfg.Provider.MaxPages
	providerCfg.UserAgent = cfg.App.Name + "/" + cfg.App.Version

	adapter, err := provider.NewRESTAdapter(providerCfg, log)
	if err != nil {
		log.Fatal("Failed to create provider adapter", zap.Error(err))
	}
	adapter.SetObserver(invoicingMetrics)

	invoices := invoicingapp.NewService(adapter, invoicingapp.Config{
		InvoiceDocumentID:     cfg.Invoicing.InvoiceDocumentID,
		CreditNoteDocumentID:  cfg.Invoicing.CreditNoteDocumentID,
		PaymentDocumentType:   cfg.Invoicing.PaymentDocumentType,
		DefaultTaxID:          cfg.Invoicing.DefaultTaxID,
		PaymentMethodOverride: cfg.Invoicing.PaymentMethodOverride,
		CashPaymentNames:      cfg.Invoicing.CashPaymentNames,
		DefaultSellerID:       cfg.Invoicing.DefaultSellerID,
		TenantOverride:        cfg.Invoicing.TenantOverride,
		CredentialFormat:      invoicing.CredentialFormat(cfg.Invoicing.CredentialFormat),
		CatalogTTL:            cfg.Invoicing.CatalogTTL,
		TokenTTL:              cfg.Invoicing.TokenTTL,
		TokenSafetyMargin:     cfg.Invoicing.TokenSafetyMargin,
		IdempotencyTTL:        cfg.Invoicing.IdempotencyTTL,
		CreditNoteReason:      cfg.Invoicing.CreditNoteReason,
		CreditNoteObservation: cfg.Invoicing.CreditNoteObservation,
	},
		invoicingapp.WithLogger(log),
		invoicingapp.WithMetrics(invoicingMetrics),
	)
	defer func() {
		_ = invoices.Close()
	}()

	var defaultCred invoicing.Credential
	if cfg.Provider.HasCredential() {
		defaultCred = invoicing.NewCredential(cfg.Provider.Username, cfg.Provider.AccessKey)
	}

	deps := router.Dependencies{
		Logger:            log,
		Invoices:          invoices,
		DefaultCredential: defaultCred,
		ServiceName:       cfg.App.Name,
		Version:           cfg.App.Version,
		MaxBodySize:       cfg.HTTP.MaxBodySize,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		TrustedProxies:    cfg.HTTP.TrustedProxies,
		TracingEnabled:    tracerProvider.IsEnabled(),
		Meter:             meter,
	}

	if cfg.HTTP.RatePerSecond > 0 {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.HTTP.RatePerSecond, cfg.HTTP.RateBurst, 10*time.Minute)
	}

	// Storefront order webhook
	if cfg.Webhook.Enabled {
		stores := make(map[string]ordersync.StoreMapping, len(cfg.Webhook.Stores))
		for id, s := range cfg.Webhook.Stores {
			stores[id] = ordersync.StoreMapping{
				DocumentTypeID: s.DocumentTypeID,
				SellerID:       s.SellerID,
				BranchOffice:   s.BranchOffice,
			}
		}
		mapper := ordersync.NewMapper(
			ordersync.WithStores(stores, cfg.Webhook.StrictStore),
			ordersync.WithLocation(cfg.Webhook.Location()),
		)
		deliveries := cache.NewDeliveryStore(cfg.Invoicing.IdempotencyTTL, nil)
		defer func() {
			_ = deliveries.Close()
		}()

		deps.Orders = ordersync.NewService(mapper, invoices, log)
		deps.Deliveries = deliveries
		deps.WebhookSecret = cfg.Webhook.Secret
		if !cfg.Provider.HasCredential() {
			log.Warn("Webhook enabled without provider credential, orders will be rejected")
		}
	}

	engine, err := router.NewEngine(deps)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
