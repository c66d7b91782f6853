package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // webhook.timezone must resolve in minimal containers

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Provider  ProviderConfig
	Invoicing InvoicingConfig
	Webhook   WebhookConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
	RequestTimeout  time.Duration
	// RatePerSecond limits /api calls per caller; zero disables the limiter
	RatePerSecond float64
	RateBurst     int
}

// ProviderConfig holds the invoicing provider connection settings
type ProviderConfig struct {
	BaseURL            string
	AuthURL            string
	TenantHeader       string
	Username           string // default credential when requests carry none
	AccessKey          string
	AuthTimeoutSeconds int
	TimeoutSeconds     int
	RatePerSecond      float64
	RateBurst          int
	PageSize           int
	MaxPages           int
}

// HasCredential reports whether a default credential is configured
func (p ProviderConfig) HasCredential() bool {
	return p.Username != "" && p.AccessKey != ""
}

// InvoicingConfig holds invoice engine settings
type InvoicingConfig struct {
	InvoiceDocumentID     int64
	CreditNoteDocumentID  int64
	PaymentDocumentType   string
	DefaultTaxID          int64
	PaymentMethodOverride int64
	CashPaymentNames      []string
	DefaultSellerID       int64
	TenantOverride        string
	CredentialFormat      string // auto, plain, encoded
	CatalogTTL            time.Duration
	TokenTTL              time.Duration
	TokenSafetyMargin     time.Duration
	IdempotencyTTL        time.Duration
	CreditNoteReason      string
	CreditNoteObservation string
}

// WebhookConfig holds storefront webhook settings
type WebhookConfig struct {
	Enabled     bool
	Secret      string
	StrictStore bool
	Timezone    string
	Stores      map[string]StoreConfig
}

// StoreConfig maps one storefront to its invoicing settings
type StoreConfig struct {
	DocumentTypeID int64 `mapstructure:"document_type_id"`
	SellerID       int64 `mapstructure:"seller_id"`
	BranchOffice   int   `mapstructure:"branch_office"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to export traces
	MetricsEnabled    bool          // Whether to export metrics
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        // Service name for traces
	ExportInterval    time.Duration // Metrics export interval
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with RELAY_ prefix (e.g., RELAY_PROVIDER_ACCESS_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory and /app for config.toml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			RequestTimeout:  v.GetDuration("http.request_timeout"),
			RatePerSecond:   v.GetFloat64("http.rate_per_second"),
			RateBurst:       v.GetInt("http.rate_burst"),
		},
		Provider: ProviderConfig{
			BaseURL:            v.GetString("provider.base_url"),
			AuthURL:            v.GetString("provider.auth_url"),
			TenantHeader:       v.GetString("provider.tenant_header"),
			Username:           v.GetString("provider.username"),
			AccessKey:          v.GetString("provider.access_key"),
			AuthTimeoutSeconds: v.GetInt("provider.auth_timeout_seconds"),
			TimeoutSeconds:     v.GetInt("provider.timeout_seconds"),
			RatePerSecond:      v.GetFloat64("provider.rate_per_second"),
			RateBurst:          v.GetInt("provider.rate_burst"),
			PageSize:           v.GetInt("provider.page_size"),
			MaxPages:           v.GetInt("provider.max_pages"),
		},
		Invoicing: InvoicingConfig{
			InvoiceDocumentID:     v.GetInt64("invoicing.invoice_document_id"),
			CreditNoteDocumentID:  v.GetInt64("invoicing.credit_note_document_id"),
			PaymentDocumentType:   v.GetString("invoicing.payment_document_type"),
			DefaultTaxID:          v.GetInt64("invoicing.default_tax_id"),
			PaymentMethodOverride: v.GetInt64("invoicing.payment_method_override"),
			CashPaymentNames:      v.GetStringSlice("invoicing.cash_payment_names"),
			DefaultSellerID:       v.GetInt64("invoicing.default_seller_id"),
			TenantOverride:        v.GetString("invoicing.tenant_override"),
			CredentialFormat:      v.GetString("invoicing.credential_format"),
			CatalogTTL:            v.GetDuration("invoicing.catalog_ttl"),
			TokenTTL:              v.GetDuration("invoicing.token_ttl"),
			TokenSafetyMargin:     v.GetDuration("invoicing.token_safety_margin"),
			IdempotencyTTL:        v.GetDuration("invoicing.idempotency_ttl"),
			CreditNoteReason:      v.GetString("invoicing.credit_note_reason"),
			CreditNoteObservation: v.GetString("invoicing.credit_note_observation"),
		},
		Webhook: WebhookConfig{
			Enabled:     v.GetBool("webhook.enabled"),
			Secret:      v.GetString("webhook.secret"),
			StrictStore: v.GetBool("webhook.strict_store"),
			Timezone:    v.GetString("webhook.timezone"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	if err := v.UnmarshalKey("webhook.stores", &cfg.Webhook.Stores); err != nil {
		return nil, fmt.Errorf("invalid webhook.stores: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoice-relay"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Invoice submission may walk several payload variants, each bounded by the provider timeout
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 3 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = cfg.HTTP.WriteTimeout
	}
	if cfg.HTTP.RatePerSecond > 0 && cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = int(cfg.HTTP.RatePerSecond) + 1
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.siigo.com"
	}
	if cfg.Provider.TenantHeader == "" {
		cfg.Provider.TenantHeader = "Partner-Id"
	}
	if cfg.Provider.AuthTimeoutSeconds == 0 {
		cfg.Provider.AuthTimeoutSeconds = 10
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Provider.RateBurst == 0 {
		cfg.Provider.RateBurst = 5
	}
	if cfg.Provider.PageSize == 0 {
		cfg.Provider.PageSize = 100
	}
	if cfg.Provider.MaxPages == 0 {
		cfg.Provider.MaxPages = 50
	}
	if cfg.Invoicing.PaymentDocumentType == "" {
		cfg.Invoicing.PaymentDocumentType = "FV"
	}
	if len(cfg.Invoicing.CashPaymentNames) == 0 {
		cfg.Invoicing.CashPaymentNames = []string{"cash", "efectivo"}
	}
	if cfg.Invoicing.CredentialFormat == "" {
		cfg.Invoicing.CredentialFormat = "auto"
	}
	if cfg.Invoicing.CatalogTTL == 0 {
		cfg.Invoicing.CatalogTTL = 10 * time.Minute
	}
	if cfg.Invoicing.TokenTTL == 0 {
		cfg.Invoicing.TokenTTL = 15 * time.Minute
	}
	if cfg.Invoicing.TokenSafetyMargin == 0 {
		cfg.Invoicing.TokenSafetyMargin = 2 * time.Minute
	}
	if cfg.Invoicing.IdempotencyTTL == 0 {
		cfg.Invoicing.IdempotencyTTL = 10 * time.Minute
	}
	if cfg.Invoicing.CreditNoteReason == "" {
		cfg.Invoicing.CreditNoteReason = "2"
	}
	if cfg.Invoicing.CreditNoteObservation == "" {
		cfg.Invoicing.CreditNoteObservation = "Invoice cancelled"
	}
	if cfg.Webhook.Timezone == "" {
		cfg.Webhook.Timezone = "UTC"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.Provider.BaseURL); err != nil {
		return fmt.Errorf("provider.base_url is invalid: %w", err)
	}
	if c.Provider.AuthTimeoutSeconds < 0 || c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider timeouts cannot be negative")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second cannot be negative")
	}
	if c.Provider.RatePerSecond < 0 {
		return fmt.Errorf("provider.rate_per_second cannot be negative")
	}

	switch c.Invoicing.CredentialFormat {
	case "auto", "plain", "encoded":
	default:
		return fmt.Errorf("invoicing.credential_format must be one of auto, plain, encoded, got %q", c.Invoicing.CredentialFormat)
	}
	if c.Invoicing.TokenSafetyMargin < 0 {
		return fmt.Errorf("invoicing.token_safety_margin cannot be negative")
	}
	if c.Invoicing.TokenSafetyMargin >= c.Invoicing.TokenTTL {
		return fmt.Errorf("invoicing.token_safety_margin (%s) must be shorter than invoicing.token_ttl (%s)",
			c.Invoicing.TokenSafetyMargin, c.Invoicing.TokenTTL)
	}

	if c.Webhook.Enabled && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required when webhook.enabled is true")
	}
	if _, err := time.LoadLocation(c.Webhook.Timezone); err != nil {
		return fmt.Errorf("webhook.timezone is invalid: %w", err)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Webhook.Enabled && len(c.Webhook.Secret) < 32 {
			return fmt.Errorf("webhook.secret must be at least 32 characters in production")
		}
		if strings.HasPrefix(c.Provider.BaseURL, "http://") {
			return fmt.Errorf("provider.base_url must use https in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Location returns the webhook time zone, UTC when it cannot be loaded
func (w WebhookConfig) Location() *time.Location {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
