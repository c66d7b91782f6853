package provider

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production API endpoint
	DefaultBaseURL = "https://api.siigo.com"
	// DefaultTenantHeader carries the tenant id on every authenticated call
	DefaultTenantHeader = "Partner-Id"

	defaultAuthPath           = "/auth"
	defaultAuthTimeoutSeconds = 10
	defaultTimeoutSeconds     = 30
	defaultPageSize           = 100
	defaultMaxPages           = 50
	defaultRatePerSecond      = 10
	defaultRateBurst          = 5
)

// Errors for provider configuration
var (
	ErrConfigMissingBaseURL = errors.New("provider: base URL is required")
	ErrConfigInvalidTimeout = errors.New("provider: timeouts must be positive")
)

// Config holds the settings of the provider REST adapter
type Config struct {
	// BaseURL is the API root, without trailing slash
	BaseURL string
	// AuthURL is the token endpoint; defaults to BaseURL + "/auth"
	AuthURL string
	// TenantHeader names the header that carries the tenant id
	TenantHeader string
	// AuthTimeoutSeconds bounds the token request
	AuthTimeoutSeconds int
	// TimeoutSeconds bounds every other request
	TimeoutSeconds int
	// RatePerSecond limits outbound requests; zero disables the limiter
	RatePerSecond float64
	RateBurst     int
	// PageSize and MaxPages bound catalog pagination
	PageSize int
	MaxPages int
	// UserAgent is sent on every request when set
	UserAgent string
}

// NewConfig creates a provider configuration with defaults
func NewConfig(baseURL string) *Config {
	return &Config{
		BaseURL:            baseURL,
		TenantHeader:       DefaultTenantHeader,
		AuthTimeoutSeconds: defaultAuthTimeoutSeconds,
		TimeoutSeconds:     defaultTimeoutSeconds,
		RatePerSecond:      defaultRatePerSecond,
		RateBurst:          defaultRateBurst,
		PageSize:           defaultPageSize,
		MaxPages:           defaultMaxPages,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = c.BaseURL + defaultAuthPath
	}
	if c.TenantHeader == "" {
		c.TenantHeader = DefaultTenantHeader
	}
	if c.AuthTimeoutSeconds < 0 || c.TimeoutSeconds < 0 {
		return ErrConfigInvalidTimeout
	}
	if c.AuthTimeoutSeconds == 0 {
		c.AuthTimeoutSeconds = defaultAuthTimeoutSeconds
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.RateBurst <= 0 {
		c.RateBurst = defaultRateBurst
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	return nil
}

// AuthTimeout returns the token request timeout
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}

// Timeout returns the API request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
