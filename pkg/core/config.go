package core

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Mainnet and testnet endpoints for the venue.
const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	MainnetWSURL  = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL  = "wss://api.hyperliquid-testnet.xyz/ws"
)

// Config contains all configuration options for a client instance.
type Config struct {
	// Testnet selects the testnet endpoints when true.
	Testnet bool `json:"testnet"`

	// APIURL overrides the REST endpoint. Empty selects the default for the network.
	APIURL string `json:"api_url" validate:"omitempty,url"`
	// WSURL overrides the websocket endpoint. Empty selects the default for the network.
	WSURL string `json:"ws_url" validate:"omitempty,url"`

	// Timeout is the maximum duration for a single HTTP request.
	Timeout      time.Duration `json:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" validate:"min=0"`

	// RateLimitWeight is the token-bucket capacity in request weight units.
	RateLimitWeight int `json:"rate_limit_weight" validate:"min=1"`
	// RateLimitPeriod is the window over which the bucket fully refills.
	RateLimitPeriod time.Duration `json:"rate_limit_period" validate:"min=1ms"`

	// RefreshInterval is how often the symbol registry reloads venue metadata.
	RefreshInterval time.Duration `json:"refresh_interval" validate:"min=1s"`

	// PostTimeout bounds how long a websocket post request waits for its
	// correlated response frame.
	PostTimeout time.Duration `json:"post_timeout" validate:"min=1ms"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with production defaults: 10s request timeout,
// no pipeline retries, 1200 weight/min rate budget, 60s registry refresh, and a
// 30s websocket post timeout.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		MaxRetries:   0,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		RateLimitWeight: 1200,
		RateLimitPeriod: time.Minute,

		RefreshInterval: 60 * time.Second,
		PostTimeout:     30 * time.Second,

		CircuitBreakerEnabled:          false,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// BaseURL returns the effective REST endpoint for this configuration.
func (c *Config) BaseURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	if c.Testnet {
		return TestnetAPIURL
	}
	return MainnetAPIURL
}

// WebsocketURL returns the effective websocket endpoint for this configuration.
func (c *Config) WebsocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	if c.Testnet {
		return TestnetWSURL
	}
	return MainnetWSURL
}

// WithTestnet selects the network and returns the config for chaining.
func (c *Config) WithTestnet(testnet bool) *Config {
	c.Testnet = testnet
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the weight budget and returns the config for chaining.
func (c *Config) WithRateLimit(weight int, period time.Duration) *Config {
	c.RateLimitWeight = weight
	c.RateLimitPeriod = period
	return c
}

// WithRefreshInterval sets the registry reload cadence and returns the config for chaining.
func (c *Config) WithRefreshInterval(interval time.Duration) *Config {
	c.RefreshInterval = interval
	return c
}

// WithCircuitBreaker enables the breaker and returns the config for chaining.
func (c *Config) WithCircuitBreaker(failThreshold, successThreshold int, timeout time.Duration) *Config {
	c.CircuitBreakerEnabled = true
	c.CircuitBreakerFailThreshold = failThreshold
	c.CircuitBreakerSuccessThreshold = successThreshold
	c.CircuitBreakerTimeout = timeout
	return c
}
