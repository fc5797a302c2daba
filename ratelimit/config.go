/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"

	"github.com/acronis/go-scrapekit/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyRequestsPerSecond = "requestsPerSecond"
	cfgKeyBurstSize         = "burstSize"
	cfgKeyMaxRetries        = "maxRetries"
)

// Default configuration values.
const (
	DefaultRequestsPerSecond = 1.0
	DefaultBurstSize         = 5
	DefaultMaxRetries        = 3
)

// Config represents a set of configuration parameters for the rate limiter
// and the retry behavior of the fetch pipeline that consumes it.
type Config struct {
	// RequestsPerSecond is the steady-state pacing rate. Must be positive.
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond" json:"requestsPerSecond"`

	// BurstSize is the token bucket capacity. Must be >= 1.
	BurstSize int `mapstructure:"burstSize" yaml:"burstSize" json:"burstSize"`

	// MaxRetries bounds the retry attempts the fetch pipeline will make
	// after rate-limited or server-overloaded responses. Must be >= 0.
	MaxRetries int `mapstructure:"maxRetries" yaml:"maxRetries" json:"maxRetries"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix:         opts.keyPrefix,
		RequestsPerSecond: DefaultRequestsPerSecond,
		BurstSize:         DefaultBurstSize,
		MaxRetries:        DefaultMaxRetries,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the rate limiter in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRequestsPerSecond, DefaultRequestsPerSecond)
	dp.SetDefault(cfgKeyBurstSize, DefaultBurstSize)
	dp.SetDefault(cfgKeyMaxRetries, DefaultMaxRetries)
}

// Set sets rate limiter configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.RequestsPerSecond, err = dp.GetFloat64(cfgKeyRequestsPerSecond); err != nil {
		return err
	}
	if c.RequestsPerSecond <= 0 {
		return dp.WrapKeyErr(cfgKeyRequestsPerSecond, fmt.Errorf("must be positive"))
	}

	if c.BurstSize, err = dp.GetInt(cfgKeyBurstSize); err != nil {
		return err
	}
	if c.BurstSize < 1 {
		return dp.WrapKeyErr(cfgKeyBurstSize, fmt.Errorf("must be >= 1"))
	}

	if c.MaxRetries, err = dp.GetInt(cfgKeyMaxRetries); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return dp.WrapKeyErr(cfgKeyMaxRetries, fmt.Errorf("must be >= 0"))
	}

	return nil
}

// Limiter builds a RateLimiter from the configuration.
func (c *Config) Limiter(opts Opts) (*RateLimiter, error) {
	opts.Burst = c.BurstSize
	return NewWithOpts(c.RequestsPerSecond, opts)
}
