/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"fmt"

	"github.com/acronis/go-scrapekit/config"
	"github.com/acronis/go-scrapekit/memmon"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyMaxSize           = "maxSize"
	cfgKeyOverflowToDisk    = "overflowToDisk"
	cfgKeyTempDir           = "tempDir"
	cfgKeyAutoCleanup       = "autoCleanup"
	cfgKeyWarningThreshold  = "warningThreshold"
	cfgKeyCriticalThreshold = "criticalThreshold"
)

// Default configuration values.
const (
	DefaultMaxSizeBytes   = 500 * 1024 * 1024
	DefaultOverflowToDisk = true
	DefaultAutoCleanup    = true
)

// Config represents a set of configuration parameters for the cache store.
type Config struct {
	// MaxSize is the in-memory byte ceiling. Must be greater than 0.
	MaxSize config.ByteSize `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`

	// OverflowToDisk enables automatic spilling of oversized values.
	OverflowToDisk bool `mapstructure:"overflowToDisk" yaml:"overflowToDisk" json:"overflowToDisk"`

	// TempDir is the directory for spill files. System temp dir if empty.
	TempDir string `mapstructure:"tempDir" yaml:"tempDir" json:"tempDir"`

	// AutoCleanup enables proactive eviction on critical memory pressure.
	AutoCleanup bool `mapstructure:"autoCleanup" yaml:"autoCleanup" json:"autoCleanup"`

	// WarningThreshold and CriticalThreshold are system memory usage
	// percentages consulted when AutoCleanup is enabled.
	WarningThreshold  float64 `mapstructure:"warningThreshold" yaml:"warningThreshold" json:"warningThreshold"`
	CriticalThreshold float64 `mapstructure:"criticalThreshold" yaml:"criticalThreshold" json:"criticalThreshold"`

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
		MaxSize:           DefaultMaxSizeBytes,
		OverflowToDisk:    DefaultOverflowToDisk,
		AutoCleanup:       DefaultAutoCleanup,
		WarningThreshold:  memmon.DefaultWarningThreshold,
		CriticalThreshold: memmon.DefaultCriticalThreshold,
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

// SetProviderDefaults sets default configuration values for the cache store in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxSize, DefaultMaxSizeBytes)
	dp.SetDefault(cfgKeyOverflowToDisk, DefaultOverflowToDisk)
	dp.SetDefault(cfgKeyAutoCleanup, DefaultAutoCleanup)
	dp.SetDefault(cfgKeyWarningThreshold, memmon.DefaultWarningThreshold)
	dp.SetDefault(cfgKeyCriticalThreshold, memmon.DefaultCriticalThreshold)
}

// Set sets cache store configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxSize, err = dp.GetByteSize(cfgKeyMaxSize); err != nil {
		return err
	}
	if c.MaxSize == 0 {
		return dp.WrapKeyErr(cfgKeyMaxSize, fmt.Errorf("must be greater than 0"))
	}

	if c.OverflowToDisk, err = dp.GetBool(cfgKeyOverflowToDisk); err != nil {
		return err
	}
	if c.TempDir, err = dp.GetString(cfgKeyTempDir); err != nil {
		return err
	}
	if c.AutoCleanup, err = dp.GetBool(cfgKeyAutoCleanup); err != nil {
		return err
	}

	if c.WarningThreshold, err = dp.GetFloat64(cfgKeyWarningThreshold); err != nil {
		return err
	}
	if c.CriticalThreshold, err = dp.GetFloat64(cfgKeyCriticalThreshold); err != nil {
		return err
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 100 {
		return dp.WrapKeyErr(cfgKeyWarningThreshold, fmt.Errorf("must be in range [0..100]"))
	}
	if c.CriticalThreshold < 0 || c.CriticalThreshold > 100 {
		return dp.WrapKeyErr(cfgKeyCriticalThreshold, fmt.Errorf("must be in range [0..100]"))
	}
	if c.WarningThreshold > c.CriticalThreshold {
		return dp.WrapKeyErr(cfgKeyWarningThreshold, fmt.Errorf("must not exceed critical threshold"))
	}

	return nil
}

// NewStoreFromConfig builds a Store from the configuration.
// Option fields that the configuration covers (overflow, temp dir, auto
// cleanup, monitor) are taken from cfg; the rest are taken from opts.
func NewStoreFromConfig[V any](cfg *Config, opts StoreOpts[V]) (*Store[V], error) {
	monitor, err := memmon.New(cfg.WarningThreshold, cfg.CriticalThreshold)
	if err != nil {
		return nil, err
	}
	opts.OverflowToDisk = cfg.OverflowToDisk
	opts.TempDir = cfg.TempDir
	opts.AutoCleanup = cfg.AutoCleanup
	opts.Monitor = monitor
	return NewWithOpts(uint64(cfg.MaxSize), opts)
}
