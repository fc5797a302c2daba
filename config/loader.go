/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader populates configuration objects from a single DataProvider.
// Defaults of all passed objects are registered in the provider before any
// value is read, so objects sharing one configuration source never observe
// each other's keys half-initialized.
type Loader struct {
	DataProvider DataProvider
}

// NewLoader creates a new configurations' loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{DataProvider: dp}
}

// NewDefaultLoader creates a new loader backed by viper with the ability to
// override configuration parameters via environment variables under the
// passed prefix (e.g. prefix "scraper" makes the key "cache.tempDir"
// overridable with SCRAPER_CACHE_TEMPDIR).
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// LoadFromFile loads configuration values from file and sets them in the passed configuration objects.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.load(cfgs)
}

// LoadFromReader loads configuration values from reader and sets them in the passed configuration objects.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.load(cfgs)
}

func (l *Loader) load(cfgs []Config) error {
	providers := make([]DataProvider, len(cfgs))
	for i, cfg := range cfgs {
		providers[i] = l.providerFor(cfg)
		cfg.SetProviderDefaults(providers[i])
	}
	for i, cfg := range cfgs {
		if err := cfg.Set(providers[i]); err != nil {
			return err
		}
	}
	return nil
}

// providerFor wraps the loader's provider with the object's key prefix when it has one.
func (l *Loader) providerFor(cfg Config) DataProvider {
	if kpHolder, ok := cfg.(KeyPrefixProvider); ok && kpHolder.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kpHolder.KeyPrefix())
	}
	return l.DataProvider
}
