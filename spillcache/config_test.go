/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-scrapekit/config"
)

func TestConfig(t *testing.T) {
	cfgData := bytes.NewBufferString(`
cache:
  maxSize: 10MB
  overflowToDisk: false
  tempDir: /var/tmp/scrapekit
  autoCleanup: false
  warningThreshold: 70
  criticalThreshold: 85
`)
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(cfgData, config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, config.ByteSize(10*1024*1024), cfg.MaxSize)
	require.False(t, cfg.OverflowToDisk)
	require.Equal(t, "/var/tmp/scrapekit", cfg.TempDir)
	require.False(t, cfg.AutoCleanup)
	require.Equal(t, 70.0, cfg.WarningThreshold)
	require.Equal(t, 85.0, cfg.CriticalThreshold)
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("{}"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, config.ByteSize(DefaultMaxSizeBytes), cfg.MaxSize)
	require.True(t, cfg.OverflowToDisk)
	require.Empty(t, cfg.TempDir)
	require.True(t, cfg.AutoCleanup)
	require.Equal(t, 80.0, cfg.WarningThreshold)
	require.Equal(t, 90.0, cfg.CriticalThreshold)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "zero max size",
			yaml:    "cache:\n  maxSize: 0\n",
			wantErr: `cache.maxSize: must be greater than 0`,
		},
		{
			name:    "negative max size",
			yaml:    "cache:\n  maxSize: -5\n",
			wantErr: `cache.maxSize`,
		},
		{
			name:    "warning threshold out of range",
			yaml:    "cache:\n  warningThreshold: 120\n",
			wantErr: `cache.warningThreshold: must be in range [0..100]`,
		},
		{
			name:    "critical threshold out of range",
			yaml:    "cache:\n  criticalThreshold: -1\n",
			wantErr: `cache.criticalThreshold: must be in range [0..100]`,
		},
		{
			name:    "warning above critical",
			yaml:    "cache:\n  warningThreshold: 95\n  criticalThreshold: 90\n",
			wantErr: `cache.warningThreshold: must not exceed critical threshold`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.yaml), config.DataTypeYAML, cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	tempDir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.MaxSize = 100
	cfg.OverflowToDisk = true
	cfg.TempDir = tempDir

	s, err := NewStoreFromConfig(cfg, StoreOpts[[]byte]{Codec: rawCodec{}})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("huge", make([]byte, 150)))
	require.Equal(t, 1, spillFileCount(t, tempDir), "overflow setting must reach the store")
	require.Equal(t, uint64(100), s.Stats().MaxBytes)
}

func TestNewStoreFromConfigBadThresholds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.WarningThreshold = 95
	cfg.CriticalThreshold = 90

	_, err := NewStoreFromConfig(cfg, StoreOpts[string]{})
	require.Error(t, err)
}
