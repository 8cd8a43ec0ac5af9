package query

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vegasq/q1scan/reader"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	require.Equal(t, "1998-09-02", cfg.Threshold)
	require.Equal(t, int32(10471), cfg.ThresholdDays())
	require.Equal(t, reader.DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, reader.DefaultColumnSpec(), cfg.Columns)
	require.Equal(t, DefaultDomain(), cfg.Domain)
	require.False(t, cfg.DisablePruning)
	require.False(t, cfg.Timings)
}

func TestRegisterFlagsAndApplyDefaults_Prefix(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlagsAndApplyDefaults("q1", fs)

	require.NoError(t, fs.Parse([]string{
		"-q1.threshold=1995-03-15",
		"-q1.batch-size=128",
		"-q1.no-prune",
		"-q1.columns.ship-date=shipdate",
	}))

	require.Equal(t, "1995-03-15", cfg.Threshold)
	require.Equal(t, 128, cfg.BatchSize)
	require.True(t, cfg.DisablePruning)
	require.Equal(t, "shipdate", cfg.Columns.ShipDate)
	require.Equal(t, "l_tax", cfg.Columns.Tax)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q1scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
threshold: 1996-01-01
batch_size: 1024
timings: true
columns:
  ship_date: shipped
domain:
  return_flags: RNA
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(path, &cfg))
	require.NoError(t, cfg.Validate())

	require.Equal(t, "1996-01-01", cfg.Threshold)
	require.Equal(t, 1024, cfg.BatchSize)
	require.True(t, cfg.Timings)
	require.Equal(t, "shipped", cfg.Columns.ShipDate)
	require.Equal(t, "l_returnflag", cfg.Columns.ReturnFlag)
	require.Equal(t, "RNA", cfg.Domain.ReturnFlags)
	require.Equal(t, DefaultLineStatuses, cfg.Domain.LineStatuses)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	require.Error(t, LoadConfig(filepath.Join(dir, "missing.yaml"), &cfg))

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("thresold: 1996-01-01\n"), 0o644))
	require.Error(t, LoadConfig(unknown, &cfg))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, LoadConfig(empty, &cfg))
	require.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad threshold", func(c *Config) { c.Threshold = "1998-13-02" }},
		{"empty threshold", func(c *Config) { c.Threshold = "" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"empty column", func(c *Config) { c.Columns.Discount = "" }},
		{"short flag domain", func(c *Config) { c.Domain.ReturnFlags = "AN" }},
		{"duplicate status", func(c *Config) { c.Domain.LineStatuses = "OO" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())

			_, err := NewExecutor(cfg)
			require.Error(t, err)
		})
	}
}

func TestConfig_FarThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = "9999-12-31"

	require.NoError(t, cfg.Validate())
	require.Equal(t, int32(2932896), cfg.ThresholdDays())
}
