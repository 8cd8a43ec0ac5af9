package query

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/q1scan/reader"
)

const (
	DefaultThreshold    = "1998-09-02"
	DefaultReturnFlags  = "ANR"
	DefaultLineStatuses = "FO"
)

// Config holds everything the executor needs to run the aggregation.
type Config struct {
	// Threshold is the inclusive ship date cutoff in YYYY-MM-DD form.
	Threshold string `yaml:"threshold"`

	BatchSize      int  `yaml:"batch_size"`
	DisablePruning bool `yaml:"disable_pruning"`

	// Timings enables per-stage wall clock measurement.
	Timings bool `yaml:"timings"`

	Columns reader.ColumnSpec `yaml:"columns"`
	Domain  Domain            `yaml:"domain"`
}

// Domain lists the known group key values. Position in each string is the
// group index; bytes outside the domain fall back to index 0.
type Domain struct {
	ReturnFlags  string `yaml:"return_flags"`
	LineStatuses string `yaml:"line_statuses"`
}

// DefaultDomain returns the TPC-H domain {A,N,R} x {F,O}.
func DefaultDomain() Domain {
	return Domain{ReturnFlags: DefaultReturnFlags, LineStatuses: DefaultLineStatuses}
}

// RegisterFlagsAndApplyDefaults registers the config flags on f, with names
// prefixed by prefix, and resets cfg to the defaults.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	def := reader.DefaultColumnSpec()

	f.StringVar(&cfg.Threshold, prefixConfig(prefix, "threshold"), DefaultThreshold, "Inclusive ship date cutoff (YYYY-MM-DD).")
	f.IntVar(&cfg.BatchSize, prefixConfig(prefix, "batch-size"), reader.DefaultBatchSize, "Rows decoded per batch.")
	f.BoolVar(&cfg.DisablePruning, prefixConfig(prefix, "no-prune"), false, "Decode every row group, ignoring ship date statistics.")
	f.BoolVar(&cfg.Timings, prefixConfig(prefix, "timings"), false, "Record per-stage timings.")

	f.StringVar(&cfg.Columns.ReturnFlag, prefixConfig(prefix, "columns.return-flag"), def.ReturnFlag, "Return flag column name.")
	f.StringVar(&cfg.Columns.LineStatus, prefixConfig(prefix, "columns.line-status"), def.LineStatus, "Line status column name.")
	f.StringVar(&cfg.Columns.Quantity, prefixConfig(prefix, "columns.quantity"), def.Quantity, "Quantity column name.")
	f.StringVar(&cfg.Columns.ExtendedPrice, prefixConfig(prefix, "columns.extended-price"), def.ExtendedPrice, "Extended price column name.")
	f.StringVar(&cfg.Columns.Discount, prefixConfig(prefix, "columns.discount"), def.Discount, "Discount column name.")
	f.StringVar(&cfg.Columns.Tax, prefixConfig(prefix, "columns.tax"), def.Tax, "Tax column name.")
	f.StringVar(&cfg.Columns.ShipDate, prefixConfig(prefix, "columns.ship-date"), def.ShipDate, "Ship date column name.")

	f.StringVar(&cfg.Domain.ReturnFlags, prefixConfig(prefix, "domain.return-flags"), DefaultReturnFlags, "The three return flag values, in group order.")
	f.StringVar(&cfg.Domain.LineStatuses, prefixConfig(prefix, "domain.line-statuses"), DefaultLineStatuses, "The two line status values, in group order.")
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("defaults", flag.ContinueOnError))
	return cfg
}

// LoadConfig overlays the YAML file at path onto cfg. Unknown keys are rejected.
func LoadConfig(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the config for errors.
func (cfg *Config) Validate() error {
	if _, err := reader.ParseDate(cfg.Threshold); err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	for i, name := range cfg.Columns.Names() {
		if name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
	}

	if err := validateDomain("return flags", cfg.Domain.ReturnFlags, numFlags); err != nil {
		return err
	}
	return validateDomain("line statuses", cfg.Domain.LineStatuses, numStatuses)
}

// ThresholdDays returns the threshold as days since 1970-01-01.
// The config must have passed Validate.
func (cfg *Config) ThresholdDays() int32 {
	days, _ := reader.ParseDate(cfg.Threshold)
	return days
}

func validateDomain(what, values string, want int) error {
	if len(values) != want {
		return fmt.Errorf("domain %s must have exactly %d values, got %q", what, want, values)
	}
	for i := 0; i < len(values); i++ {
		if strings.IndexByte(values[:i], values[i]) >= 0 {
			return fmt.Errorf("domain %s contains duplicate value %q", what, values[i])
		}
	}
	return nil
}

func prefixConfig(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
