// Package config loads the YAML configuration of the xidledger tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sushant-115/xidledger/core/transaction"
	"github.com/sushant-115/xidledger/pkg/logger"
	"github.com/sushant-115/xidledger/pkg/telemetry"
)

// Config is the top-level configuration file.
type Config struct {
	Ledger    LedgerConfig     `yaml:"ledger"`
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// LedgerConfig locates the transaction ledger.
type LedgerConfig struct {
	// Path is the base path; the ledger file is Path + ".xid".
	Path string `yaml:"path"`
	// CreateIfMissing lets commands that need a ledger create one.
	CreateIfMissing bool `yaml:"create_if_missing"`
	// BackupBytesPerSec throttles backups. 0 means unthrottled.
	BackupBytesPerSec int64 `yaml:"backup_bytes_per_sec"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			Path: "data/xidledger",
		},
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stderr",
			Service:    "xidledger",
		},
		Telemetry: telemetry.Config{
			ServiceName:      "xidledger",
			TraceSampleRatio: 1.0,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Ledger.Path == "" {
		return errors.New("ledger.path must be set")
	}
	if strings.HasSuffix(c.Ledger.Path, transaction.LedgerSuffix) {
		return fmt.Errorf("ledger.path %q must not include the %s suffix", c.Ledger.Path, transaction.LedgerSuffix)
	}
	if c.Ledger.BackupBytesPerSec < 0 {
		return fmt.Errorf("ledger.backup_bytes_per_sec must not be negative, got %d", c.Ledger.BackupBytesPerSec)
	}
	if r := c.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.trace_sample_ratio must be within [0, 1], got %v", r)
	}
	return nil
}
