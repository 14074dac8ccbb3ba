// Package config loads the Recorder and Converter configuration from
// YAML with environment-variable overrides, and watches the file for
// changes to the non-structural fields (quota and retention) so an
// operator can tune them without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/skywing/fdrlog/internal/ferr"
)

// RecorderConfig is the on-disk shape of the recorder's configuration.
type RecorderConfig struct {
	OutputDir            string        `yaml:"output_dir"`
	FlushThresholdBytes  int           `yaml:"flush_threshold_bytes"`
	MinGuaranteedSpace   int           `yaml:"min_guaranteed_space_bytes"`
	SizeCapBytes         int64         `yaml:"size_cap_bytes"`
	MaxLogCount          int           `yaml:"max_log_count"`
	MinFreeBytes         int64         `yaml:"min_free_bytes"`
	TickPeriod           time.Duration `yaml:"tick_period"`
	EncryptionPubKeyPath string        `yaml:"encryption_public_key_path"`
}

// ConverterConfig is the on-disk shape of the extractor/converter's
// configuration.
type ConverterConfig struct {
	OnlyFlight         bool   `yaml:"only_flight"`
	MinFirmwareVersion string `yaml:"min_firmware_version"`
	OutputDir          string `yaml:"output_dir"`
}

// Config is the top-level file this module loads, covering both
// binaries so they can share one deployment artifact.
type Config struct {
	Recorder  RecorderConfig  `yaml:"recorder"`
	Converter ConverterConfig `yaml:"converter"`
}

func defaults() Config {
	return Config{
		Recorder: RecorderConfig{
			OutputDir:           "/data/fdrlog",
			FlushThresholdBytes: 64 * 1024,
			MinGuaranteedSpace:  4096,
			SizeCapBytes:        64 * 1024 * 1024,
			MaxLogCount:         200,
			MinFreeBytes:        256 * 1024 * 1024,
			TickPeriod:          100 * time.Millisecond,
		},
		Converter: ConverterConfig{
			OnlyFlight:         false,
			MinFirmwareVersion: "1.6.0",
			OutputDir:          "/data/fdrlog/gutma",
		},
	}
}

// Load reads path (if non-empty) over a set of defaults, then applies
// environment overrides. A missing or unreadable file is a warning, not
// a fatal error — the defaults and environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to read config file %s: %v\n", path, err)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, ferr.Format("config", "Load", "failed to parse config file").Wrap(err)
		}
	}

	applyEnvironmentOverrides(&cfg)

	if cfg.Recorder.OutputDir == "" {
		return nil, ferr.Format("config", "Load", "recorder.output_dir must be set")
	}
	return &cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if v := getEnvString("FDRLOG_OUTPUT_DIR", ""); v != "" {
		cfg.Recorder.OutputDir = v
	}
	if v := getEnvInt64("FDRLOG_SIZE_CAP_BYTES", 0); v != 0 {
		cfg.Recorder.SizeCapBytes = v
	}
	if v := getEnvInt("FDRLOG_MAX_LOG_COUNT", 0); v != 0 {
		cfg.Recorder.MaxLogCount = v
	}
	if v := getEnvInt64("FDRLOG_MIN_FREE_BYTES", 0); v != 0 {
		cfg.Recorder.MinFreeBytes = v
	}
	if v := getEnvString("FDRLOG_ENCRYPTION_PUBLIC_KEY", ""); v != "" {
		cfg.Recorder.EncryptionPubKeyPath = v
	}
	if v := getEnvBool("FDRLOG_CONVERTER_ONLY_FLIGHT", cfg.Converter.OnlyFlight); v != cfg.Converter.OnlyFlight {
		cfg.Converter.OnlyFlight = v
	}
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
