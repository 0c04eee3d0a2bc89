package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/seantiz/fam/internal/registry"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "fam.db"
	defaultMaxWorkers    = 4
	defaultPurgeInterval = time.Minute

	envConfigFile    = "FAM_CONFIG"
	envListenAddr    = "FAM_LISTEN_ADDR"
	envDBPath        = "FAM_DB_PATH"
	envLogLevel      = "FAM_LOG_LEVEL"
	envMaxWorkers    = "FAM_MAX_WORKERS"
	envPurgeInterval = "FAM_PURGE_INTERVAL"
	envPurgeWhenIdle = "FAM_PURGE_WHEN_IDLE"
)

// Config holds application configuration.
type Config struct {
	ListenAddr    string
	DBPath        string
	LogLevel      slog.Level
	MaxWorkers    int
	PurgeInterval time.Duration
	// PurgeWhenIdle enables registry.PolicyRunnerIdle.
	PurgeWhenIdle bool
}

// fileConfig mirrors Config in an HCL file. Every attribute is optional.
type fileConfig struct {
	ListenAddr    *string `hcl:"listen_addr,optional"`
	DBPath        *string `hcl:"db_path,optional"`
	LogLevel      *string `hcl:"log_level,optional"`
	MaxWorkers    *int    `hcl:"max_workers,optional"`
	PurgeInterval *string `hcl:"purge_interval,optional"`
	PurgeWhenIdle *bool   `hcl:"purge_when_idle,optional"`
}

// Load builds the configuration from defaults, then the HCL file named by
// FAM_CONFIG (if set), then environment variables. Malformed environment
// values are ignored; a malformed file is an error.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		MaxWorkers:    defaultMaxWorkers,
		PurgeInterval: defaultPurgeInterval,
	}

	if path := os.Getenv(envConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envMaxWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv(envPurgeInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.PurgeInterval = d
		}
	}
	if v := os.Getenv(envPurgeWhenIdle); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PurgeWhenIdle = b
		}
	}

	return cfg, nil
}

// applyFile decodes the HCL file at path over cfg.
func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}

	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = parseLogLevel(*fc.LogLevel)
	}
	if fc.MaxWorkers != nil {
		if *fc.MaxWorkers <= 0 {
			return fmt.Errorf("config file %s: max_workers must be positive, got %d", path, *fc.MaxWorkers)
		}
		cfg.MaxWorkers = *fc.MaxWorkers
	}
	if fc.PurgeInterval != nil {
		d, err := time.ParseDuration(*fc.PurgeInterval)
		if err != nil || d < 0 {
			return fmt.Errorf("config file %s: invalid purge_interval %q", path, *fc.PurgeInterval)
		}
		cfg.PurgeInterval = d
	}
	if fc.PurgeWhenIdle != nil {
		cfg.PurgeWhenIdle = *fc.PurgeWhenIdle
	}
	return nil
}

// PurgePolicy returns the registry purge policy selected by the configuration.
func (c Config) PurgePolicy() registry.Policy {
	if c.PurgeWhenIdle {
		return registry.PolicyRunnerIdle
	}
	return registry.PolicyCompletedOnly
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
