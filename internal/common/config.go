package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Portal      PortalConfig  `toml:"portal"`
	Pacing      PacingConfig  `toml:"pacing"`
	Retry       RetryConfig   `toml:"retry"`
	Storage     StorageConfig `toml:"storage"`
	Export      ExportConfig  `toml:"export"`
	Logging     LoggingConfig `toml:"logging"`
}

// PortalConfig contains the target portal and browser automation settings
type PortalConfig struct {
	BaseURL           string        `toml:"base_url" validate:"required,url"` // Portal root, also the login page
	Headless          bool          `toml:"headless"`                         // Headful by default so the operator can log in
	ChromePath        string        `toml:"chrome_path"`                      // Explicit Chrome binary, empty = auto-detect
	PageLoadWait      time.Duration `toml:"page_load_wait"`                   // Settle time after navigation
	PaginationWait    time.Duration `toml:"pagination_wait"`                  // Settle time after a pager click or partition select
	DropdownWait      time.Duration `toml:"dropdown_wait"`                    // Settle time after closing the partition dropdown
	AccordionWait     time.Duration `toml:"accordion_wait"`                   // Settle time after expanding detail panels
	NavigationTimeout time.Duration `toml:"navigation_timeout" validate:"gt=0"`
}

// PacingConfig throttles portal traffic
type PacingConfig struct {
	RequestInterval time.Duration `toml:"request_interval" validate:"gt=0"` // Minimum spacing between page fetches
	BatchSize       int           `toml:"batch_size" validate:"gt=0"`       // Items between long pauses in detail scrapes
	BatchPause      time.Duration `toml:"batch_pause"`                      // Long pause at each batch boundary
}

// RetryConfig bounds per-unit retry behavior for transient failures
type RetryConfig struct {
	MaxAttempts       int           `toml:"max_attempts" validate:"gte=1"`
	InitialBackoff    time.Duration `toml:"initial_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
	BackoffMultiplier float64       `toml:"backoff_multiplier" validate:"gte=1"`
}

type StorageConfig struct {
	Badger        BadgerConfig `toml:"badger"`
	CheckpointDir string       `toml:"checkpoint_dir" validate:"required"` // Per-phase checkpoint files
	LedgerDir     string       `toml:"ledger_dir" validate:"required"`     // Per-phase error ledger files
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path string `toml:"path" validate:"required"` // Database directory path
}

// ExportConfig controls JSON export output
type ExportConfig struct {
	Dir string `toml:"dir" validate:"required"` // Export directory for master list and detail dumps
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in messis.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Portal: PortalConfig{
			BaseURL:           "https://www.ocip.express",
			Headless:          false, // Operator completes the login by hand
			PageLoadWait:      3 * time.Second,
			PaginationWait:    1500 * time.Millisecond,
			DropdownWait:      500 * time.Millisecond,
			AccordionWait:     1 * time.Second,
			NavigationTimeout: 30 * time.Second,
		},
		Pacing: PacingConfig{
			RequestInterval: 1 * time.Second,
			BatchSize:       50,
			BatchPause:      10 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/db",
			},
			CheckpointDir: "./data/checkpoints",
			LedgerDir:     "./data/errors",
		},
		Export: ExportConfig{
			Dir: "./data/exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the assembled configuration before anything starts
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MESSIS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Portal configuration
	if baseURL := os.Getenv("MESSIS_PORTAL_BASE_URL"); baseURL != "" {
		config.Portal.BaseURL = baseURL
	}
	if headless := os.Getenv("MESSIS_PORTAL_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Portal.Headless = h
		}
	}
	if chromePath := os.Getenv("MESSIS_PORTAL_CHROME_PATH"); chromePath != "" {
		config.Portal.ChromePath = chromePath
	}
	if navTimeout := os.Getenv("MESSIS_PORTAL_NAVIGATION_TIMEOUT"); navTimeout != "" {
		if d, err := time.ParseDuration(navTimeout); err == nil {
			config.Portal.NavigationTimeout = d
		}
	}

	// Pacing configuration
	if interval := os.Getenv("MESSIS_PACING_REQUEST_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Pacing.RequestInterval = d
		}
	}
	if batchSize := os.Getenv("MESSIS_PACING_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Pacing.BatchSize = bs
		}
	}
	if batchPause := os.Getenv("MESSIS_PACING_BATCH_PAUSE"); batchPause != "" {
		if d, err := time.ParseDuration(batchPause); err == nil {
			config.Pacing.BatchPause = d
		}
	}

	// Retry configuration
	if maxAttempts := os.Getenv("MESSIS_RETRY_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Retry.MaxAttempts = ma
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("MESSIS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if checkpointDir := os.Getenv("MESSIS_CHECKPOINT_DIR"); checkpointDir != "" {
		config.Storage.CheckpointDir = checkpointDir
	}
	if ledgerDir := os.Getenv("MESSIS_LEDGER_DIR"); ledgerDir != "" {
		config.Storage.LedgerDir = ledgerDir
	}

	// Export configuration
	if exportDir := os.Getenv("MESSIS_EXPORT_DIR"); exportDir != "" {
		config.Export.Dir = exportDir
	}

	// Logging configuration
	if level := os.Getenv("MESSIS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MESSIS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("MESSIS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
