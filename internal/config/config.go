package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the pipeline. It is loaded
// from YAML with environment variable overrides on top.
type Config struct {
	Roborock RoborockConfig `yaml:"roborock"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	State    StateConfig    `yaml:"state"`
	Poll     PollConfig     `yaml:"poll"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RoborockConfig selects the cloud account credentials.
type RoborockConfig struct {
	// BootstrapFile holds the persisted login state written by the login flow.
	BootstrapFile string `yaml:"bootstrap_file"`
}

// SheetsConfig selects the spreadsheet sink.
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	// BaseURL overrides the Sheets API endpoint. Used by tests.
	BaseURL string `yaml:"base_url,omitempty"`
}

// StateConfig locates the novelty cursor file and its optional mirror.
type StateConfig struct {
	Path   string       `yaml:"path"`
	Mirror MirrorConfig `yaml:"mirror"`
}

// MirrorConfig configures the optional S3-compatible state mirror.
type MirrorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
}

// PollConfig controls polling cadence and history depth.
type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	HistoryLimit int           `yaml:"history_limit"`
}

// UnmarshalYAML accepts Go duration strings ("60s", "5m") for the interval.
func (p *PollConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval     string `yaml:"interval"`
		HistoryLimit *int   `yaml:"history_limit"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("poll.interval: %w", err)
		}
		p.Interval = d
	}
	if raw.HistoryLimit != nil {
		p.HistoryLimit = *raw.HistoryLimit
	}
	return nil
}

// MetricsConfig controls the observability HTTP listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. Values resolve in order:
// defaults, then file values, then RRPIPE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file exists yet, e.g. during first login.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Roborock: RoborockConfig{
			BootstrapFile: "./data/roborock-bootstrap.json",
		},
		State: StateConfig{
			Path: "./data/cursors.json",
			Mirror: MirrorConfig{
				Prefix: "roborock-pipeline",
			},
		},
		Poll: PollConfig{
			Interval:     60 * time.Second,
			HistoryLimit: 20,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RRPIPE_ROBOROCK_BOOTSTRAP_FILE"); v != "" {
		cfg.Roborock.BootstrapFile = v
	}
	if v := os.Getenv("RRPIPE_SHEETS_CREDENTIALS_FILE"); v != "" {
		cfg.Sheets.CredentialsFile = v
	}
	if v := os.Getenv("RRPIPE_SHEETS_SPREADSHEET_ID"); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("RRPIPE_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("RRPIPE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("RRPIPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RRPIPE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poll.Interval = d
		}
	}
}

// Validate checks settings every run mode depends on. Mode-specific
// requirements (sheets credentials, mirror endpoint) are checked where the
// component is built.
func (c *Config) Validate() error {
	if c.Roborock.BootstrapFile == "" {
		return fmt.Errorf("roborock.bootstrap_file is required")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.HistoryLimit < 0 {
		return fmt.Errorf("poll.history_limit must not be negative, got %d", c.Poll.HistoryLimit)
	}
	if c.State.Mirror.Enabled {
		if c.State.Mirror.Endpoint == "" {
			return fmt.Errorf("state.mirror.endpoint is required when the mirror is enabled")
		}
		if c.State.Mirror.Bucket == "" {
			return fmt.Errorf("state.mirror.bucket is required when the mirror is enabled")
		}
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
