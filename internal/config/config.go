package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Policy   PolicyConfig   `yaml:"policy"`
	Worker   WorkerConfig   `yaml:"worker"`
	CORS     CORSConfig     `yaml:"cors"`

	// DevMode allows running without an API secret. Env-only.
	DevMode bool `yaml:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APISecret string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PolicyConfig holds the classification thresholds.
type PolicyConfig struct {
	HeartbeatStaleDays float64 `yaml:"heartbeat_stale_days"`
	StallWorkdays      int     `yaml:"stall_workdays"`
	PrepHoursPerDay    float64 `yaml:"prep_hours_per_day"`
	EndingSoonDays     int     `yaml:"ending_soon_days"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	// RiskSnapshotSchedule is a five-field cron expression. Empty disables
	// the worker.
	RiskSnapshotSchedule string `yaml:"risk_snapshot_schedule"`
	Timezone             string `yaml:"timezone"`
}

// CORSConfig controls cross-origin access for the browser dashboard.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ClassifierPolicy converts the thresholds into the classifier's policy.
func (c *Config) ClassifierPolicy() lifecycle.Policy {
	return lifecycle.Policy{
		HeartbeatStaleDays: c.Policy.HeartbeatStaleDays,
		StallWorkdays:      c.Policy.StallWorkdays,
		PrepHoursPerDay:    c.Policy.PrepHoursPerDay,
		EndingSoonDays:     c.Policy.EndingSoonDays,
	}
}

// Location resolves the worker timezone. Validation guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Worker.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("POCPORTAL_CONFIG_PATH", "config/pocportal.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefaults() *Config {
	p := lifecycle.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/pocportal.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Policy: PolicyConfig{
			HeartbeatStaleDays: p.HeartbeatStaleDays,
			StallWorkdays:      p.StallWorkdays,
			PrepHoursPerDay:    p.PrepHoursPerDay,
			EndingSoonDays:     p.EndingSoonDays,
		},
		Worker: WorkerConfig{
			RiskSnapshotSchedule: "0 6 * * 1-5",
			Timezone:             "Local",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("POCPORTAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	} else if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setDuration("POCPORTAL_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("POCPORTAL_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("POCPORTAL_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("POCPORTAL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth (API_SHARED_SECRET is the name older SE tooling exports)
	if v := os.Getenv("POCPORTAL_API_SECRET"); v != "" {
		cfg.Auth.APISecret = v
	} else if v := os.Getenv("API_SHARED_SECRET"); v != "" {
		cfg.Auth.APISecret = v
	}
	cfg.DevMode = os.Getenv("POCPORTAL_DEV_MODE") == "true"

	// Log
	if v := os.Getenv("POCPORTAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("POCPORTAL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Policy
	if v := os.Getenv("POCPORTAL_HEARTBEAT_STALE_DAYS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Policy.HeartbeatStaleDays = f
		}
	}
	if v := os.Getenv("POCPORTAL_STALL_WORKDAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Policy.StallWorkdays = n
		}
	}
	if v := os.Getenv("POCPORTAL_PREP_HOURS_PER_DAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Policy.PrepHoursPerDay = f
		}
	}
	if v := os.Getenv("POCPORTAL_ENDING_SOON_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Policy.EndingSoonDays = n
		}
	}

	// Worker. "off" disables the schedule, since an empty value never overrides.
	if v := os.Getenv("POCPORTAL_RISK_SNAPSHOT_SCHEDULE"); v != "" {
		if v == "off" {
			v = ""
		}
		cfg.Worker.RiskSnapshotSchedule = v
	}
	if v := os.Getenv("POCPORTAL_TIMEZONE"); v != "" {
		cfg.Worker.Timezone = v
	}

	// CORS
	if v := os.Getenv("POCPORTAL_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

func setDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// LoadLocal loads configuration for CLI commands that read the database
// directly. Sources are the same as Load, but no API secret is required.
func LoadLocal() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("POCPORTAL_CONFIG_PATH", "config/pocportal.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := errors.Join(cfg.validateCommon()...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the loaded configuration. The API secret is required
// unless dev mode is on.
func (c *Config) validate() error {
	errs := c.validateCommon()
	if !c.DevMode && c.Auth.APISecret == "" {
		errs = append(errs, errors.New("POCPORTAL_API_SECRET is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateCommon() []error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if c.Policy.HeartbeatStaleDays <= 0 {
		errs = append(errs, errors.New("policy.heartbeat_stale_days must be positive"))
	}
	if c.Policy.StallWorkdays <= 0 {
		errs = append(errs, errors.New("policy.stall_workdays must be positive"))
	}
	if c.Policy.PrepHoursPerDay <= 0 {
		errs = append(errs, errors.New("policy.prep_hours_per_day must be positive"))
	}
	if c.Policy.EndingSoonDays < 0 {
		errs = append(errs, errors.New("policy.ending_soon_days must not be negative"))
	}
	if c.Worker.RiskSnapshotSchedule != "" {
		if _, err := ParseSchedule(c.Worker.RiskSnapshotSchedule); err != nil {
			errs = append(errs, fmt.Errorf("worker.risk_snapshot_schedule: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Worker.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("worker.timezone: %w", err))
	}
	return errs
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
