// Package config loads and validates the engine's runtime configuration and
// the ladder/initial-fragment seeding configuration, both as YAML with
// environment variable expansion for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the engine (cmd/engine).
type Config struct {
	Trader  TraderConfig  `yaml:"trader"`
	Venue   VenueConfig   `yaml:"venue"`
	Spawner SpawnerConfig `yaml:"spawner"`
	System  SystemConfig  `yaml:"system"`
}

// TraderConfig names the trader instance and the single pair it trades.
type TraderConfig struct {
	Name          string `yaml:"name" validate:"required"`
	Base          string `yaml:"base" validate:"required"`
	Quote         string `yaml:"quote" validate:"required"`
	ReceiveWindowSeconds int `yaml:"receive_window_seconds"`
}

// VenueConfig holds the exchange credentials and connection parameters.
type VenueConfig struct {
	APIKey    Secret `yaml:"api_key" validate:"required"`
	SecretKey Secret `yaml:"secret_key" validate:"required"`
	BaseURL   string `yaml:"base_url"`
}

// LadderConfig describes the monotonic price ladder the engine trades
// against, shared by the runtime config (to rebuild the IntervalTracker) and
// the seeding CLI.
type LadderConfig struct {
	FirstStop          string `yaml:"first_stop" validate:"required"`
	Factor             string `yaml:"factor" validate:"required"`
	StopCount          int    `yaml:"stop_count" validate:"required,min=2"`
	ExchangeTickSize   string `yaml:"exchange_tick_size"`
	InternalTickSize   string `yaml:"internal_tick_size"`
	PriceOffset        string `yaml:"price_offset"`
}

// SpawnerConfig selects the Spawner policy and its parameters.
type SpawnerConfig struct {
	// Variant is one of "null", "naive_down_spread", "stable_down_spread".
	Variant             string       `yaml:"variant" validate:"required,oneof=null naive_down_spread stable_down_spread"`
	Ladder              LadderConfig `yaml:"ladder"`
	Proportions         []string     `yaml:"proportions"`
	TakeHomeInitialSell string       `yaml:"take_home_initial_sell"`
	TakeHomeSubsequentSell string     `yaml:"take_home_subsequent_sell"`
	TakeHomeSubsequentBuy  string     `yaml:"take_home_subsequent_buy"`
}

// SystemConfig holds ambient, non-domain settings.
type SystemConfig struct {
	LogLevel   string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	DBPath     string `yaml:"db_path" validate:"required"`
	StatsEvery time.Duration `yaml:"-"`
}

// SeedConfig is the configuration recognized by the ladder + initial
// fragment seeding tool (cmd/seed); distinct from Config because it runs
// before the engine and writes directly to the store.
type SeedConfig struct {
	Pair struct {
		Base  string `yaml:"base" validate:"required"`
		Quote string `yaml:"quote" validate:"required"`
	} `yaml:"pair"`
	Amount string       `yaml:"amount" validate:"required"`
	Ladder LadderConfig `yaml:"ladder"`
	Initial struct {
		SpawnBeginOffset int `yaml:"spawn_begin_offset"`
		SpawnEndOffset   int `yaml:"spawn_end_offset"`
	} `yaml:"initial"`
	DBPath string `yaml:"db_path" validate:"required"`
}

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// Load reads, env-expands, parses and validates the runtime configuration.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Trader.ReceiveWindowSeconds == 0 {
		cfg.Trader.ReceiveWindowSeconds = 15
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadSeedConfig reads, env-expands, parses and validates the seeding
// configuration.
func LoadSeedConfig(filename string) (*SeedConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg SeedConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Pair.Base == "" || cfg.Pair.Quote == "" {
		return nil, ValidationError{Field: "pair", Message: "both base and quote are required"}
	}
	if cfg.Amount == "" {
		return nil, ValidationError{Field: "amount", Message: "amount is required"}
	}
	if cfg.DBPath == "" {
		return nil, ValidationError{Field: "db_path", Message: "db_path is required"}
	}
	if err := cfg.Ladder.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate walks every sub-config and accumulates every failure found, so an
// operator sees the whole list of problems in one pass rather than fixing
// them one at a time.
func (c *Config) Validate() error {
	var errs []string

	if c.Trader.Name == "" {
		errs = append(errs, ValidationError{Field: "trader.name", Message: "trader name is required"}.Error())
	}
	if c.Trader.Base == "" || c.Trader.Quote == "" {
		errs = append(errs, ValidationError{Field: "trader.base/quote", Message: "both base and quote are required"}.Error())
	}
	if c.Venue.APIKey == "" {
		errs = append(errs, ValidationError{Field: "venue.api_key", Message: "api key is required"}.Error())
	}
	if c.Venue.SecretKey == "" {
		errs = append(errs, ValidationError{Field: "venue.secret_key", Message: "secret key is required"}.Error())
	}

	validSpawners := []string{"null", "naive_down_spread", "stable_down_spread"}
	if !contains(validSpawners, c.Spawner.Variant) {
		errs = append(errs, ValidationError{
			Field:   "spawner.variant",
			Value:   c.Spawner.Variant,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validSpawners, ", ")),
		}.Error())
	}
	if c.Spawner.Variant != "null" {
		if err := c.Spawner.Ladder.validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		errs = append(errs, ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}.Error())
	}
	if c.System.DBPath == "" {
		errs = append(errs, ValidationError{Field: "system.db_path", Message: "db_path is required"}.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (l LadderConfig) validate() error {
	if l.FirstStop == "" {
		return ValidationError{Field: "ladder.first_stop", Message: "first_stop is required"}
	}
	if l.Factor == "" {
		return ValidationError{Field: "ladder.factor", Message: "factor is required"}
	}
	if l.StopCount < 2 {
		return ValidationError{Field: "ladder.stop_count", Value: l.StopCount, Message: "must be at least 2"}
	}
	return nil
}

// String renders the configuration with secrets masked, for startup logging.
func (c *Config) String() string {
	cp := *c
	data, _ := yaml.Marshal(cp)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
