// Package workos assembles a team workspace: shared storage, the change bus,
// the board, calendar, chat, AI report, strategy scoring, and the session.
package workos

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/madhatter5501/WorkOS/agents/provider"
	"github.com/madhatter5501/WorkOS/internal/broadcast"
	"github.com/madhatter5501/WorkOS/internal/db"
)

// DefaultConfigFile is read when no config path is given.
const DefaultConfigFile = "workos.toml"

// Config holds workspace configuration.
type Config struct {
	Store StoreConfig `toml:"store"`
	Bus   BusConfig   `toml:"bus"`
	AI    AIConfig    `toml:"ai"`

	// HTTP
	Listen string `toml:"listen"`

	// Timings
	NoticeTTL        time.Duration `toml:"notice_ttl"`
	EvaluateInterval time.Duration `toml:"evaluate_interval"` // Pause between scores of an evaluate-all run
	SpeakerInterval  time.Duration `toml:"speaker_interval"`  // Demo room speaker rotation
	ResyncInterval   time.Duration `toml:"resync_interval"`   // Full reload, covers dropped bus events

	// Behavior
	DemoRoom bool `toml:"demo_room"`

	// Logging
	LogLevel string `toml:"log_level"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver db.Driver `toml:"driver"`
	DSN    string    `toml:"dsn"`
}

// BusConfig selects the change bus.
type BusConfig struct {
	Driver broadcast.Driver `toml:"driver"`
	DSN    string           `toml:"dsn"`
}

// AIConfig configures the Gemini client.
type AIConfig struct {
	APIKey  string        `toml:"api_key"`
	Model   string        `toml:"model"`
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:            StoreConfig{Driver: db.DriverSQLite, DSN: "workos.db"},
		Bus:              BusConfig{Driver: broadcast.DriverLocal},
		AI:               AIConfig{Model: provider.DefaultModel, Timeout: provider.DefaultTimeout},
		Listen:           ":8080",
		NoticeTTL:        3 * time.Second,
		EvaluateInterval: 500 * time.Millisecond,
		SpeakerInterval:  3 * time.Second,
		ResyncInterval:   time.Minute,
		DemoRoom:         true,
		LogLevel:         "info",
	}
}

// LoadConfig layers defaults, the TOML file at path, and the environment.
// A missing file is only an error when path was given explicitly.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
// GOOGLE_API_KEY takes precedence over API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := firstNonEmpty(getenv("GOOGLE_API_KEY"), getenv("API_KEY")); v != "" {
		c.AI.APIKey = v
	}
	if v := getenv("WORKOS_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := getenv("WORKOS_STORE_DRIVER"); v != "" {
		c.Store.Driver = db.Driver(strings.ToLower(v))
	}
	if v := getenv("WORKOS_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := getenv("WORKOS_BUS_DRIVER"); v != "" {
		c.Bus.Driver = broadcast.Driver(strings.ToLower(v))
	}
	if v := getenv("WORKOS_BUS_DSN"); v != "" {
		c.Bus.DSN = v
	}
	if v := getenv("WORKOS_LISTEN"); v != "" {
		c.Listen = v
	}
}

// Validate checks driver names and that network backends have a DSN.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case db.DriverSQLite, db.DriverFile, db.DriverRedis, db.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
		}
	case db.DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Bus.Driver {
	case broadcast.DriverLocal:
	case broadcast.DriverRedis, broadcast.DriverPostgres:
		if c.Bus.DSN == "" {
			return fmt.Errorf("bus driver %s requires a dsn", c.Bus.Driver)
		}
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
