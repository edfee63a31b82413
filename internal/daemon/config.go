// Package daemon loads rallylog configuration, wires the stores together
// and runs the long-lived serve loop.
package daemon

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/pointlog"
	"github.com/rallylog/rallylog/internal/infra/remote"
)

// ConfigFileName is the config file inside the rally home directory.
const ConfigFileName = "config.toml"

// Config is the full rallylog configuration, read from
// <home>/config.toml and overridden by environment variables.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Remote  RemoteConfig  `toml:"remote"`
	Sync    SyncConfig    `toml:"sync"`
	Scoring ScoringConfig `toml:"scoring"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig controls the local HTTP server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig locates local data. An empty Dir means the rally home.
type StorageConfig struct {
	Dir      string `toml:"dir"`
	PointLog string `toml:"point_log"`
}

// RemoteConfig describes the Supabase project. Remote sync is on only when
// URL is set and Key looks like a Supabase key.
type RemoteConfig struct {
	URL       string `toml:"url"`
	Key       string `toml:"key"`
	Table     string `toml:"table"`
	QueueSize int    `toml:"queue_size"`
}

// SyncConfig controls the periodic refresh in `rally serve`.
type SyncConfig struct {
	RefreshInterval string `toml:"refresh_interval"` // Go duration; "0" disables
}

// ScoringConfig selects scoring policy.
type ScoringConfig struct {
	BadServeReceive string `toml:"bad_serve_receive"` // "opponent" | "neither"
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" | "json"
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Storage: StorageConfig{
			PointLog: pointlog.DefaultFileName,
		},
		Remote: RemoteConfig{
			Table:     remote.DefaultTable,
			QueueSize: 64,
		},
		Sync: SyncConfig{
			RefreshInterval: "5m",
		},
		Scoring: ScoringConfig{
			BadServeReceive: "opponent",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns the rally home directory: $RALLY_HOME or ~/.rally.
func Home() string {
	if env := os.Getenv("RALLY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rally")
}

// Load reads <home>/config.toml (if present) over the defaults, then applies
// .env files and environment overrides. A missing file is not an error.
func Load(home string) (Config, error) {
	cfg := DefaultConfig()

	// Real environment wins over .env; godotenv never overwrites.
	_ = godotenv.Load(filepath.Join(home, ".env"))
	_ = godotenv.Load()

	path := filepath.Join(home, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = home
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("RALLY_SUPABASE_URL", "SUPABASE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := firstEnv("RALLY_SUPABASE_KEY", "SUPABASE_KEY"); v != "" {
		cfg.Remote.Key = v
	}
	if v := os.Getenv("RALLY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("RALLY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := domain.CreditTableFor(c.Scoring.BadServeReceive); err != nil {
		return fmt.Errorf("scoring.bad_serve_receive: %w", err)
	}
	if _, err := c.RefreshInterval(); err != nil {
		return fmt.Errorf("sync.refresh_interval: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Addr returns the API listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// PointLogPath returns the local point log file.
func (c Config) PointLogPath() string {
	name := c.Storage.PointLog
	if name == "" {
		name = pointlog.DefaultFileName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.Dir, name)
}

// RefreshInterval parses sync.refresh_interval. Zero disables the job.
func (c Config) RefreshInterval() (time.Duration, error) {
	s := strings.TrimSpace(c.Sync.RefreshInterval)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", d)
	}
	return d, nil
}

// RemoteStore returns the remote store configuration.
func (c Config) RemoteStore() remote.Config {
	return remote.Config{URL: c.Remote.URL, Key: c.Remote.Key, Table: c.Remote.Table}
}

// Credits returns the configured credit table.
func (c Config) Credits() domain.CreditTable {
	t, err := domain.CreditTableFor(c.Scoring.BadServeReceive)
	if err != nil {
		return domain.CurrentCredits
	}
	return t
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if k := c.Remote.Key; k != "" {
		n := 6
		if len(k) < n {
			n = len(k)
		}
		c.Remote.Key = k[:n] + "…"
	}
	return c
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// NewLogger builds the process logger from c.Log.
func (c Config) NewLogger(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
