// Package config loads the user configuration from YAML with environment
// overrides. Secrets are not part of it; the backend token lives in the OS
// keyring (see internal/secret).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
)

// StoreConfig selects where templates are persisted. Driver is one of
// sqlite (the local data file), postgres, mysql, mongo or http.
type StoreConfig struct {
	Driver            string  `yaml:"driver"`
	DSN               string  `yaml:"dsn"`
	MongoDatabase     string  `yaml:"mongo_database"`
	BaseURL           string  `yaml:"base_url"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Timeout returns the HTTP store timeout.
func (s StoreConfig) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Duration(Defaults().Store.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

type PacingConfig struct {
	BatchSize      int `yaml:"batch_size"`
	ElementDelayMs int `yaml:"element_delay_ms"`
	BatchDelayMs   int `yaml:"batch_delay_ms"`
	SettleDelayMs  int `yaml:"settle_delay_ms"`
}

// Pacing converts the config into the generator's pacing policy.
func (p PacingConfig) Pacing() generator.Pacing {
	return generator.Pacing{
		BatchSize:    p.BatchSize,
		ElementDelay: time.Duration(p.ElementDelayMs) * time.Millisecond,
		BatchDelay:   time.Duration(p.BatchDelayMs) * time.Millisecond,
		SettleDelay:  time.Duration(p.SettleDelayMs) * time.Millisecond,
	}
}

type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Config struct {
	DataDir string       `yaml:"data_dir"`
	Store   StoreConfig  `yaml:"store"`
	Pacing  PacingConfig `yaml:"pacing"`
	Logging log.Options  `yaml:"logging"`
	Watch   WatchConfig  `yaml:"watch"`
}

func Defaults() Config {
	p := generator.DefaultPacing()
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".canvaskit"),
		Store:   StoreConfig{Driver: "sqlite", TimeoutMs: 15000, RequestsPerSecond: 5},
		Pacing: PacingConfig{
			BatchSize:      p.BatchSize,
			ElementDelayMs: int(p.ElementDelay / time.Millisecond),
			BatchDelayMs:   int(p.BatchDelay / time.Millisecond),
			SettleDelayMs:  int(p.SettleDelay / time.Millisecond),
		},
		Logging: log.Options{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile   = "CANVASKIT_CONFIG"
	EnvDataDir      = "CANVASKIT_DATA_DIR"
	EnvStoreDriver  = "CANVASKIT_STORE_DRIVER"
	EnvStoreDSN     = "CANVASKIT_STORE_DSN"
	EnvStoreURL     = "CANVASKIT_STORE_URL"
	EnvBatchSize    = "CANVASKIT_BATCH_SIZE"
	EnvElementDelay = "CANVASKIT_ELEMENT_DELAY_MS"
	EnvBatchDelay   = "CANVASKIT_BATCH_DELAY_MS"
	EnvWatchDir     = "CANVASKIT_WATCH_DIR"
	EnvLogLevel     = "CANVASKIT_LOG_LEVEL"
	EnvLogFormat    = "CANVASKIT_LOG_FORMAT"
	EnvLogFile      = "CANVASKIT_LOG_FILE"
	EnvLogSource    = "CANVASKIT_LOG_SOURCE"
)

// Path returns the config file path: $CANVASKIT_CONFIG, else
// $XDG_CONFIG_HOME/canvaskit/config.yaml, else ~/.config/canvaskit/config.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "canvaskit", "config.yaml"), nil
}

// Load reads path (or Path() when empty), merges it over the defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		p, err := Path()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes cfg as YAML to path, creating the directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst, src *Config) {
	if s := strings.TrimSpace(src.DataDir); s != "" {
		dst.DataDir = expandHome(s)
	}
	if src.Store.Driver != "" {
		dst.Store.Driver = strings.ToLower(strings.TrimSpace(src.Store.Driver))
	}
	if src.Store.DSN != "" {
		dst.Store.DSN = src.Store.DSN
	}
	if src.Store.MongoDatabase != "" {
		dst.Store.MongoDatabase = src.Store.MongoDatabase
	}
	if src.Store.BaseURL != "" {
		dst.Store.BaseURL = src.Store.BaseURL
	}
	if src.Store.TimeoutMs != 0 {
		dst.Store.TimeoutMs = src.Store.TimeoutMs
	}
	if src.Store.RequestsPerSecond != 0 {
		dst.Store.RequestsPerSecond = src.Store.RequestsPerSecond
	}
	if src.Pacing.BatchSize > 0 {
		dst.Pacing.BatchSize = src.Pacing.BatchSize
	}
	if src.Pacing.ElementDelayMs != 0 {
		dst.Pacing.ElementDelayMs = src.Pacing.ElementDelayMs
	}
	if src.Pacing.BatchDelayMs != 0 {
		dst.Pacing.BatchDelayMs = src.Pacing.BatchDelayMs
	}
	if src.Pacing.SettleDelayMs != 0 {
		dst.Pacing.SettleDelayMs = src.Pacing.SettleDelayMs
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.AddSource = src.Logging.AddSource
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = expandHome(s)
	}
	dst.Watch.Enabled = src.Watch.Enabled
	if s := strings.TrimSpace(src.Watch.Dir); s != "" {
		dst.Watch.Dir = expandHome(s)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := env(EnvDataDir); v != "" {
		cfg.DataDir = expandHome(v)
	}
	if v := env(EnvStoreDriver); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := env(EnvStoreDSN); v != "" {
		cfg.Store.DSN = v
	}
	if v := env(EnvStoreURL); v != "" {
		cfg.Store.BaseURL = v
	}
	if n, ok := envInt(EnvBatchSize); ok && n > 0 {
		cfg.Pacing.BatchSize = n
	}
	if n, ok := envInt(EnvElementDelay); ok {
		cfg.Pacing.ElementDelayMs = n
	}
	if n, ok := envInt(EnvBatchDelay); ok {
		cfg.Pacing.BatchDelayMs = n
	}
	if v := env(EnvWatchDir); v != "" {
		cfg.Watch.Dir = expandHome(v)
		cfg.Watch.Enabled = true
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
	if v := env(EnvLogSource); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.AddSource = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
}

// DatabasePath is the local SQLite file holding the canvas and, with the
// sqlite driver, the templates.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "canvaskit.db")
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func envInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
