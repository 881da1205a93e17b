package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	p := cfg.Pacing.Pacing()
	if p.BatchSize != 8 || p.ElementDelay != 300*time.Millisecond || p.BatchDelay != 3*time.Second {
		t.Errorf("default pacing = %+v", p)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
}

func TestLoad_FileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
data_dir: /srv/canvaskit
store:
  driver: Postgres
  dsn: postgres://u:p@localhost/canvas?sslmode=disable
pacing:
  batch_size: 4
logging:
  level: DEBUG
watch:
  enabled: true
  dir: /srv/templates
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/srv/canvaskit" || cfg.DatabasePath() != "/srv/canvaskit/canvaskit.db" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Pacing.BatchSize != 4 || cfg.Pacing.BatchDelayMs != 3000 {
		t.Errorf("pacing = %+v", cfg.Pacing)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Dir != "/srv/templates" {
		t.Errorf("watch = %+v", cfg.Watch)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvStoreDriver, "HTTP")
	t.Setenv(EnvStoreURL, "https://api.example.test")
	t.Setenv(EnvBatchSize, "2")
	t.Setenv(EnvWatchDir, "/tmp/watch")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != "http" || cfg.Store.BaseURL != "https://api.example.test" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Pacing.BatchSize != 2 {
		t.Errorf("batch size = %d", cfg.Pacing.BatchSize)
	}
	if !cfg.Watch.Enabled {
		t.Error("watch dir env should enable watching")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("store: [unclosed"), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Store.Driver = "mongo"
	cfg.Store.MongoDatabase = "canvaskit"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Store.Driver != "mongo" || got.Store.MongoDatabase != "canvaskit" {
		t.Errorf("store = %+v", got.Store)
	}
}

func TestPath_XDG(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	p, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if p != "/xdg/canvaskit/config.yaml" {
		t.Errorf("Path() = %q", p)
	}
}
