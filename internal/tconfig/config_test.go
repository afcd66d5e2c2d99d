package tconfig

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestDefaultsAreRunnable(t *testing.T) {
	cfg := Defaults()
	if cfg.ListenAddr == "" || cfg.TracerPath == "" || cfg.LangBExt == "" || cfg.TempDir == "" {
		t.Fatalf("expected every default field to be populated, got %+v", cfg)
	}
	if cfg.EvaluatorDeadlineMS == 0 || cfg.TracerTimeoutSec == 0 || cfg.InstrumentCacheSize == 0 {
		t.Fatalf("expected non-zero numeric defaults, got %+v", cfg)
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Defaults()
	cfg.ListenAddr = "0.0.0.0:8080"
	if err := SaveConfig(&cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	fullPath, err := GetConfigFilePath(configFileName)
	if err != nil {
		t.Fatalf("GetConfigFilePath failed: %v", err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("decoding saved config: %v", err)
	}
	if loaded.ListenAddr != "0.0.0.0:8080" {
		t.Errorf("expected ListenAddr to round-trip, got %q", loaded.ListenAddr)
	}
}

func TestLoadConfigWritesDefaultOnFirstRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := LoadConfig()
	if cfg.ListenAddr != Defaults().ListenAddr {
		t.Fatalf("expected LoadConfig to fall back to defaults, got %+v", cfg)
	}
	fullPath, err := GetConfigFilePath(configFileName)
	if err != nil {
		t.Fatalf("GetConfigFilePath failed: %v", err)
	}
	if _, err := os.Stat(filepath.Clean(fullPath)); err != nil {
		t.Fatalf("expected a default config file to be written, stat failed: %v", err)
	}
}
