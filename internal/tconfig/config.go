// Package tconfig loads and saves tracehost's YAML configuration file.
package tconfig

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	configDirName  = ".tracehost"
	configFileName = "config.yml"
)

// Config holds every setting tracehost's services need at startup. All
// fields have defaults applied by Defaults() so a freshly-created config
// file (or a missing one) still yields a runnable service.
type Config struct {
	ListenAddr string `yaml:"listen-addr"`

	TracerPath string `yaml:"tracer-path"`
	LangBExt   string `yaml:"lang-b-ext"`
	TempDir    string `yaml:"temp-dir"`

	EvaluatorDeadlineMS uint32 `yaml:"evaluator-deadline-ms"`
	TracerTimeoutSec    int    `yaml:"tracer-timeout-sec"`
	InstrumentCacheSize int    `yaml:"instrument-cache-size"`
}

// Defaults returns a Config populated with tracehost's built-in defaults.
func Defaults() Config {
	return Config{
		ListenAddr:          "localhost:9191",
		TracerPath:          "/usr/local/bin/pythonTracer.py",
		LangBExt:            "py",
		TempDir:             filepath.Join(os.TempDir(), "tracehost"),
		EvaluatorDeadlineMS: 1000,
		TracerTimeoutSec:    5,
		InstrumentCacheSize: 256,
	}
}

// GetConfigFilePath returns the absolute path to name inside tracehost's
// per-user config directory, creating that directory if needed, mirroring
// pkg/config.GetConfigFilePath.
func GetConfigFilePath(name string) (string, error) {
	homeDir, err := userHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// userHomeDir prefers $HOME (checked by os.UserHomeDir) so tests can
// redirect it without touching the real user's config directory, falling
// back to the password database the way pkg/config.GetConfigFilePath does.
func userHomeDir() (string, error) {
	if dir, err := os.UserHomeDir(); err == nil && dir != "" {
		return dir, nil
	}
	u, err := user.Current()
	if err != nil || u.HomeDir == "" {
		return ".", nil
	}
	return u.HomeDir, nil
}

// LoadConfig attempts to populate a Config from config.yml, writing a
// commented default file on first run, mirroring pkg/config.LoadConfig's
// "never fail startup over a missing config" behavior.
func LoadConfig() *Config {
	cfg := Defaults()

	fullPath, err := GetConfigFilePath(configFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracehost: could not resolve config path: %v\n", err)
		return &cfg
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if err := writeDefaultConfig(fullPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "tracehost: could not write default config: %v\n", err)
		}
		return &cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tracehost: could not decode config file %s: %v\n", fullPath, err)
		return &cfg
	}
	return &cfg
}

// SaveConfig marshals cfg and writes it to config.yml, mirroring
// pkg/config.SaveConfig.
func SaveConfig(cfg *Config) error {
	fullPath, err := GetConfigFilePath(configFileName)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(*cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(fullPath, out, 0o600)
}

func writeDefaultConfig(path string, cfg Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := []byte(`# Configuration file for tracehost.
#
# This file was generated with tracehost's built-in defaults. Edit any
# value and restart the service to pick up the change.

`)
	return os.WriteFile(path, append(header, out...), 0o600)
}
