// Package config provides configuration loading for the rules search service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the corpus store backend.
// Driver is "sqlite" (default) or "postgres". The postgres connection
// parameters can be overridden from the environment (DB_HOST, DB_NAME,
// DB_USER, DB_PASSWORD, DB_PORT).
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite database file
	Host     string `yaml:"host"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
}

// EmbeddingConfig holds embedding model settings. The model identifier is
// fixed to all-MiniLM-L6-v2; only its on-disk location is configurable.
// UseMock swaps the model for the deterministic hash embedder; it exists for
// development without the ONNX runtime and must never be set in production.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	UseMock    bool   `yaml:"use_mock"`
}

// SearchConfig holds result-limit settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// WatchConfig holds drop-directory auto-ingest settings. Empty directory
// disables watching.
type WatchConfig struct {
	Directory string `yaml:"directory"`
}

// Load reads and parses the config file at path, then applies defaults and
// environment overrides. A missing file is not an error: the service runs on
// defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overlays store connection parameters from the environment, using
// the variable names the deployment has always used.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Store.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Port = port
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
}
