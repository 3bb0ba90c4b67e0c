// Package config loads the relay's startup configuration from a YAML file,
// the only place gnp-x-stegodon's declared (but, in the retrieval pack,
// unused) gopkg.in/yaml.v3 dependency gets exercised. Validation follows
// uncord-chat-uncord-server's accumulate-every-error-then-join style.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay's on-disk configuration. Runtime state that changes
// after bootstrap (approval-required, whitelist-enabled, the private key)
// lives in store.Store's config table instead, seeded from here on first run.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	Journald bool   `yaml:"journald"`

	Name string `yaml:"name"`
	Note string `yaml:"note"`

	ApprovalRequired bool `yaml:"approval_required"`
	WhitelistEnabled bool `yaml:"whitelist_enabled"`

	CacheBackend string `yaml:"cache_backend"` // "sqlite" or "redis"
	RedisAddr    string `yaml:"redis_addr"`

	PushWorkers  int           `yaml:"push_workers"`
	PushTimeout  time.Duration `yaml:"push_timeout"`
	ResponseTTL  time.Duration `yaml:"response_ttl"`  // not read; the response-cache window is the fixed 48h responseMaxAge in activitypub/client.go
	CacheSweepH  int           `yaml:"cache_sweep_hours"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int         `yaml:"rate_limit_burst"`
}

func defaults() Config {
	return Config{
		Host:             "localhost",
		Port:             8080,
		DBPath:           "relay.db",
		LogLevel:         "info",
		Journald:         false,
		Name:             "Relay",
		Note:             "ActivityPub relay",
		ApprovalRequired: true,
		WhitelistEnabled: false,
		CacheBackend:     "sqlite",
		PushWorkers:      8,
		PushTimeout:      10 * time.Second,
		ResponseTTL:      48 * time.Hour,
		CacheSweepH:      24 * 14,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
	}
}

// Load reads path (or the CONFIG_FILE env var if path is empty), merging
// onto defaults(). A missing file is not an error: the relay starts on
// defaults alone, and no config file is written.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg := defaults()
	if path == "" {
		return &cfg, cfg.validate()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, cfg.validate()
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.CacheBackend != "sqlite" && c.CacheBackend != "redis" {
		errs = append(errs, fmt.Errorf("cache_backend must be \"sqlite\" or \"redis\", got %q", c.CacheBackend))
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is required when cache_backend is \"redis\""))
	}
	if c.PushWorkers < 1 {
		errs = append(errs, fmt.Errorf("push_workers must be at least 1, got %d", c.PushWorkers))
	}
	return errors.Join(errs...)
}
