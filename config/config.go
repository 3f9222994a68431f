// Package config loads the avatargate configuration.
//
// Precedence: built-in defaults, then YAML file, then AVATARGATE_* env vars.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/avatargate/avatar"
)

// Config is the full avatargate configuration.
type Config struct {
	// AvatarID is the persona injected into speak requests that do not
	// carry their own.
	AvatarID string `yaml:"avatar_id" env:"AVATAR_ID"`

	Server ServerConfig `yaml:"server" env:"SERVER"`
	Log    LogConfig    `yaml:"log" env:"LOG"`
	Cache  CacheConfig  `yaml:"cache" env:"CACHE"`

	Retry  avatar.RetryPolicy  `yaml:"retry" env:"-"`
	Health avatar.HealthConfig `yaml:"health" env:"-"`

	Providers []ProviderConfig `yaml:"providers" env:"-"`
}

// ServerConfig configures the HTTP front.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// CacheConfig selects and sizes the response cache.
type CacheConfig struct {
	// Backend: memory or redis.
	Backend  string        `yaml:"backend" env:"BACKEND"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
	Capacity int           `yaml:"capacity" env:"CAPACITY"`

	// Redis settings, used when Backend is redis.
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
}

// ProviderConfig declares one avatar backend.
type ProviderConfig struct {
	Name      string        `yaml:"name"`
	Kind      string        `yaml:"kind"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Languages []string      `yaml:"languages"`
	Emotions  []string      `yaml:"emotions"`
	Weight    int           `yaml:"weight"`
	RPS       float64       `yaml:"rps"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Descriptor converts the declaration into the runtime descriptor.
func (p ProviderConfig) Descriptor() avatar.Descriptor {
	return avatar.Descriptor{
		Name:      p.Name,
		Kind:      p.Kind,
		BaseURL:   p.BaseURL,
		APIKey:    p.APIKey,
		Languages: p.Languages,
		Emotions:  p.Emotions,
		Weight:    p.Weight,
		RPS:       p.RPS,
		Burst:     p.Burst,
		Timeout:   p.Timeout,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AvatarID: "default",
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      5 * time.Second,
			Capacity: 1024,
		},
		Retry:  avatar.DefaultRetryPolicy(),
		Health: avatar.DefaultHealthConfig(),
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		errs = append(errs, "redis cache backend requires redis_addr")
	}
	if len(c.Providers) == 0 {
		errs = append(errs, "at least one provider must be configured")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("provider %d has no name", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("duplicate provider name %q", p.Name))
		}
		seen[p.Name] = true
		if p.Kind == "" {
			errs = append(errs, fmt.Sprintf("provider %q has no kind", p.Name))
		}
		if p.Kind != "mock" && p.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("provider %q has no base_url", p.Name))
		}
		if p.Weight < 0 {
			errs = append(errs, fmt.Sprintf("provider %q has negative weight", p.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
