// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Flags in cmd/server take precedence over
// both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Clickhouse ClickhouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
	Query      QueryConfig      `yaml:"query"`
	UseMemory  bool             `yaml:"use_memory"`
}

// HTTPConfig contains the listener parameters.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PostgresConfig contains the relational store parameters.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ClickhouseConfig contains the observation store parameters.
type ClickhouseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig contains the metadata cache parameters. An empty Addr disables
// the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// QueryConfig contains query engine parameters.
type QueryConfig struct {
	// SnapshotRefresh is the interval at which dimension value snapshots
	// are rebuilt from the lookup catalog.
	SnapshotRefresh time.Duration `yaml:"snapshot_refresh"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Query: QueryConfig{
			SnapshotRefresh: 1 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the configuration.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Clickhouse.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("USE_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UseMemory = b
		}
	}
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if !c.UseMemory {
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required (set use_memory for in-memory storage)")
		}
		if c.Clickhouse.DSN == "" {
			return fmt.Errorf("clickhouse.dsn is required (set use_memory for in-memory storage)")
		}
	}
	if c.Query.SnapshotRefresh <= 0 {
		return fmt.Errorf("query.snapshot_refresh must be positive")
	}
	return nil
}
