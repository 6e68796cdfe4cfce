// Package config handles PathQ configuration via YAML files and
// environment variables.
//
// Configuration is loaded from an optional YAML file with Load(), after
// which PATHQ_-prefixed environment variables override individual fields.
// LoadFromEnv() skips the file entirely.
//
// Example Usage:
//
//	cfg, err := config.Load("pathq.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	fmt.Printf("Default cache capacity: %d\n", cfg.Cache.DefaultCapacity)
//
// Environment Variables:
//   - PATHQ_CACHE_CAPACITY=200
//   - PATHQ_CACHE_CAPACITIES="main=500,forms=100"
//   - PATHQ_DATA_DIR="./data"
//   - PATHQ_STORE_IN_MEMORY=true
//   - PATHQ_STORE_SYNC_WRITES=true
//   - PATHQ_LOG_LEVEL="debug"
//   - PATHQ_LOG_PRETTY=true
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCacheCapacity is the per-cache entry limit used when neither the
// file nor the environment sets one.
const DefaultCacheCapacity = 200

// Config holds all PathQ configuration.
type Config struct {
	// Cache settings for the expression cache
	Cache CacheConfig `yaml:"cache"`

	// Store settings for the document store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig holds expression cache settings.
type CacheConfig struct {
	// DefaultCapacity is the entry limit for caches without an override.
	DefaultCapacity int `yaml:"default_capacity"`
	// Capacities overrides the entry limit per cache name.
	Capacities map[string]int `yaml:"capacities"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	// DataDir is the directory for data storage.
	DataDir string `yaml:"data_dir"`
	// InMemory disables persistence; useful for tests.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites forces fsync after each write.
	SyncWrites bool `yaml:"sync_writes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Pretty enables human-readable console output.
	Pretty bool `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			DefaultCapacity: DefaultCacheCapacity,
		},
		Store: StoreConfig{
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a configuration from defaults and environment
// variables only.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	c.Cache.DefaultCapacity = getEnvInt("PATHQ_CACHE_CAPACITY", c.Cache.DefaultCapacity)
	if caps := getEnvCapacities("PATHQ_CACHE_CAPACITIES"); caps != nil {
		if c.Cache.Capacities == nil {
			c.Cache.Capacities = make(map[string]int)
		}
		for name, capacity := range caps {
			c.Cache.Capacities[name] = capacity
		}
	}

	c.Store.DataDir = getEnv("PATHQ_DATA_DIR", c.Store.DataDir)
	c.Store.InMemory = getEnvBool("PATHQ_STORE_IN_MEMORY", c.Store.InMemory)
	c.Store.SyncWrites = getEnvBool("PATHQ_STORE_SYNC_WRITES", c.Store.SyncWrites)

	c.Logging.Level = getEnv("PATHQ_LOG_LEVEL", c.Logging.Level)
	c.Logging.Pretty = getEnvBool("PATHQ_LOG_PRETTY", c.Logging.Pretty)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Cache.DefaultCapacity <= 0 {
		return fmt.Errorf("cache default_capacity must be positive, got %d", c.Cache.DefaultCapacity)
	}
	for name, capacity := range c.Cache.Capacities {
		if capacity <= 0 {
			return fmt.Errorf("cache capacity for %q must be positive, got %d", name, capacity)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if !c.Store.InMemory && c.Store.DataDir == "" {
		return fmt.Errorf("store data_dir is required unless in_memory is set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// getEnvCapacities parses "name=capacity,name=capacity" pairs.
func getEnvCapacities(key string) map[string]int {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(val, ",") {
		name, capStr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if capacity, err := strconv.Atoi(capStr); err == nil {
			out[name] = capacity
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
