// Package config provides unified configuration for the sketchmill tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the sketchmill tools.
type Config struct {
	// WorkDir is the base directory for scratch and derived files
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// Workers is the number of parallel row workers
	Workers int `json:"workers" yaml:"workers"`

	// Verbose enables debug logging, including per-1000-row progress
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// CacheConfig holds fragment cache configuration.
type CacheConfig struct {
	// Capacity is the maximum number of memoized fragment digests
	Capacity int `json:"capacity" yaml:"capacity"`
}

// CatalogConfig holds run catalog configuration.
type CatalogConfig struct {
	// Path is the run catalog database path; empty disables the catalog
	Path string `json:"path" yaml:"path"`
}

// ArchiveConfig holds row archive configuration.
type ArchiveConfig struct {
	// Dir is the directory for archive databases; empty disables archiving
	Dir string `json:"dir" yaml:"dir"`
}

// StorageConfig holds object storage configuration for publishing outputs.
type StorageConfig struct {
	// Enabled controls whether outputs are published to object storage
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is the key prefix for published objects
	Prefix string `json:"prefix" yaml:"prefix"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		WorkDir: "./data/sketchmill",
		Workers: 1,
		Verbose: false,
		Cache: CacheConfig{
			Capacity: 4096,
		},
		Catalog: CatalogConfig{
			Path: "",
		},
		Archive: ArchiveConfig{
			Dir: "",
		},
		Storage: StorageConfig{
			Enabled: false,
			Type:    "local",
			Path:    "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on WorkDir.
func (c *Config) Resolve() {
	if c.WorkDir == "" {
		c.WorkDir = "./data/sketchmill"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}

	// Resolve local storage path
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.WorkDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", c.Workers)
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be at least 1, got %d", c.Cache.Capacity)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Enabled && c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// CatalogEnabled returns true if runs should be recorded in the catalog.
func (c *Config) CatalogEnabled() bool {
	return c.Catalog.Path != ""
}

// ArchiveEnabled returns true if a row archive should be built.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Dir != ""
}

// PublishEnabled returns true if outputs should be published to object storage.
func (c *Config) PublishEnabled() bool {
	return c.Storage.Enabled
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SKETCHMILL_ prefix. A .env file in the
// working directory is merged into the environment first; missing files
// are fine.
func LoadFromEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("SKETCHMILL_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("SKETCHMILL_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Workers)
	}
	if v := os.Getenv("SKETCHMILL_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1"
	}

	// Cache configuration
	if v := os.Getenv("SKETCHMILL_CACHE_CAPACITY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.Capacity)
	}

	// Catalog configuration
	if v := os.Getenv("SKETCHMILL_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	// Archive configuration
	if v := os.Getenv("SKETCHMILL_ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
	}

	// Storage configuration
	if v := os.Getenv("SKETCHMILL_STORAGE_ENABLED"); v != "" {
		cfg.Storage.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SKETCHMILL_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SKETCHMILL_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SKETCHMILL_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SKETCHMILL_S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}
	if v := os.Getenv("SKETCHMILL_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SKETCHMILL_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.WorkDir,
		c.Archive.Dir,
	}
	if c.Storage.Enabled && c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
