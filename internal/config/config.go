package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Project  ProjectConfig  `yaml:"project"`
	Paste    PasteConfig    `yaml:"paste"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

type StorageConfig struct {
	Backend string   `yaml:"backend"` // "local" or "s3"
	Path    string   `yaml:"path"`    // local filesystem path for offloaded paste bodies
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenDuration string `yaml:"token_duration"` // e.g. "24h"
}

type ProjectConfig struct {
	// DefaultBranch is the name given to the branch created alongside every
	// new project.
	DefaultBranch string `yaml:"default_branch"`
}

type PasteConfig struct {
	// CompressMinBytes: bodies at or above this size are zstd-compressed
	// before being stored inline. Zero disables compression.
	CompressMinBytes int64 `yaml:"compress_min_bytes"`
	// ExternalMinBytes: bodies at or above this size are offloaded to the
	// storage backend instead of stored inline. Zero disables offloading.
	ExternalMinBytes int64 `yaml:"external_min_bytes"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("SNIPFORGE_JWT_SECRET must be set to a non-default value")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("SNIPFORGE_JWT_SECRET must be at least 16 characters (current length: %d)", len(c.Auth.JWTSecret))
	}
	if c.Project.DefaultBranch == "" {
		return fmt.Errorf("project.default_branch must be configured")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Paste.ExternalMinBytes > 0 && c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be configured when paste offloading is enabled")
		}
	case "s3":
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.endpoint and storage.s3.bucket must be configured")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "snipforge.db",
		},
		Storage: StorageConfig{
			Backend: "local",
			Path:    "data/blobs",
		},
		Auth: AuthConfig{
			JWTSecret:     "change-me-in-production",
			TokenDuration: "24h",
		},
		Project: ProjectConfig{
			DefaultBranch: "main",
		},
		Paste: PasteConfig{
			CompressMinBytes: 4 << 10,
			ExternalMinBytes: 512 << 10,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SNIPFORGE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SNIPFORGE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SNIPFORGE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SNIPFORGE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SNIPFORGE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SNIPFORGE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SNIPFORGE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("SNIPFORGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SNIPFORGE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SNIPFORGE_S3_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("SNIPFORGE_S3_SECRET_KEY"); v != "" {
		cfg.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("SNIPFORGE_S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.S3.UseSSL = b
		}
	}
	if v := os.Getenv("SNIPFORGE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SNIPFORGE_TOKEN_DURATION"); v != "" {
		cfg.Auth.TokenDuration = v
	}
	if v := os.Getenv("SNIPFORGE_DEFAULT_BRANCH"); v != "" {
		cfg.Project.DefaultBranch = strings.TrimSpace(v)
	}
	if v := os.Getenv("SNIPFORGE_PASTE_COMPRESS_MIN_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Paste.CompressMinBytes = n
		}
	}
	if v := os.Getenv("SNIPFORGE_PASTE_EXTERNAL_MIN_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Paste.ExternalMinBytes = n
		}
	}
}
