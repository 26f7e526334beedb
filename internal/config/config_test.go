package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Project.DefaultBranch != "main" {
		t.Errorf("default branch = %q, want main", cfg.Project.DefaultBranch)
	}
	if cfg.Paste.CompressMinBytes != 4<<10 {
		t.Errorf("compress min = %d, want %d", cfg.Paste.CompressMinBytes, 4<<10)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 8080
database:
  driver: postgres
  dsn: postgres://localhost/snipforge
paste:
  external_min_bytes: 1024
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("addr = %q, want 127.0.0.1:8080", cfg.Addr())
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Paste.ExternalMinBytes != 1024 {
		t.Errorf("external min = %d, want 1024", cfg.Paste.ExternalMinBytes)
	}
	// Values the file does not mention keep their defaults.
	if cfg.Project.DefaultBranch != "main" {
		t.Errorf("default branch = %q, want main", cfg.Project.DefaultBranch)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SNIPFORGE_PORT", "9090")
	t.Setenv("SNIPFORGE_DB_DRIVER", "postgres")
	t.Setenv("SNIPFORGE_DEFAULT_BRANCH", " trunk ")
	t.Setenv("SNIPFORGE_PASTE_COMPRESS_MIN_BYTES", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Project.DefaultBranch != "trunk" {
		t.Errorf("default branch = %q, want trunk", cfg.Project.DefaultBranch)
	}
	if cfg.Paste.CompressMinBytes != 0 {
		t.Errorf("compress min = %d, want 0", cfg.Paste.CompressMinBytes)
	}
}

func TestValidateServe(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
		return cfg
	}

	if err := base().ValidateServe(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.Auth.JWTSecret = "change-me-in-production"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("default secret accepted")
	}

	cfg = base()
	cfg.Auth.JWTSecret = "short"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("short secret accepted")
	}

	cfg = base()
	cfg.Project.DefaultBranch = ""
	if err := cfg.ValidateServe(); err == nil {
		t.Error("empty default branch accepted")
	}

	cfg = base()
	cfg.Storage.Backend = "local"
	cfg.Storage.Path = ""
	cfg.Paste.ExternalMinBytes = 1024
	if err := cfg.ValidateServe(); err == nil {
		t.Error("offloading without a storage path accepted")
	}

	cfg = base()
	cfg.Storage.Backend = "s3"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("s3 backend without endpoint accepted")
	}
	cfg.Storage.S3.Endpoint = "minio:9000"
	cfg.Storage.S3.Bucket = "snipforge"
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("configured s3 backend rejected: %v", err)
	}

	cfg = base()
	cfg.Storage.Backend = "ftp"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("unknown storage backend accepted")
	}
}
