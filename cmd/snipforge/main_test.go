package main

import (
	"testing"

	"github.com/snipforge/snipforge/internal/config"
)

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "oracle"

	if _, err := openDB(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenStorageLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "local"
	cfg.Storage.Path = t.TempDir()

	store, err := openStorage(cfg)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	if store == nil {
		t.Fatal("expected a storage backend")
	}
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "tape"

	if _, err := openStorage(cfg); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
