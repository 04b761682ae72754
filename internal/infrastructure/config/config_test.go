package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Store.DataDir != wd {
		t.Errorf("Store.DataDir = %q, want working directory %q", cfg.Store.DataDir, wd)
	}
	if cfg.Store.DefaultCollection != "data.json" {
		t.Errorf("Store.DefaultCollection = %q", cfg.Store.DefaultCollection)
	}
	if len(cfg.Store.Exclude) != 2 {
		t.Errorf("Store.Exclude = %v, want package manifests", cfg.Store.Exclude)
	}
	if cfg.Session.Backend != SessionBackendSQL || cfg.Database.Driver != DriverSQLite {
		t.Errorf("session backend %q driver %q", cfg.Session.Backend, cfg.Database.Driver)
	}
	if cfg.Database.Path != filepath.Join(wd, ".studylog-sessions.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Session.MaxAge != 720*time.Hour {
		t.Errorf("Session.MaxAge = %v", cfg.Session.MaxAge)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("PORT", "4100")
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("STORE_EXCLUDE", "package.json,tsconfig.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DataDir != dir {
		t.Errorf("Store.DataDir = %q, want %q", cfg.Store.DataDir, dir)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Errorf("Session.Backend = %q", cfg.Session.Backend)
	}
	if cfg.Session.Secret != "s3cret" {
		t.Errorf("Session.Secret = %q", cfg.Session.Secret)
	}
	if len(cfg.Store.Exclude) != 2 || cfg.Store.Exclude[1] != "tsconfig.json" {
		t.Errorf("Store.Exclude = %v", cfg.Store.Exclude)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "70000"},
		{"backend", "SESSION_BACKEND", "etcd"},
		{"default collection", "DEFAULT_COLLECTION", "../data.json"},
		{"driver", "DB_DRIVER", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load with %s=%s succeeded, want error", tt.key, tt.val)
			}
		})
	}
}
