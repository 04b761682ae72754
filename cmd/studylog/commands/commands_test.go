package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/ports"
)

func setupEnv(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("SESSION_BACKEND", backend)
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		set     bool
		wantErr bool
	}{
		{nil, 0, false, false},
		{[]string{"8080"}, 8080, true, false},
		{[]string{"abc"}, 0, false, true},
		{[]string{"0"}, 0, false, true},
		{[]string{"70000"}, 0, false, true},
	}
	for _, tt := range tests {
		got, set, err := parsePort(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePort(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want || set != tt.set {
			t.Errorf("parsePort(%v) = %d, %t; want %d, %t", tt.args, got, set, tt.want, tt.set)
		}
	}
}

func TestLoadConfigPortOverride(t *testing.T) {
	setupEnv(t, "memory")
	cfg, err := loadConfig([]string{"4242"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("port = %d, want 4242", cfg.Server.Port)
	}
}

func TestCollectionCommands(t *testing.T) {
	dir := setupEnv(t, "memory")

	out, err := execute(t, "collection", "create", "midterm2.json")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "midterm2.json") {
		t.Errorf("create output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "midterm2.json")); err != nil {
		t.Fatalf("midterm2.json not created: %v", err)
	}

	if _, err := execute(t, "collection", "create", "midterm2"); !errors.Is(err, entities.ErrCollectionExists) {
		t.Errorf("duplicate create error = %v, want ErrCollectionExists", err)
	}

	data := `{"entries":[{"date":"2024-01-01","textbook":30,"podcast":10,"timestamp":"2024-01-01T00:00:00Z"}]}`
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "db", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "* data.json") || !strings.Contains(out, "  midterm2.json") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "collection", "show", "--format", "json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var resp ports.StatsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if resp.Database != "data.json" || resp.Stats.GrandTotal != 40 {
		t.Errorf("show = %+v", resp)
	}

	out, err = execute(t, "collection", "show", "data.json")
	if err != nil {
		t.Fatalf("show md: %v", err)
	}
	if !strings.Contains(out, "| **Total** | **40** | |") || !strings.Contains(out, "75.0%") {
		t.Errorf("show md output = %q", out)
	}

	if _, err := execute(t, "collection", "show", "missing.json"); !errors.Is(err, entities.ErrCollectionNotFound) {
		t.Errorf("show missing error = %v, want ErrCollectionNotFound", err)
	}
	if _, err := execute(t, "collection", "show", "--format", "xml"); err == nil {
		t.Error("show with unknown format succeeded")
	}

	if _, err := execute(t, "collection", "delete", "midterm2.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "midterm2.json")); !os.IsNotExist(err) {
		t.Errorf("midterm2.json still present: %v", err)
	}
	if _, err := execute(t, "collection", "delete", "data.json"); !errors.Is(err, entities.ErrLastCollection) {
		t.Errorf("delete last error = %v, want ErrLastCollection", err)
	}
}

func TestMigrateCommands(t *testing.T) {
	setupEnv(t, "sql")

	if _, err := execute(t, "migrate", "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	out, err := execute(t, "migrate", "version")
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	if !strings.Contains(out, "Current migration version: 2") || !strings.Contains(out, "Dirty: false") {
		t.Errorf("version output = %q", out)
	}

	if _, err := execute(t, "migrate", "down"); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	out, err = execute(t, "migrate", "version")
	if err != nil {
		t.Fatalf("migrate version after down: %v", err)
	}
	if !strings.Contains(out, "Current migration version: 0") {
		t.Errorf("version after down = %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "studylog dev\n" {
		t.Errorf("version output = %q", out)
	}
}
