package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
database:
  driver: sqlite
  path: test.db
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("Generator.Model = %q", cfg.Generator.Model)
	}
	if cfg.Analysis.Cron != "0 3 * * *" {
		t.Errorf("Analysis.Cron = %q", cfg.Analysis.Cron)
	}
	if cfg.Analysis.MinCalls != 20 {
		t.Errorf("Analysis.MinCalls = %d, want 20", cfg.Analysis.MinCalls)
	}
	if cfg.Experiment.MinSamples != 1 {
		t.Errorf("Experiment.MinSamples = %d, want 1", cfg.Experiment.MinSamples)
	}
	if cfg.Notify.PollIntervalSec != 15 {
		t.Errorf("Notify.PollIntervalSec = %d, want 15", cfg.Notify.PollIntervalSec)
	}
}

func TestParse_EmptyUsesSqlite(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "greenroom.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestParse_MySQL(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: mysql
  host: db.internal
  port: 3307
  database: greenroom_prod
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 3307 {
		t.Errorf("mysql settings not honored: %+v", cfg.Database)
	}
}

func TestParse_InvalidDriver(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "must be sqlite or mysql") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_InvalidFloors(t *testing.T) {
	_, err := Parse([]byte("analysis:\n  sentiment_floor: 1.5\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sentiment_floor") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("{{{"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "test.db" {
		t.Errorf("Database.Path = %q, want test.db", cfg.Database.Path)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}
