package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_MatchesDocumentedValues(t *testing.T) {
	cfg := Default()

	if cfg.Worker.MinCheckInterval != 300 || cfg.Worker.MaxCheckInterval != 86400 {
		t.Fatalf("unexpected check interval bounds: %+v", cfg.Worker)
	}
	if cfg.Snapshot.FullPeriod != 5 || cfg.Snapshot.FullIfDiffRatio != 0.8 {
		t.Fatalf("unexpected snapshot policy defaults: %+v", cfg.Snapshot)
	}
	if cfg.Snapshot.HTMLSizeCap != 4*1024*1024 {
		t.Fatalf("unexpected html size cap: %d", cfg.Snapshot.HTMLSizeCap)
	}
	if cfg.Render.TimeoutSecs != 60 || cfg.Render.Retries != 5 || cfg.Render.BackoffBase != 2 {
		t.Fatalf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Database.Driver != "sqlite" || cfg.HTTP.Port != "8080" {
		t.Fatalf("unexpected database/http defaults: %+v / %+v", cfg.Database, cfg.HTTP)
	}
	if cfg.Render.RenderTimeout().Seconds() != 60 {
		t.Fatalf("expected RenderTimeout to derive from TimeoutSecs, got %v", cfg.Render.RenderTimeout())
	}
	if cfg.Render.BackoffBaseDuration().Seconds() != 2 {
		t.Fatalf("expected BackoffBaseDuration to derive from BackoffBase, got %v", cfg.Render.BackoffBaseDuration())
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.MinCheckInterval != 300 {
		t.Fatalf("expected defaults when config file is absent, got %+v", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "worker:\n  worker_count: 3\nhttp:\n  port: \"9090\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.Count != 3 {
		t.Fatalf("expected worker_count overridden to 3, got %d", cfg.Worker.Count)
	}
	if cfg.HTTP.Port != "9090" {
		t.Fatalf("expected http port overridden to 9090, got %q", cfg.HTTP.Port)
	}
	// Untouched sections should still carry their defaults.
	if cfg.Snapshot.FullPeriod != 5 {
		t.Fatalf("expected untouched snapshot defaults to survive, got %+v", cfg.Snapshot)
	}
}
