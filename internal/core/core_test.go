package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/RamfiAogusto/competitor-tracker/internal/appconfig"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := appconfig.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.Worker.Count = 1
	return cfg
}

func TestNew_WiresEveryCollaboratorAndDefaultsOptionalOnesToNil(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), "../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.DB == nil || c.Bus == nil || c.UserStore == nil || c.TargetStore == nil ||
		c.SnapshotStore == nil || c.AlertStore == nil || c.Detector == nil ||
		c.Scheduler == nil || c.Renderer == nil || c.AlertWriter == nil {
		t.Fatalf("expected every required collaborator to be wired, got %+v", c)
	}
	if c.Enricher != nil {
		t.Fatal("expected no enricher configured by default")
	}
	if c.EnrichWriter != nil {
		t.Fatal("expected no enrich writer wired without an enricher")
	}
	if c.Notifier != nil {
		t.Fatal("expected no notifier configured by default")
	}
}

func TestNew_WiresEnrichWriterWhenEnricherConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrich.ServiceURL = "https://example.com/enrich"

	c, err := New(context.Background(), cfg, "../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.Enricher == nil {
		t.Fatal("expected an enricher to be wired once a service url is configured")
	}
	if c.EnrichWriter == nil {
		t.Fatal("expected an enrich writer to subscribe once an enricher is wired")
	}
}

func TestNew_BuildsNotifierWhenWebhookConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.WebhookURL = "https://example.com/hook"

	c, err := New(context.Background(), cfg, "../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.Notifier == nil {
		t.Fatal("expected a notifier to be wired once a webhook url is configured")
	}
}

func TestNew_MissingSchemaPathIsNonFatal(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(context.Background(), cfg, filepath.Join(t.TempDir(), "missing-schema.sql"))
	if err != nil {
		t.Fatalf("expected a missing schema file to be tolerated, got: %v", err)
	}
	defer c.Close()
}

func TestRunAndClose_StopsOnContextCancel(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), "../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
