package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/internal/snapshotstore"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

func newTestStore(t *testing.T) (*snapshotstore.Store, domain.Target) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: path})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if err := db.Migrate(context.Background(), string(schema)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	targetID := uuid.New()
	_, err = db.ExecContext(context.Background(),
		`INSERT INTO targets (id, user_id, url, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		targetID.String(), uuid.New().String(), "https://example.com", "Example", "2026-01-01")
	if err != nil {
		t.Fatalf("seed target: %v", err)
	}

	return snapshotstore.New(db), domain.Target{ID: targetID}
}

func TestCapture_FirstCaptureIsBaselineEvent(t *testing.T) {
	store, target := newTestStore(t)
	bus := eventbus.New(4)
	events, unsubscribe := bus.Subscribe("test")
	defer unsubscribe()

	d := New(store, bus)
	result, err := d.Capture(context.Background(), target, "<html><body><h1>Hello</h1></body></html>", domain.SourceInitial)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if result.Changed {
		t.Fatal("expected first capture to not be a change")
	}
	if result.Snapshot.VersionNumber != 1 {
		t.Fatalf("expected version 1, got %d", result.Snapshot.VersionNumber)
	}
	if result.Event.ChangeCount != 0 || result.Event.Severity != domain.SeverityLow {
		t.Fatalf("expected a baseline event (count 0, low severity), got %+v", result.Event)
	}

	select {
	case evt := <-events:
		if evt.VersionNumber != 1 || evt.ChangeCount != 0 || evt.Severity != domain.SeverityLow {
			t.Fatalf("expected a published baseline event for version 1, got %+v", evt)
		}
	default:
		t.Fatal("expected a published baseline event on the first capture")
	}
}

func TestCapture_NoChangeDoesNotVersion(t *testing.T) {
	store, target := newTestStore(t)
	bus := eventbus.New(4)
	d := New(store, bus)

	html := "<html><body><h1>Hello</h1></body></html>"
	if _, err := d.Capture(context.Background(), target, html, domain.SourceInitial); err != nil {
		t.Fatalf("initial capture: %v", err)
	}

	result, err := d.Capture(context.Background(), target, html, domain.SourceScheduled)
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if result.Changed {
		t.Fatal("expected no change for identical content")
	}
	if result.Snapshot.VersionNumber != 1 {
		t.Fatalf("expected version to remain 1, got %d", result.Snapshot.VersionNumber)
	}
}

func TestCapture_ChangeProducesVersionAndEvent(t *testing.T) {
	store, target := newTestStore(t)
	bus := eventbus.New(4)
	events, unsubscribe := bus.Subscribe("test")
	defer unsubscribe()
	d := New(store, bus)

	before := `<html><body><section id="pricing"><p>$29/month</p></section></body></html>`
	after := `<html><body><section id="pricing"><p>$39/month</p></section></body></html>`

	if _, err := d.Capture(context.Background(), target, before, domain.SourceInitial); err != nil {
		t.Fatalf("initial capture: %v", err)
	}

	result, err := d.Capture(context.Background(), target, after, domain.SourceScheduled)
	if err != nil {
		t.Fatalf("capture change: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected a change")
	}
	if result.Snapshot.VersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", result.Snapshot.VersionNumber)
	}
	if result.Event.ChangeType != domain.ChangePricing {
		t.Fatalf("expected pricing change type, got %s", result.Event.ChangeType)
	}

	select {
	case evt := <-events:
		if evt.VersionNumber != 2 {
			t.Fatalf("expected published event for version 2, got %d", evt.VersionNumber)
		}
	default:
		t.Fatal("expected a published event")
	}
}

func TestCapture_OversizedHTMLIsTruncatedAndFlagged(t *testing.T) {
	store, target := newTestStore(t)
	bus := eventbus.New(4)
	d := New(store, bus).WithMaxHTMLBytes(64)

	huge := "<html><body>" + string(make([]byte, 1000)) + "</body></html>"
	result, err := d.Capture(context.Background(), target, huge, domain.SourceInitial)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(result.Snapshot.HTML) > 64 {
		t.Fatalf("expected html to be truncated to 64 bytes, got %d", len(result.Snapshot.HTML))
	}
	if result.Snapshot.Metadata["oversized"] != "true" {
		t.Fatalf("expected oversized flag on snapshot metadata, got %v", result.Snapshot.Metadata)
	}
}
