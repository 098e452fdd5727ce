// Package alertwriter subscribes to the event bus and materializes
// Alert rows for events worth surfacing to a user, deduplicating on
// (target_id, snapshot_id) so a retried or replayed event never
// produces a second alert for the same change.
package alertwriter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// defaultMinSeverity is the floor below which an event does not earn an
// alert — low-severity/noise events still version the target but
// don't page anyone.
const defaultMinSeverity = domain.SeverityMedium

// Writer consumes ChangeEvents and writes Alert rows.
type Writer struct {
	db          *storage.DB
	minSeverity domain.Severity
	logger      *slog.Logger
}

// New constructs a Writer.
func New(db *storage.DB) *Writer {
	return &Writer{db: db, minSeverity: defaultMinSeverity, logger: slog.Default()}
}

// WithMinSeverity overrides the alert-worthy severity floor.
func (w *Writer) WithMinSeverity(min domain.Severity) *Writer {
	w.minSeverity = min
	return w
}

// Run subscribes to bus and writes alerts until ctx is cancelled.
func (w *Writer) Run(ctx context.Context, bus *eventbus.Bus) {
	events, unsubscribe := bus.Subscribe("alertwriter")
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.handle(ctx, event); err != nil {
				w.logger.Error("write alert", "target", event.TargetID, "error", err)
			}
		}
	}
}

func (w *Writer) handle(ctx context.Context, event domain.ChangeEvent) error {
	if event.Severity.Less(w.minSeverity) {
		return nil
	}

	alert := domain.Alert{
		ID:            uuid.New(),
		TargetID:      event.TargetID,
		SnapshotID:    event.SnapshotID,
		Title:         title(event),
		Message:       message(event),
		ChangeType:    event.ChangeType,
		Severity:      event.Severity,
		ChangeCount:   event.ChangeCount,
		VersionNumber: event.VersionNumber,
		Status:        domain.AlertUnread,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := w.db.ExecContext(ctx,
		`INSERT INTO alerts (id, target_id, snapshot_id, title, message, change_type, severity,
		                      change_count, version_number, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID.String(), alert.TargetID.String(), alert.SnapshotID.String(), alert.Title,
		alert.Message, string(alert.ChangeType), string(alert.Severity), alert.ChangeCount,
		alert.VersionNumber, string(alert.Status), alert.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Already alerted for this (target, snapshot) pair.
			return nil
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func title(event domain.ChangeEvent) string {
	return fmt.Sprintf("%s %s change on target", severityEmoji(event.Severity), event.ChangeType)
}

func message(event domain.ChangeEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d change(s) detected (%.1f%% of the page), version %d.", event.ChangeCount, event.ChangePercent, event.VersionNumber)
	if len(event.Sections) > 0 {
		sb.WriteString(" Sections: ")
		for i, s := range event.Sections {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s (%d)", s.SectionType, s.RecordCount)
		}
	}
	return sb.String()
}

func severityEmoji(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "🔴"
	case domain.SeverityHigh:
		return "🟠"
	case domain.SeverityMedium:
		return "🟡"
	default:
		return "⚪"
	}
}

// isUniqueViolation recognizes both the SQLite and Postgres driver
// error text for a unique-constraint violation: SQLite reports "UNIQUE
// constraint failed", Postgres reports "unique_violation"/"duplicate key".
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate key")
}
