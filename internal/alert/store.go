// Package alert implements read and status-update access to the alerts
// materialized by alertwriter. alertwriter owns the insert path; this
// package owns the listing and lifecycle-transition paths the REST
// surface exposes.
package alert

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// Store provides read and status-transition access to alerts.
type Store struct {
	db *storage.DB
}

// New constructs a Store.
func New(db *storage.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `SELECT id, target_id, snapshot_id, title, message, change_type, severity, change_count, version_number, status, created_at FROM alerts`

// ListByTarget returns a target's alerts, most recent first.
func (s *Store) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE target_id = ? ORDER BY created_at DESC LIMIT ?`, targetID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts by target: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// ListByUser returns alerts across all of a user's targets, most
// recent first.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.target_id, a.snapshot_id, a.title, a.message, a.change_type, a.severity, a.change_count, a.version_number, a.status, a.created_at
		 FROM alerts a JOIN targets t ON t.id = a.target_id
		 WHERE t.user_id = ? ORDER BY a.created_at DESC LIMIT ?`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts by user: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// GetByID fetches a single alert, or nil if it doesn't exist.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	var idStr, targetIDStr, snapshotIDStr string
	a := &domain.Alert{}
	if err := row.Scan(&idStr, &targetIDStr, &snapshotIDStr, &a.Title, &a.Message, &a.ChangeType, &a.Severity, &a.ChangeCount, &a.VersionNumber, &a.Status, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	if err := fillIDs(a, idStr, targetIDStr, snapshotIDStr); err != nil {
		return nil, err
	}
	return a, nil
}

// SetStatus transitions an alert to a new lifecycle status (read, archived, ...).
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status domain.AlertStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = ? WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("set alert status: %w", err)
	}
	return nil
}

func scanAlerts(rows *sql.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var idStr, targetIDStr, snapshotIDStr string
		var a domain.Alert
		if err := rows.Scan(&idStr, &targetIDStr, &snapshotIDStr, &a.Title, &a.Message, &a.ChangeType, &a.Severity, &a.ChangeCount, &a.VersionNumber, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := fillIDs(&a, idStr, targetIDStr, snapshotIDStr); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func fillIDs(a *domain.Alert, idStr, targetIDStr, snapshotIDStr string) error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse alert id: %w", err)
	}
	targetID, err := uuid.Parse(targetIDStr)
	if err != nil {
		return fmt.Errorf("parse alert target id: %w", err)
	}
	snapshotID, err := uuid.Parse(snapshotIDStr)
	if err != nil {
		return fmt.Errorf("parse alert snapshot id: %w", err)
	}
	a.ID = id
	a.TargetID = targetID
	a.SnapshotID = snapshotID
	return nil
}
