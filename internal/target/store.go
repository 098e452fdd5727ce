// Package target implements persistence for monitored competitor
// targets: creation, mutation, soft deletion, and the active-target
// listing the scheduler polls each tick.
package target

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// DefaultCheckIntervalSecs is used when a caller doesn't specify one.
const DefaultCheckIntervalSecs = 3600

// Store provides persistence for Targets.
type Store struct {
	db *storage.DB
}

// New constructs a Store.
func New(db *storage.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new target owned by userID, with monitoring disabled
// until the caller explicitly starts it.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, url, name string, checkIntervalSecs int) (domain.Target, error) {
	if checkIntervalSecs <= 0 {
		checkIntervalSecs = DefaultCheckIntervalSecs
	}
	target := domain.Target{
		ID:                uuid.New(),
		UserID:            userID,
		URL:               url,
		Name:              name,
		MonitoringEnabled: false,
		CheckIntervalSecs: checkIntervalSecs,
		CreatedAt:         time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, user_id, url, name, monitoring_enabled, check_interval_secs, priority, deleted, total_versions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?)`,
		target.ID.String(), target.UserID.String(), target.URL, target.Name, target.MonitoringEnabled, target.CheckIntervalSecs, target.CreatedAt)
	if err != nil {
		return domain.Target{}, fmt.Errorf("insert target: %w", err)
	}
	return target, nil
}

// Update changes a target's URL, name, and check interval. It does not
// touch monitoring state; use StartMonitoring/DisableMonitoring for that.
func (s *Store) Update(ctx context.Context, id uuid.UUID, url, name string, checkIntervalSecs int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET url = ?, name = ?, check_interval_secs = ? WHERE id = ? AND deleted = 0`,
		url, name, checkIntervalSecs, id.String())
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	return nil
}

// SoftDelete marks a target as deleted without removing its snapshot
// history, and disables monitoring so the scheduler stops touching it.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET deleted = 1, monitoring_enabled = 0 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("soft delete target: %w", err)
	}
	return nil
}

// SetMonitoring enables or disables scheduled captures for a target,
// optionally updating its check interval (ignored when enabling is
// false and intervalSecs is zero).
func (s *Store) SetMonitoring(ctx context.Context, id uuid.UUID, enabled bool, intervalSecs int) error {
	if enabled && intervalSecs > 0 {
		_, err := s.db.ExecContext(ctx,
			`UPDATE targets SET monitoring_enabled = ?, check_interval_secs = ? WHERE id = ?`,
			enabled, intervalSecs, id.String())
		if err != nil {
			return fmt.Errorf("set monitoring: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET monitoring_enabled = ? WHERE id = ?`, enabled, id.String())
	if err != nil {
		return fmt.Errorf("set monitoring: %w", err)
	}
	return nil
}

// GetByID fetches a single target, or nil if it doesn't exist.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	return scanTarget(row)
}

// ListByUser returns a user's non-deleted targets, most recently
// created first.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE user_id = ? AND deleted = 0 ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

// ActiveTargets implements scheduler.TargetLister: every non-deleted
// target with monitoring enabled, regardless of owner.
func (s *Store) ActiveTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE deleted = 0 AND monitoring_enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active targets: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

// RecordCapture bumps a target's version count and last-checked/changed
// timestamps after a successful capture.
func (s *Store) RecordCapture(ctx context.Context, id uuid.UUID, changed bool, totalVersions int, at time.Time) error {
	if changed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE targets SET total_versions = ?, last_checked_at = ?, last_change_at = ? WHERE id = ?`,
			totalVersions, at, at, id.String())
		if err != nil {
			return fmt.Errorf("record capture: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET last_checked_at = ? WHERE id = ?`, at, id.String())
	if err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, user_id, url, name, monitoring_enabled, check_interval_secs, priority, deleted, total_versions, last_checked_at, last_change_at, created_at FROM targets`

func scanTarget(row *sql.Row) (*domain.Target, error) {
	var idStr, userIDStr string
	t := &domain.Target{}
	if err := row.Scan(&idStr, &userIDStr, &t.URL, &t.Name, &t.MonitoringEnabled, &t.CheckIntervalSecs, &t.Priority, &t.Deleted, &t.TotalVersions, &t.LastCheckedAt, &t.LastChangeAt, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	if err := fillIDs(t, idStr, userIDStr); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTargets(rows *sql.Rows) ([]domain.Target, error) {
	var out []domain.Target
	for rows.Next() {
		var idStr, userIDStr string
		var t domain.Target
		if err := rows.Scan(&idStr, &userIDStr, &t.URL, &t.Name, &t.MonitoringEnabled, &t.CheckIntervalSecs, &t.Priority, &t.Deleted, &t.TotalVersions, &t.LastCheckedAt, &t.LastChangeAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := fillIDs(&t, idStr, userIDStr); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func fillIDs(t *domain.Target, idStr, userIDStr string) error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse target id: %w", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return fmt.Errorf("parse target user id: %w", err)
	}
	t.ID = id
	t.UserID = userID
	return nil
}
