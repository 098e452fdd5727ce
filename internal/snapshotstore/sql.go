package snapshotstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

const currentSnapshotQuery = `
	SELECT id, target_id, version_number, is_full, COALESCE(html, ''), is_current,
	       change_count, change_percent, severity, change_type, COALESCE(summary, ''),
	       metadata, created_at
	FROM snapshots WHERE target_id = ? AND is_current = 1`

func insertSnapshot(ctx context.Context, tx *sql.Tx, snap domain.Snapshot) error {
	metaJSON, err := encodeMetadata(snap.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots
		   (id, target_id, version_number, is_full, html, is_current, change_count,
		    change_percent, severity, change_type, summary, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID.String(), snap.TargetID.String(), snap.VersionNumber, boolToInt(snap.IsFull),
		nullableString(snap.HTML), boolToInt(snap.IsCurrent), snap.ChangeCount, snap.ChangePercent,
		string(snap.Severity), string(snap.ChangeType), nullableString(snap.Summary), metaJSON,
		snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func insertDiff(ctx context.Context, tx *sql.Tx, d domain.SnapshotDiff) error {
	recordsJSON, err := json.Marshal(d.Records)
	if err != nil {
		return fmt.Errorf("marshal diff records: %w", err)
	}
	var replayJSON any
	if len(d.ReplayOps) > 0 {
		b, err := json.Marshal(d.ReplayOps)
		if err != nil {
			return fmt.Errorf("marshal replay ops: %w", err)
		}
		replayJSON = string(b)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_diffs
		   (id, from_snapshot_id, to_snapshot_id, records, replay_ops, summary, additions, removals, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.FromSnapshotID.String(), d.ToSnapshotID.String(), string(recordsJSON),
		replayJSON, nullableString(d.Summary), d.Additions, d.Removals, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot diff: %w", err)
	}
	return nil
}

func touchTarget(ctx context.Context, tx *sql.Tx, targetID uuid.UUID, totalVersions int, checkedAt time.Time, changedAt *time.Time) error {
	if changedAt != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE targets SET total_versions = ?, last_checked_at = ?, last_change_at = ? WHERE id = ?`,
			totalVersions, checkedAt, *changedAt, targetID.String())
		if err != nil {
			return fmt.Errorf("touch target: %w", err)
		}
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE targets SET total_versions = ?, last_checked_at = ? WHERE id = ?`,
		totalVersions, checkedAt, targetID.String())
	if err != nil {
		return fmt.Errorf("touch target: %w", err)
	}
	return nil
}

// currentSnapshotForUpdate reads the current snapshot within an
// in-flight transaction. Per-target serialization is the caller's
// (detector's) responsibility via its lock map; this just needs a
// consistent read within the transaction.
func currentSnapshotForUpdate(ctx context.Context, tx *sql.Tx, targetID uuid.UUID) (domain.Snapshot, error) {
	row := tx.QueryRowContext(ctx, currentSnapshotQuery, targetID.String())
	return scanSnapshot(row)
}

func snapshotByVersion(ctx context.Context, db *storage.DB, targetID uuid.UUID, version int) (domain.Snapshot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, target_id, version_number, is_full, COALESCE(html, ''), is_current,
		        change_count, change_percent, severity, change_type, COALESCE(summary, ''),
		        metadata, created_at
		 FROM snapshots WHERE target_id = ? AND version_number = ?`,
		targetID.String(), version)
	return scanSnapshot(row)
}

// diffLeadingTo returns the SnapshotDiff whose ToSnapshotID is
// toSnapshotID. Its ReplayOps alone are sufficient to reconstruct that
// snapshot's exact HTML — they were computed at write time against the
// full baseline then in effect, so no further chain walk is needed.
func diffLeadingTo(ctx context.Context, db *storage.DB, toSnapshotID uuid.UUID) (domain.SnapshotDiff, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, from_snapshot_id, to_snapshot_id, records, replay_ops, COALESCE(summary, ''), additions, removals, created_at
		 FROM snapshot_diffs WHERE to_snapshot_id = ?`, toSnapshotID.String())

	var d domain.SnapshotDiff
	var idStr, fromStr, toStr, recordsJSON string
	var replayJSON sql.NullString
	if err := row.Scan(&idStr, &fromStr, &toStr, &recordsJSON, &replayJSON, &d.Summary, &d.Additions, &d.Removals, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.SnapshotDiff{}, fmt.Errorf("diff leading to %s: %w", toSnapshotID, ErrNotFound)
		}
		return domain.SnapshotDiff{}, fmt.Errorf("scan diff: %w", err)
	}
	d.ID = uuid.MustParse(idStr)
	d.FromSnapshotID = uuid.MustParse(fromStr)
	d.ToSnapshotID = uuid.MustParse(toStr)
	if err := json.Unmarshal([]byte(recordsJSON), &d.Records); err != nil {
		return domain.SnapshotDiff{}, fmt.Errorf("unmarshal diff records: %w", err)
	}
	if replayJSON.Valid && replayJSON.String != "" {
		if err := json.Unmarshal([]byte(replayJSON.String), &d.ReplayOps); err != nil {
			return domain.SnapshotDiff{}, fmt.Errorf("unmarshal replay ops: %w", err)
		}
	}
	return d, nil
}

func scanSnapshot(row *sql.Row) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var idStr, targetIDStr string
	var isFull, isCurrent int
	var metaJSON sql.NullString

	err := row.Scan(&idStr, &targetIDStr, &snap.VersionNumber, &isFull, &snap.HTML, &isCurrent,
		&snap.ChangeCount, &snap.ChangePercent, &snap.Severity, &snap.ChangeType, &snap.Summary,
		&metaJSON, &snap.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Snapshot{}, ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.ID = uuid.MustParse(idStr)
	snap.TargetID = uuid.MustParse(targetIDStr)
	snap.IsFull = isFull != 0
	snap.IsCurrent = isCurrent != 0
	snap.Metadata = decodeMetadata(metaJSON)
	return snap, nil
}

func scanSnapshotRows(rows *sql.Rows) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var idStr, targetIDStr string
	var isFull, isCurrent int
	var metaJSON sql.NullString

	err := rows.Scan(&idStr, &targetIDStr, &snap.VersionNumber, &isFull, &snap.HTML, &isCurrent,
		&snap.ChangeCount, &snap.ChangePercent, &snap.Severity, &snap.ChangeType, &snap.Summary,
		&metaJSON, &snap.CreatedAt)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.ID = uuid.MustParse(idStr)
	snap.TargetID = uuid.MustParse(targetIDStr)
	snap.IsFull = isFull != 0
	snap.IsCurrent = isCurrent != 0
	snap.Metadata = decodeMetadata(metaJSON)
	return snap, nil
}

func encodeMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(ns sql.NullString) map[string]string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
