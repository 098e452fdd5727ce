// Package snapshotstore implements SnapshotStore: the append-only version
// chain for a target, backed by a full-vs-differential storage policy so
// that long-lived targets don't pay full-HTML storage cost on every
// capture while still supporting point-in-time reconstruction.
package snapshotstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/htmldiff"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// Store persists a target's snapshot chain.
type Store struct {
	db *storage.DB

	// consolidationPeriod forces a full snapshot every N versions,
	// bounding how many differential snapshots must be replayed to
	// reconstruct any given version.
	consolidationPeriod int

	// diffRatioThreshold: when a differential snapshot's change records
	// would be large relative to the new HTML's size, it is cheaper and
	// safer to store a fresh full snapshot instead.
	diffRatioThreshold float64
}

// Option configures a Store.
type Option func(*Store)

// WithConsolidationPeriod overrides the default full-snapshot interval.
func WithConsolidationPeriod(n int) Option {
	return func(s *Store) { s.consolidationPeriod = n }
}

// WithDiffRatioThreshold overrides the default diff/full size ratio at
// which a forced full snapshot is taken.
func WithDiffRatioThreshold(ratio float64) Option {
	return func(s *Store) { s.diffRatioThreshold = ratio }
}

// New constructs a Store with sensible defaults: a full snapshot every
// 5 versions, or sooner if a differential's records would exceed 80% of
// the new HTML's size.
func New(db *storage.DB, opts ...Option) *Store {
	s := &Store{db: db, consolidationPeriod: 5, diffRatioThreshold: 0.8}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ErrNotFound is returned when a target has no snapshot yet.
var ErrNotFound = fmt.Errorf("snapshotstore: not found")

// AppendInitial records the first snapshot for a target. It is always
// full and always current. Calling it for a target that already has a
// chain returns an AlreadyInitialized error; callers should route such
// targets to AppendChange instead.
func (s *Store) AppendInitial(ctx context.Context, targetID uuid.UUID, html string) (domain.Snapshot, error) {
	if _, err := s.GetCurrent(ctx, targetID); err == nil {
		return domain.Snapshot{}, domain.NewError(domain.AlreadyInitialized, "target already has a snapshot chain", nil)
	} else if err != ErrNotFound {
		return domain.Snapshot{}, domain.NewError(domain.StorageFailure, "check existing snapshot chain", err)
	}

	now := time.Now().UTC()
	snap := domain.Snapshot{
		ID:            uuid.New(),
		TargetID:      targetID,
		VersionNumber: 1,
		IsFull:        true,
		HTML:          html,
		IsCurrent:     true,
		Severity:      domain.SeverityLow,
		ChangeType:    domain.ChangeOther,
		CreatedAt:     now,
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := insertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
		return touchTarget(ctx, tx, targetID, 1, now, nil)
	})
	if err != nil {
		return domain.Snapshot{}, domain.NewError(domain.StorageFailure, "append initial snapshot", err)
	}
	return snap, nil
}

// AppendChange records a new version following the current one, given
// the diff against it and its classification. baselineHTML is the full
// text the diff was computed against (the caller already has it, having
// reconstructed it to run the diff in the first place); it is used to
// build the replay ops a later Reconstruct needs, without re-deriving it
// here. AppendChange decides, atomically, whether the new version is
// stored full or differential, flips is_current, and writes the linking
// SnapshotDiff in the same transaction.
func (s *Store) AppendChange(
	ctx context.Context,
	targetID uuid.UUID,
	baselineHTML string,
	html string,
	diff htmldiff.Result,
	changeType domain.ChangeType,
	severity domain.Severity,
	summary string,
	metadata map[string]string,
) (domain.Snapshot, domain.SnapshotDiff, error) {
	var newSnap domain.Snapshot
	var newDiff domain.SnapshotDiff

	replayOps, replayable := htmldiff.ReplayOps(baselineHTML, html)

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		current, err := currentSnapshotForUpdate(ctx, tx, targetID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		version := current.VersionNumber + 1
		isFull := !replayable || s.shouldForceFullSnapshot(version, severity, diffByteSize(diff.Records), len(html))

		newSnap = domain.Snapshot{
			ID:            uuid.New(),
			TargetID:      targetID,
			VersionNumber: version,
			IsFull:        isFull,
			IsCurrent:     true,
			ChangeCount:   len(diff.Records),
			ChangePercent: diff.Stats.ChangePercent,
			Severity:      severity,
			ChangeType:    changeType,
			Summary:       summary,
			Metadata:      metadata,
			CreatedAt:     now,
		}
		if isFull {
			newSnap.HTML = html
		}

		if err := insertSnapshot(ctx, tx, newSnap); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE snapshots SET is_current = 0 WHERE id = ?`, current.ID.String()); err != nil {
			return fmt.Errorf("clear previous current: %w", err)
		}

		newDiff = domain.SnapshotDiff{
			ID:             uuid.New(),
			FromSnapshotID: current.ID,
			ToSnapshotID:   newSnap.ID,
			Records:        diff.Records,
			Summary:        summary,
			Additions:      countKind(diff.Records, domain.RecordAdded),
			Removals:       countKind(diff.Records, domain.RecordRemoved),
			CreatedAt:      now,
		}
		if !isFull {
			newDiff.ReplayOps = replayOps
		}
		if err := insertDiff(ctx, tx, newDiff); err != nil {
			return err
		}

		return touchTarget(ctx, tx, targetID, version, now, &now)
	})
	if err != nil {
		return domain.Snapshot{}, domain.SnapshotDiff{}, domain.NewError(domain.StorageFailure, "append change snapshot", err)
	}
	return newSnap, newDiff, nil
}

// shouldForceFullSnapshot applies the storage policy: critical changes
// always consolidate, every consolidationPeriod'th version from the
// first consolidates regardless of size (version ≡ 1 mod
// consolidationPeriod — version 1 is always the initial full snapshot),
// and a differential whose actual diff payload is disproportionate to
// the new HTML's size also consolidates.
func (s *Store) shouldForceFullSnapshot(version int, severity domain.Severity, diffBytes, newHTMLLen int) bool {
	if severity == domain.SeverityCritical {
		return true
	}
	if s.consolidationPeriod > 0 && version%s.consolidationPeriod == 1 {
		return true
	}
	if newHTMLLen > 0 {
		if float64(diffBytes)/float64(newHTMLLen) > s.diffRatioThreshold {
			return true
		}
	}
	return false
}

// diffByteSize sums the literal bytes a diff's add/remove records carry
// — the actual payload size a differential snapshot would have to store,
// as opposed to a fabricated per-record estimate.
func diffByteSize(records []domain.ChangeRecord) int {
	n := 0
	for _, r := range records {
		n += len(r.Value)
	}
	return n
}

// GetCurrent returns the current snapshot for a target.
func (s *Store) GetCurrent(ctx context.Context, targetID uuid.UUID) (domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, currentSnapshotQuery, targetID.String())
	return scanSnapshot(row)
}

// MergeMetadata merges additional key/value pairs into a snapshot's
// existing metadata, without touching its classified severity, change
// type, or summary. Used by the enrichment path to attach a narrative
// after the fact, out of band from the capture pipeline that produced
// the snapshot.
func (s *Store) MergeMetadata(ctx context.Context, snapshotID uuid.UUID, additions map[string]string) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var existing sql.NullString
		row := tx.QueryRowContext(ctx, `SELECT metadata FROM snapshots WHERE id = ?`, snapshotID.String())
		if err := row.Scan(&existing); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("read metadata: %w", err)
		}

		merged := decodeMetadata(existing)
		if merged == nil {
			merged = make(map[string]string, len(additions))
		}
		for k, v := range additions {
			merged[k] = v
		}

		metaJSON, err := encodeMetadata(merged)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE snapshots SET metadata = ? WHERE id = ?`, metaJSON, snapshotID.String()); err != nil {
			return fmt.Errorf("update metadata: %w", err)
		}
		return nil
	})
}

// Reconstruct returns the full HTML for a given version number. A full
// snapshot returns its stored HTML directly; a differential snapshot
// replays the ReplayOps of the single diff leading to it — those ops
// were computed against the exact full baseline in effect at capture
// time, so replaying them reproduces that capture's HTML exactly
// (lines are kept verbatim), without needing to walk back through any
// earlier version.
func (s *Store) Reconstruct(ctx context.Context, targetID uuid.UUID, versionNumber int) (domain.Snapshot, error) {
	target, err := snapshotByVersion(ctx, s.db, targetID, versionNumber)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if target.IsFull {
		return target, nil
	}

	diff, err := diffLeadingTo(ctx, s.db, target.ID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	target.HTML = htmldiff.ReplayHTML(diff.ReplayOps)
	return target, nil
}

// TouchChecked records that a capture ran but produced no change,
// without creating a new version.
func (s *Store) TouchChecked(ctx context.Context, targetID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE targets SET last_checked_at = ? WHERE id = ?`, at, targetID.String())
	if err != nil {
		return fmt.Errorf("touch checked: %w", err)
	}
	return nil
}

// List returns snapshots for a target, most recent first, for timeline
// views.
func (s *Store) List(ctx context.Context, targetID uuid.UUID, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, version_number, is_full, COALESCE(html, ''), is_current,
		        change_count, change_percent, severity, change_type, COALESCE(summary, ''),
		        metadata, created_at
		 FROM snapshots WHERE target_id = ? ORDER BY version_number DESC LIMIT ?`,
		targetID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func countKind(records []domain.ChangeRecord, kind domain.RecordKind) int {
	n := 0
	for _, r := range records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}
