// Package detector implements ChangeDetector: the orchestrator that
// turns a freshly rendered HTML capture into a classified, persisted,
// published change — or recognizes that nothing worth recording
// happened. It owns per-target serialization so that two captures of
// the same target never race each other into the snapshot chain.
package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/classify"
	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/internal/htmldiff"
	"github.com/RamfiAogusto/competitor-tracker/internal/section"
	"github.com/RamfiAogusto/competitor-tracker/internal/snapshotstore"
)

// DefaultMaxHTMLBytes bounds the size of HTML the differ will compare
// at full fidelity. Larger captures are truncated and flagged rather
// than rejected, per the capture contract.
const DefaultMaxHTMLBytes = 4 * 1024 * 1024

// Detector orchestrates a single target's capture → diff → classify →
// persist → publish pipeline.
type Detector struct {
	store        *snapshotstore.Store
	bus          *eventbus.Bus
	maxHTMLBytes int

	locksGuard sync.Mutex
	locks      map[uuid.UUID]*sync.Mutex
}

// New constructs a Detector.
func New(store *snapshotstore.Store, bus *eventbus.Bus) *Detector {
	return &Detector{
		store:        store,
		bus:          bus,
		maxHTMLBytes: DefaultMaxHTMLBytes,
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

// WithMaxHTMLBytes overrides the truncation threshold.
func (d *Detector) WithMaxHTMLBytes(n int) *Detector {
	d.maxHTMLBytes = n
	return d
}

// Result describes the outcome of a single Capture call.
type Result struct {
	Changed  bool
	Snapshot domain.Snapshot
	Event    domain.ChangeEvent
}

// Capture compares html against the target's current snapshot,
// classifies any difference, persists the outcome, and publishes a
// ChangeEvent. The very first capture of a target publishes a baseline
// event (change_count 0, severity low) even though nothing changed yet;
// a later capture that produces no diff against the current snapshot
// publishes nothing. Concurrent captures of the same target serialize on
// its lock; captures of different targets never block each other.
func (d *Detector) Capture(ctx context.Context, target domain.Target, html string, source domain.CaptureSource) (Result, error) {
	lock := d.lockFor(target.ID)
	lock.Lock()
	defer lock.Unlock()

	oversized := len(html) > d.maxHTMLBytes
	if oversized {
		html = html[:d.maxHTMLBytes]
	}

	current, err := d.store.GetCurrent(ctx, target.ID)
	if err == snapshotstore.ErrNotFound {
		snap, err := d.store.AppendInitial(ctx, target.ID, html)
		if err != nil {
			return Result{}, fmt.Errorf("append initial snapshot: %w", err)
		}
		if oversized {
			flag := map[string]string{"oversized": "true"}
			if err := d.store.MergeMetadata(ctx, snap.ID, flag); err != nil {
				return Result{}, fmt.Errorf("flag oversized snapshot: %w", err)
			}
			snap.Metadata = flag
		}

		event := domain.ChangeEvent{
			TargetID:      target.ID,
			SnapshotID:    snap.ID,
			VersionNumber: snap.VersionNumber,
			ChangeCount:   0,
			ChangePercent: 0,
			Severity:      domain.SeverityLow,
			ChangeType:    domain.ChangeOther,
			Timestamp:     time.Now().UTC(),
		}
		d.bus.Publish(event)

		return Result{Changed: false, Snapshot: snap, Event: event}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("get current snapshot: %w", err)
	}

	baseline, err := d.baselineHTML(ctx, current)
	if err != nil {
		return Result{}, fmt.Errorf("reconstruct baseline: %w", err)
	}

	diff := htmldiff.Diff(baseline, html)
	if len(diff.Records) == 0 {
		if err := d.store.TouchChecked(ctx, target.ID, time.Now().UTC()); err != nil {
			return Result{}, fmt.Errorf("touch checked: %w", err)
		}
		return Result{Changed: false, Snapshot: current}, nil
	}

	sections := resolveSections(diff.Records, html)
	changeType, severity := classify.Classify(diff.Stats, sections, len(diff.Records))
	summary := buildSummary(diff, changeType)

	metadata := map[string]string{}
	if oversized {
		metadata["oversized"] = "true"
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	newSnap, _, err := d.store.AppendChange(ctx, target.ID, baseline, html, diff, changeType, severity, summary, metadata)
	if err != nil {
		return Result{}, fmt.Errorf("append change: %w", err)
	}

	event := domain.ChangeEvent{
		TargetID:      target.ID,
		SnapshotID:    newSnap.ID,
		VersionNumber: newSnap.VersionNumber,
		ChangeCount:   len(diff.Records),
		ChangePercent: diff.Stats.ChangePercent,
		Severity:      severity,
		ChangeType:    changeType,
		Sections:      sections,
		Timestamp:     time.Now().UTC(),
	}
	d.bus.Publish(event)

	return Result{Changed: true, Snapshot: newSnap, Event: event}, nil
}

// baselineHTML returns the full HTML to diff against, reconstructing it
// if the current snapshot is differential.
func (d *Detector) baselineHTML(ctx context.Context, current domain.Snapshot) (string, error) {
	if current.IsFull {
		return current.HTML, nil
	}
	full, err := d.store.Reconstruct(ctx, current.TargetID, current.VersionNumber)
	if err != nil {
		return "", err
	}
	return full.HTML, nil
}

func (d *Detector) lockFor(targetID uuid.UUID) *sync.Mutex {
	d.locksGuard.Lock()
	defer d.locksGuard.Unlock()
	lock, ok := d.locks[targetID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[targetID] = lock
	}
	return lock
}

// resolveSections locates each change record within the after document
// and aggregates by (selector, section type) into SectionMatch counts.
func resolveSections(records []domain.ChangeRecord, afterHTML string) []domain.SectionMatch {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(afterHTML))

	type key struct {
		selector string
		typ      domain.SectionType
	}
	agg := make(map[key]*domain.SectionMatch)
	var order []key

	for _, r := range records {
		loc := section.Locate(r, doc)
		k := key{selector: loc.Selector, typ: loc.SectionType}
		if existing, ok := agg[k]; ok {
			existing.RecordCount++
			continue
		}
		agg[k] = &domain.SectionMatch{Selector: loc.Selector, SectionType: loc.SectionType, Confidence: loc.Confidence, RecordCount: 1}
		order = append(order, k)
	}

	out := make([]domain.SectionMatch, 0, len(order))
	for _, k := range order {
		out = append(out, *agg[k])
	}
	return out
}

func buildSummary(diff htmldiff.Result, changeType domain.ChangeType) string {
	added := 0
	removed := 0
	for _, r := range diff.Records {
		if r.Kind == domain.RecordAdded {
			added++
		} else {
			removed++
		}
	}
	return fmt.Sprintf("%s change: %d added, %d removed (%.1f%% of document)", changeType, added, removed, diff.Stats.ChangePercent)
}
