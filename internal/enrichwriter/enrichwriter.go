// Package enrichwriter subscribes to the event bus and asks the
// configured Enricher for a narrative on qualifying ChangeEvents,
// writing the result back onto the snapshot's metadata. Mirrors
// alertwriter's subscriber shape; the two are independent consumers of
// the same event.
package enrichwriter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/enrich"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/internal/snapshotstore"
	"github.com/RamfiAogusto/competitor-tracker/internal/target"
)

// defaultMinSeverity is the floor below which a change isn't worth an
// enrichment call — low-severity noise is still versioned but never
// narrated.
const defaultMinSeverity = domain.SeverityMedium

// Writer consumes ChangeEvents, enriches the ones that clear the
// severity floor, and persists the narrative onto the snapshot.
type Writer struct {
	enricher    enrich.Enricher
	snapshots   *snapshotstore.Store
	targets     *target.Store
	minSeverity domain.Severity
	logger      *slog.Logger
}

// New constructs a Writer around an already-configured Enricher.
func New(enricher enrich.Enricher, snapshots *snapshotstore.Store, targets *target.Store) *Writer {
	return &Writer{
		enricher:    enricher,
		snapshots:   snapshots,
		targets:     targets,
		minSeverity: defaultMinSeverity,
		logger:      slog.Default(),
	}
}

// WithMinSeverity overrides the enrichment-worthy severity floor.
func (w *Writer) WithMinSeverity(min domain.Severity) *Writer {
	w.minSeverity = min
	return w
}

// Run subscribes to bus and enriches qualifying events until ctx is
// cancelled.
func (w *Writer) Run(ctx context.Context, bus *eventbus.Bus) {
	events, unsubscribe := bus.Subscribe("enrichwriter")
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
				w.logger.Error("enrich change", "target", event.TargetID, "error", err)
			}
		}
	}
}

func (w *Writer) handle(ctx context.Context, event domain.ChangeEvent) error {
	if event.Severity.Less(w.minSeverity) {
		return nil
	}

	tgt, err := w.targets.GetByID(ctx, event.TargetID)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if tgt == nil {
		return nil
	}

	packet := enrich.Packet{
		TargetID:   event.TargetID,
		TargetName: tgt.Name,
		URL:        tgt.URL,
		ChangeType: event.ChangeType,
		Severity:   event.Severity,
		Sections:   toExcerpts(event.Sections),
		Timestamp:  event.Timestamp,
	}

	result, err := w.enricher.Enrich(ctx, packet)
	if err != nil {
		// Enrichment is best-effort: a failed narrative never blocks the
		// capture pipeline and is not retried; the failure is recorded on
		// the snapshot's metadata in place of a narrative.
		failure := map[string]string{"enrichment_error": err.Error()}
		if mergeErr := w.snapshots.MergeMetadata(ctx, event.SnapshotID, failure); mergeErr != nil {
			w.logger.Error("record enrichment failure", "snapshot", event.SnapshotID, "error", mergeErr)
		}
		return fmt.Errorf("enrich: %w", err)
	}

	additions := map[string]string{
		"enrichment_summary": result.Summary,
		"enrichment_urgency": result.Urgency,
	}
	if result.Insights != "" {
		additions["enrichment_insights"] = result.Insights
	}
	if err := w.snapshots.MergeMetadata(ctx, event.SnapshotID, additions); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}
	return nil
}

func toExcerpts(sections []domain.SectionMatch) []enrich.SectionExcerpt {
	out := make([]enrich.SectionExcerpt, 0, len(sections))
	for _, s := range sections {
		out = append(out, enrich.SectionExcerpt{Selector: s.Selector, SectionType: s.SectionType})
	}
	return out
}
