// Package notifyfanout subscribes to the event bus and fans
// high-severity change events out to whichever external channels
// (Telegram, email, webhook) have been registered on a notify.Dispatcher.
package notifyfanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/pkg/notify"
)

// defaultMinSeverity is the floor an event must meet before it is
// worth pushing to an external channel — lower severities stay inside
// the alerts table for in-app consumption only.
const defaultMinSeverity = domain.SeverityHigh

// Fanout dispatches qualifying ChangeEvents through a notify.Dispatcher.
type Fanout struct {
	dispatcher  *notify.Dispatcher
	minSeverity domain.Severity
	logger      *slog.Logger
}

// New constructs a Fanout around an already-configured Dispatcher (with
// its notifiers already Register-ed).
func New(dispatcher *notify.Dispatcher) *Fanout {
	return &Fanout{dispatcher: dispatcher, minSeverity: defaultMinSeverity, logger: slog.Default()}
}

// WithMinSeverity overrides the dispatch-worthy severity floor.
func (f *Fanout) WithMinSeverity(min domain.Severity) *Fanout {
	f.minSeverity = min
	return f
}

// Run subscribes to bus and dispatches qualifying events until ctx is
// cancelled.
func (f *Fanout) Run(ctx context.Context, bus *eventbus.Bus) {
	events, unsubscribe := bus.Subscribe("notifyfanout")
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Severity.Less(f.minSeverity) {
				continue
			}
			if err := f.dispatcher.SendAll(ctx, toMessage(event)); err != nil {
				f.logger.Error("fanout dispatch", "target", event.TargetID, "error", err)
			}
		}
	}
}

func toMessage(event domain.ChangeEvent) notify.Message {
	emoji := severityEmoji(event.Severity)
	title := fmt.Sprintf("%s %s change detected", emoji, event.ChangeType)
	body := fmt.Sprintf("Version %d: %d change(s), %.1f%% of the page.", event.VersionNumber, event.ChangeCount, event.ChangePercent)
	for _, s := range event.Sections {
		body += fmt.Sprintf("\n- %s (%d)", s.SectionType, s.RecordCount)
	}
	return notify.Message{
		Title:  title,
		Body:   body,
		Format: "markdown",
	}
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
