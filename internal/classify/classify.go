// Package classify implements ChangeClassifier: a pure, deterministic
// decision table turning diff statistics and located sections into an
// aggregate change type and severity. It performs no I/O, matching the
// contract that HtmlDiffer and SectionLocator also hold to.
package classify

import (
	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/htmldiff"
)

// noiseConfidenceFloor is the section-confidence threshold below which no
// section counts as semantic. A capture with no section at or above this
// floor is pure technical noise: it still produces a snapshot (per the
// resolved open question) but is capped at other/low regardless of how
// much of the document changed.
const noiseConfidenceFloor = 0.5

// sectionToChangeType maps a located section to the change type it
// implies when it is the dominant section touched by a capture.
var sectionToChangeType = map[domain.SectionType]domain.ChangeType{
	domain.SectionPricing:      domain.ChangePricing,
	domain.SectionFeatures:     domain.ChangeFeature,
	domain.SectionHero:         domain.ChangeContent,
	domain.SectionCTA:          domain.ChangeContent,
	domain.SectionTestimonials: domain.ChangeContent,
	domain.SectionAbout:        domain.ChangeContent,
	domain.SectionTeam:         domain.ChangeContent,
	domain.SectionForm:         domain.ChangeFeature,
	domain.SectionContent:      domain.ChangeContent,
	domain.SectionNavigation:   domain.ChangeDesign,
	domain.SectionHeader:       domain.ChangeDesign,
	domain.SectionFooter:       domain.ChangeDesign,
}

// Classify derives the aggregate change type and severity for a capture
// from its diff stats and the sections its records were resolved to.
func Classify(stats htmldiff.Stats, sections []domain.SectionMatch, recordCount int) (domain.ChangeType, domain.Severity) {
	if recordCount == 0 {
		return domain.ChangeOther, domain.SeverityLow
	}

	if maxConfidence(sections) < noiseConfidenceFloor {
		return domain.ChangeOther, domain.SeverityLow
	}

	changeType := dominantChangeType(sections)
	severity := severityFor(changeType, stats.ChangePercent, recordCount)
	return changeType, severity
}

// dominantChangeType picks the change type of the section with the
// highest record count, falling back to content when no section was
// resolved (e.g. the opaque-text fallback path in htmldiff).
func dominantChangeType(sections []domain.SectionMatch) domain.ChangeType {
	if len(sections) == 0 {
		return domain.ChangeContent
	}
	best := sections[0]
	for _, s := range sections[1:] {
		if s.RecordCount > best.RecordCount {
			best = s
		}
	}
	if ct, ok := sectionToChangeType[best.SectionType]; ok {
		return ct
	}
	return domain.ChangeContent
}

// maxConfidence reports the highest confidence among the located
// sections, or 0 when none were located.
func maxConfidence(sections []domain.SectionMatch) float64 {
	var best float64
	for _, s := range sections {
		if s.Confidence > best {
			best = s.Confidence
		}
	}
	return best
}

// severityFor applies the literal top-down severity ladder: the first
// matching clause wins. A pricing change can never be classified lower
// than medium — it floors the ladder's result rather than replacing it,
// so a pricing change whose percentage already clears a higher rung
// still lands on that rung.
func severityFor(changeType domain.ChangeType, changePercent float64, changeCount int) domain.Severity {
	var severity domain.Severity
	switch {
	case changePercent > 30:
		severity = domain.SeverityCritical
	case changePercent > 20:
		severity = domain.SeverityHigh
	case changePercent > 10 || changeCount > 10:
		severity = domain.SeverityMedium
	default:
		severity = domain.SeverityLow
	}

	if changeType == domain.ChangePricing && severity == domain.SeverityLow {
		severity = domain.SeverityMedium
	}
	return severity
}
