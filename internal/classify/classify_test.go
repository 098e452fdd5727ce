package classify

import (
	"testing"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/htmldiff"
)

func TestClassify_NoRecordsIsOtherLow(t *testing.T) {
	ct, sev := Classify(htmldiff.Stats{}, nil, 0)
	if ct != domain.ChangeOther || sev != domain.SeverityLow {
		t.Fatalf("expected other/low, got %s/%s", ct, sev)
	}
}

func TestClassify_TechnicalNoise(t *testing.T) {
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 0.1}, nil, 2)
	if ct != domain.ChangeOther || sev != domain.SeverityLow {
		t.Fatalf("expected other/low for noise, got %s/%s", ct, sev)
	}
}

func TestClassify_PricingFloorsAtMediumForSmallChange(t *testing.T) {
	// Mirrors scenario S2: a single price line edit with negligible
	// change_percent must never be classified low, but also must not be
	// escalated to critical just because the section confidence is high.
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionPricing, Confidence: 0.95, RecordCount: 2},
	}
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 3}, sections, 2)
	if ct != domain.ChangePricing {
		t.Fatalf("expected pricing, got %s", ct)
	}
	if sev != domain.SeverityMedium {
		t.Fatalf("expected medium, got %s", sev)
	}
}

func TestClassify_PricingSeverityFollowsPercentAboveFloor(t *testing.T) {
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionPricing, Confidence: 0.5, RecordCount: 1},
	}
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 25}, sections, 1)
	if ct != domain.ChangePricing || sev != domain.SeverityHigh {
		t.Fatalf("expected pricing/high, got %s/%s", ct, sev)
	}
}

func TestClassify_LargeContentChangeIsCritical(t *testing.T) {
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionContent, Confidence: 0.6, RecordCount: 10},
	}
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 40}, sections, 10)
	if ct != domain.ChangeContent || sev != domain.SeverityCritical {
		t.Fatalf("expected content/critical, got %s/%s", ct, sev)
	}
}

func TestClassify_HighChangeCountWithoutHighPercentIsMedium(t *testing.T) {
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionFeatures, Confidence: 0.7, RecordCount: 12},
	}
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 2}, sections, 12)
	if ct != domain.ChangeFeature || sev != domain.SeverityMedium {
		t.Fatalf("expected feature/medium from change_count>10, got %s/%s", ct, sev)
	}
}

func TestClassify_LowConfidenceSectionIsCappedToNoise(t *testing.T) {
	// A section located with confidence below the semantic floor doesn't
	// count, however large the change_percent, per the "pure technical
	// noise" cap.
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionContent, Confidence: 0.3, RecordCount: 5},
	}
	ct, sev := Classify(htmldiff.Stats{ChangePercent: 15}, sections, 5)
	if ct != domain.ChangeOther || sev != domain.SeverityLow {
		t.Fatalf("expected other/low for sub-floor confidence, got %s/%s", ct, sev)
	}
}

func TestClassify_NavigationIsDesign(t *testing.T) {
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionNavigation, Confidence: 0.6, RecordCount: 3},
	}
	ct, _ := Classify(htmldiff.Stats{ChangePercent: 2}, sections, 3)
	if ct != domain.ChangeDesign {
		t.Fatalf("expected design, got %s", ct)
	}
}

func TestClassify_DominantSectionPicksHighestRecordCount(t *testing.T) {
	sections := []domain.SectionMatch{
		{SectionType: domain.SectionFooter, Confidence: 0.6, RecordCount: 1},
		{SectionType: domain.SectionFeatures, Confidence: 0.7, RecordCount: 5},
	}
	ct, _ := Classify(htmldiff.Stats{ChangePercent: 6}, sections, 6)
	if ct != domain.ChangeFeature {
		t.Fatalf("expected feature (dominant by record count), got %s", ct)
	}
}
