package section

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

func parse(t *testing.T, htmlStr string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestLocate_ExplicitIDMatch(t *testing.T) {
	after := `<html><body><section id="pricing"><p>$19/month</p></section></body></html>`
	doc := parse(t, after)
	rec := domain.ChangeRecord{Kind: domain.RecordAdded, Value: "$19/month", PathHint: "html>body>section#pricing>p"}

	got := Locate(rec, doc)
	if got.SectionType != domain.SectionPricing {
		t.Fatalf("expected pricing, got %s", got.SectionType)
	}
	if got.Confidence < 0.9 {
		t.Fatalf("expected high confidence for explicit id match, got %f", got.Confidence)
	}
}

func TestLocate_SemanticTagFooter(t *testing.T) {
	after := `<html><body><footer><p>Copyright 2026</p></footer></body></html>`
	doc := parse(t, after)
	rec := domain.ChangeRecord{Kind: domain.RecordAdded, Value: "Copyright 2026", PathHint: "html>body>footer>p"}

	got := Locate(rec, doc)
	if got.SectionType != domain.SectionFooter {
		t.Fatalf("expected footer, got %s", got.SectionType)
	}
}

func TestLocate_HeadingKeyword(t *testing.T) {
	after := `<html><body><div class="block"><h2>Our Pricing Plans</h2><p>New tier added</p></div></body></html>`
	doc := parse(t, after)
	rec := domain.ChangeRecord{Kind: domain.RecordAdded, Value: "New tier added", PathHint: "html>body>div.block>p"}

	got := Locate(rec, doc)
	if got.SectionType != domain.SectionPricing {
		t.Fatalf("expected pricing via heading keyword, got %s", got.SectionType)
	}
}

func TestLocate_ContentHeuristicCurrency(t *testing.T) {
	rec := domain.ChangeRecord{Kind: domain.RecordRemoved, Value: "$29/month", PathHint: "html>body>div.unlabeled>p"}
	got := Locate(rec, nil)
	if got.SectionType != domain.SectionPricing {
		t.Fatalf("expected pricing via currency heuristic, got %s", got.SectionType)
	}
}

func TestLocate_DefaultFallback(t *testing.T) {
	rec := domain.ChangeRecord{Kind: domain.RecordAdded, Value: "some unrelated sentence about nothing in particular"}
	got := Locate(rec, nil)
	if got.SectionType != domain.SectionContent {
		t.Fatalf("expected content fallback, got %s", got.SectionType)
	}
	if got.Confidence != 0.3 {
		t.Fatalf("expected default confidence 0.3, got %f", got.Confidence)
	}
}

func TestLocate_RemovedRecordUsesPathHintOnly(t *testing.T) {
	// The removed text no longer exists in the after document; resolution
	// must fall back to the synthetic ancestor chain from the path hint.
	after := `<html><body><section id="pricing"><p>$19/month</p></section></body></html>`
	doc := parse(t, after)
	rec := domain.ChangeRecord{Kind: domain.RecordRemoved, Value: "$29/month", PathHint: "html>body>section#pricing>p"}

	got := Locate(rec, doc)
	if got.SectionType != domain.SectionPricing {
		t.Fatalf("expected pricing from path hint, got %s", got.SectionType)
	}
}
