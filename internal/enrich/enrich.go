// Package enrich defines the outbound Enricher contract and its two
// client implementations: a plain HTTP packet client for an external
// enrichment service, and a direct LLM client that skips the
// intermediary and calls a model provider itself.
package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// Packet is the structured change context sent to an enricher.
type Packet struct {
	TargetID   uuid.UUID         `json:"target_id"`
	TargetName string            `json:"target_name"`
	URL        string            `json:"url"`
	ChangeType domain.ChangeType `json:"change_type"`
	Severity   domain.Severity   `json:"severity"`
	Sections   []SectionExcerpt  `json:"sections"`
	Timestamp  time.Time         `json:"timestamp"`
}

// SectionExcerpt carries a before/after snippet for one located section.
type SectionExcerpt struct {
	Selector    string             `json:"selector"`
	SectionType domain.SectionType `json:"section_type"`
	Before      string             `json:"before,omitempty"`
	After       string             `json:"after,omitempty"`
}

// Result is the enrichment narrative returned for a Packet.
type Result struct {
	Summary         string   `json:"summary"`
	Impact          []string `json:"impact"`
	Recommendations []string `json:"recommendations"`
	Urgency         string   `json:"urgency"` // "low", "medium", "high"
	Insights        string   `json:"insights"`
}

// Enricher produces a narrative for a change packet. Implementations
// must never block the capture pipeline on failure — callers treat
// enrichment as best-effort: enrichwriter logs a failed call and records
// it on the snapshot's metadata, and does not retry it.
type Enricher interface {
	Enrich(ctx context.Context, packet Packet) (Result, error)
}

// ExtractJSONObject tolerantly extracts a JSON object from a string
// that may be wrapped in a markdown code fence or surrounded by extra
// prose, by trimming fences and slicing from the first '{' to the
// last '}'. Braces are not matched: text holding two separate objects
// yields one span covering both and the prose between them.
func ExtractJSONObject(s string) string {
	trimmed := trimFence(s)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

func trimFence(s string) string {
	s = strings.TrimSpace(s)
	const jsonFence = "```json"
	const fence = "```"
	if strings.HasPrefix(s, jsonFence) {
		s = strings.TrimPrefix(s, jsonFence)
		if idx := strings.LastIndex(s, fence); idx >= 0 {
			s = s[:idx]
		}
	} else if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		if idx := strings.LastIndex(s, fence); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// decodeResult unmarshals a tolerantly-extracted JSON object into a
// Result, falling back to treating the whole extracted text as the
// summary when it isn't valid JSON.
func decodeResult(raw string) Result {
	extracted := ExtractJSONObject(raw)
	var result Result
	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return Result{Summary: extracted, Urgency: "low"}
	}
	return result
}
