// Package domain holds the core data model shared by every package in the
// change-detection and versioning engine: targets, their snapshot chains,
// the diffs linking consecutive snapshots, in-memory change events, and
// the alerts materialized from them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the change-severity ladder, low to critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for monotonicity comparisons (see Less).
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Less reports whether s is strictly less severe than other.
func (s Severity) Less(other Severity) bool { return s.rank() < other.rank() }

// ChangeType is the aggregate classification of a capture's changes.
type ChangeType string

const (
	ChangeContent ChangeType = "content"
	ChangeDesign  ChangeType = "design"
	ChangePricing ChangeType = "pricing"
	ChangeFeature ChangeType = "feature"
	ChangeOther   ChangeType = "other"
)

// SectionType is the closed set of semantic regions SectionLocator assigns.
type SectionType string

const (
	SectionHero         SectionType = "hero"
	SectionPricing      SectionType = "pricing"
	SectionFeatures     SectionType = "features"
	SectionNavigation   SectionType = "navigation"
	SectionHeader       SectionType = "header"
	SectionFooter       SectionType = "footer"
	SectionTestimonials SectionType = "testimonials"
	SectionCTA          SectionType = "cta"
	SectionForm         SectionType = "form"
	SectionAbout        SectionType = "about"
	SectionTeam         SectionType = "team"
	SectionContent      SectionType = "content"
)

// AlertStatus is the lifecycle state of a materialized Alert.
type AlertStatus string

const (
	AlertUnread   AlertStatus = "unread"
	AlertRead     AlertStatus = "read"
	AlertArchived AlertStatus = "archived"
)

// CaptureSource identifies what triggered a capture.
type CaptureSource string

const (
	SourceScheduled CaptureSource = "scheduled"
	SourceManual    CaptureSource = "manual"
	SourceInitial   CaptureSource = "initial"
)

// Target is a monitored competitor site.
type Target struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	URL               string
	Name              string
	MonitoringEnabled bool
	CheckIntervalSecs int
	Priority          int
	Deleted           bool

	TotalVersions int
	LastCheckedAt *time.Time
	LastChangeAt  *time.Time

	CreatedAt time.Time
}

// ChangeRecord is a single add/remove unit produced by HtmlDiffer.
type ChangeRecord struct {
	Kind     RecordKind `json:"kind"`
	Value    string     `json:"value"`
	PathHint string     `json:"path_hint,omitempty"`
}

// RecordKind distinguishes additions from removals within a ChangeRecord.
type RecordKind string

const (
	RecordAdded   RecordKind = "added"
	RecordRemoved RecordKind = "removed"
	// RecordKept marks a line carried through unchanged. It never appears
	// in the records a ChangeEvent or Alert surfaces — only in a
	// SnapshotDiff's ReplayOps, where it anchors exact reconstruction.
	RecordKept RecordKind = "kept"
)

// SectionMatch is a located semantic section plus the records found in it.
type SectionMatch struct {
	Selector     string      `json:"selector"`
	SectionType  SectionType `json:"section_type"`
	Confidence   float64     `json:"confidence"`
	RecordCount  int         `json:"record_count"`
}

// Snapshot is one version in a target's chain.
type Snapshot struct {
	ID             uuid.UUID
	TargetID       uuid.UUID
	VersionNumber  int
	IsFull         bool
	HTML           string // empty when IsFull is false
	IsCurrent      bool
	ChangeCount    int
	ChangePercent  float64
	Severity       Severity
	ChangeType     ChangeType
	Summary        string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// SnapshotDiff is the structured delta linking two consecutive snapshots.
type SnapshotDiff struct {
	ID             uuid.UUID
	FromSnapshotID uuid.UUID
	ToSnapshotID   uuid.UUID
	Records        []ChangeRecord
	// ReplayOps is the ordered kept/added line sequence that reconstructs
	// the "to" snapshot's HTML exactly (modulo whitespace) when replayed
	// in order — distinct from Records, which is the unordered add/remove
	// set used for classification and alert messaging.
	ReplayOps []ChangeRecord
	Summary   string
	Additions int
	Removals  int
	CreatedAt time.Time
}

// ChangeEvent is the in-memory message ChangeDetector publishes after a
// successful capture. It is not persisted directly.
type ChangeEvent struct {
	TargetID      uuid.UUID
	SnapshotID    uuid.UUID
	VersionNumber int
	ChangeCount   int
	ChangePercent float64
	Severity      Severity
	ChangeType    ChangeType
	Sections      []SectionMatch
	Timestamp     time.Time
}

// Alert is a materialized notification derived from a ChangeEvent.
type Alert struct {
	ID            uuid.UUID
	TargetID      uuid.UUID
	SnapshotID    uuid.UUID
	Title         string
	Message       string
	ChangeType    ChangeType
	Severity      Severity
	ChangeCount   int
	VersionNumber int
	Status        AlertStatus
	CreatedAt     time.Time
}
