package domain

import "time"

// Touch is a coarse task-effect tag used to match patterns to tasks.
type Touch string

const (
	TouchDatabase   Touch = "database"
	TouchAuthz      Touch = "authz"
	TouchNetwork    Touch = "network"
	TouchFilesystem Touch = "filesystem"
	TouchOther      Touch = "other"
)

// AlertStatus is the lifecycle of a Provisional Alert.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertPromoted AlertStatus = "promoted"
	AlertExpired  AlertStatus = "expired"
)

// ProvisionalAlert is a candidate warning raised from a single confirmed
// finding, waiting to accumulate enough corroborating occurrences to be
// promoted into a durable Pattern.
type ProvisionalAlert struct {
	ID                 string
	Message            string
	FindingID          string
	IssueID            int64
	Touches            []Touch
	TouchedFilePatterns []string
	ExpiresAt          time.Time
	Status             AlertStatus
	PromotedPatternID  string
	CreatedAt          time.Time
}

// CarrierStageKind restricts which pipeline stage a promoted pattern's
// warning is injected into.
type CarrierStageKind string

const (
	CarrierStageContextPack CarrierStageKind = "context-pack"
	CarrierStageSpec        CarrierStageKind = "spec"
)

// PatternDefinition is a durable, reusable warning learned by the
// Attribution Engine.
type PatternDefinition struct {
	ID               string
	ProjectID        string
	CarrierStage     CarrierStageKind
	PatternContent   string
	Alternative      string
	FindingCategory  string
	FailureMode      FailureMode
	SeverityMax      string
	Touches          []Touch
	Technologies     []string
	Confidence       float64
	Permanent        bool
	Archived         bool
	CreatedAt        time.Time
	LastDecayedAt    time.Time
}

// PatternOccurrence is one concrete instance of a PatternDefinition firing
// against a specific source document.
type PatternOccurrence struct {
	ID                string
	PatternID         string
	AlertID           string
	IssueID           int64
	DocumentFingerprint string
	CarrierQuoteType  QuoteType
	WasInjected       bool
	WasAdheredTo      bool
	Status            OccurrenceStatus
	InactiveReason    string
	CreatedAt         time.Time
}

// OccurrenceStatus tracks whether an occurrence still counts toward
// promotion/salience math, or has been invalidated by a document change.
type OccurrenceStatus string

const (
	OccurrenceActive   OccurrenceStatus = "active"
	OccurrenceInactive OccurrenceStatus = "inactive"
)

const InactiveReasonSupersededDoc = "superseded_doc"

// ConfidenceForQuoteType is the Open Question #1 derivation documented in
// DESIGN.md: occurrences have no stored confidence of their own; it is
// always derived from the evidence's carrierQuoteType via this hardcoded
// map. Unknown quote types default to 0.5 (spec §8 boundary behaviour).
func ConfidenceForQuoteType(qt QuoteType) float64 {
	switch qt {
	case QuoteVerbatim:
		return 0.9
	case QuoteParaphrase:
		return 0.7
	case QuoteInferred:
		return 0.5
	default:
		return 0.5
	}
}

// SalienceIssue flags a pattern whose warnings are being repeatedly ignored.
type SalienceIssue struct {
	ID          string
	PatternID   string
	Key         string
	IgnoredCount int
	RaisedAt    time.Time
	Resolved    bool
}

// PrincipleOrigin distinguishes a foundational guideline seeded at project
// setup from one synthesized later out of accumulated pattern history.
type PrincipleOrigin string

const (
	PrincipleBaseline PrincipleOrigin = "baseline"
	PrincipleDerived  PrincipleOrigin = "derived"
)

// Principle is a standing piece of project guidance injected into every
// downstream agent prompt alongside active alerts and patterns, independent
// of any single finding.
type Principle struct {
	ID        string
	ProjectID string
	Content   string
	Origin    PrincipleOrigin
	Priority  int
	CreatedAt time.Time
}
