package domain

// QuoteType classifies how firmly the carrier document's quoted guidance is
// grounded in what an agent actually said.
type QuoteType string

const (
	QuoteVerbatim   QuoteType = "verbatim"
	QuoteParaphrase QuoteType = "paraphrase"
	QuoteInferred   QuoteType = "inferred"
)

// InstructionKind classifies the nature of the carrier instruction itself.
type InstructionKind string

const (
	InstructionExplicitlyHarmful           InstructionKind = "explicitly_harmful"
	InstructionBenignMissingGuardrails     InstructionKind = "benign_but_missing_guardrails"
	InstructionDescriptive                 InstructionKind = "descriptive"
	InstructionUnknown                     InstructionKind = "unknown"
)

// TriBool is a three-valued logic value: true, false, or unknown. Go has no
// native three-valued bool, so this mirrors the teacher's pattern of an
// explicit enum wherever "unknown" is a first-class outcome rather than an
// absent zero value.
type TriBool string

const (
	TriTrue    TriBool = "true"
	TriFalse   TriBool = "false"
	TriUnknown TriBool = "unknown"
)

// ConflictSignal records one pair of guidance documents that disagree on a
// topic.
type ConflictSignal struct {
	DocA     string
	DocB     string
	Topic    string
	ExcerptA string
	ExcerptB string
}

// EvidenceBundle is the structured output of the Attribution Agent Caller
// (C12): everything the Failure-Mode Resolver (C13) and Noncompliance
// Checker (C14) need, and nothing else.
type EvidenceBundle struct {
	CarrierStage              CarrierStage
	CarrierQuote               string
	CarrierQuoteType            QuoteType
	CarrierInstructionKind      InstructionKind
	CarrierLocation             string
	HasCitation                 bool
	CitedSources                 []string
	SourceRetrievable            bool
	SourceAgreesWithCarrier       TriBool
	MandatoryDocMissing           bool
	MissingDocID                  string
	VaguenessSignals              []string
	HasTestableAcceptanceCriteria bool
	ConflictSignals               []ConflictSignal
}

// CarrierStage is the pipeline stage that produced the carrier document a
// piece of evidence is attributed to: only Context Pack and Spec carry
// forward-looking guidance an agent can violate.
type CarrierStage string

const (
	CarrierContextPack CarrierStage = "context-pack"
	CarrierSpec        CarrierStage = "spec"
)

// FailureMode is the Failure-Mode Resolver's (C13) deterministic output
// classification.
type FailureMode string

const (
	FailureSynthesisDrift    FailureMode = "synthesis_drift"
	FailureIncorrect         FailureMode = "incorrect"
	FailureMissingReference  FailureMode = "missing_reference"
	FailureConflictUnresolved FailureMode = "conflict_unresolved"
	FailureAmbiguous          FailureMode = "ambiguous"
	FailureIncomplete         FailureMode = "incomplete"
)

// ResolvedFailure is C13's output: the failure mode plus the flags and
// reasoning the rest of the engine needs.
type ResolvedFailure struct {
	FailureMode         FailureMode
	ConfidenceModifier  float64
	SuspectedSynthesisDrift bool
	Reasoning           string
}

// PossibleCause is one reason execution ignored guidance that existed.
type PossibleCause string

const (
	CauseSalience   PossibleCause = "salience"
	CauseFormatting PossibleCause = "formatting"
)

// ExecutionNoncompliance records that guidance existed but execution ignored
// it (C14 output), only ever produced for failureMode in
// {incomplete, missing_reference}.
type ExecutionNoncompliance struct {
	ID                   string
	FindingID            string
	ViolatedGuidanceStage CarrierStage
	ViolatedLocation       string
	ViolatedExcerpt        string
	PossibleCauses         []PossibleCause
	Relevance              float64
}
