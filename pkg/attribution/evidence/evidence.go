// Package evidence implements Evidence Extraction (C12): an external LLM
// call that produces an EvidenceBundle constrained by schema, with the core
// independently validating and rejecting anything malformed before it
// reaches the Failure-Mode Resolver (C13).
package evidence

import (
	"context"
	"encoding/json"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// Request carries everything an extraction provider needs to ground its
// classification in a single finding: the carrier document an agent is
// suspected of having violated, and the agent's actual behaviour.
type Request struct {
	CarrierStage       domain.CarrierStage
	CarrierDocument    string
	FindingTitle       string
	FindingDescription string
	AgentTranscript    string
}

// Provider extracts an EvidenceBundle for a single finding. Implementations
// own their own retry/fallback policy; Extract itself is expected to return
// promptly with either a validated bundle or an error.
type Provider interface {
	Extract(ctx context.Context, req Request) (domain.EvidenceBundle, error)
}

// rawBundle mirrors domain.EvidenceBundle's JSON shape for decoding a
// provider's raw text response, independent of the Go field names so a
// provider-specific JSON key style doesn't leak into the domain type.
type rawBundle struct {
	CarrierQuote                  string                 `json:"carrierQuote"`
	CarrierQuoteType              string                 `json:"carrierQuoteType"`
	CarrierInstructionKind        string                 `json:"carrierInstructionKind"`
	CarrierLocation                string                `json:"carrierLocation"`
	HasCitation                    bool                  `json:"hasCitation"`
	CitedSources                   []string              `json:"citedSources"`
	SourceRetrievable               bool                 `json:"sourceRetrievable"`
	SourceAgreesWithCarrier          string              `json:"sourceAgreesWithCarrier"`
	MandatoryDocMissing              bool                `json:"mandatoryDocMissing"`
	MissingDocID                     string              `json:"missingDocId"`
	VaguenessSignals                 []string            `json:"vaguenessSignals"`
	HasTestableAcceptanceCriteria    bool                `json:"hasTestableAcceptanceCriteria"`
	ConflictSignals                  []rawConflictSignal `json:"conflictSignals"`
}

type rawConflictSignal struct {
	DocA     string `json:"docA"`
	DocB     string `json:"docB"`
	Topic    string `json:"topic"`
	ExcerptA string `json:"excerptA"`
	ExcerptB string `json:"excerptB"`
}

// parseAndValidate decodes raw JSON text into an EvidenceBundle and rejects
// it with KindAttributionInvalid if it is malformed or internally
// inconsistent. carrierStage comes from the request, not the LLM response:
// the provider never gets to claim which stage's document it is citing.
func parseAndValidate(carrierStage domain.CarrierStage, text string) (domain.EvidenceBundle, error) {
	var raw rawBundle
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.EvidenceBundle{}, falconerrors.New(falconerrors.KindAttributionInvalid, "parse evidence bundle", err)
	}

	bundle := domain.EvidenceBundle{
		CarrierStage:                  carrierStage,
		CarrierQuote:                  raw.CarrierQuote,
		CarrierQuoteType:              domain.QuoteType(raw.CarrierQuoteType),
		CarrierInstructionKind:        domain.InstructionKind(raw.CarrierInstructionKind),
		CarrierLocation:               raw.CarrierLocation,
		HasCitation:                   raw.HasCitation,
		CitedSources:                  raw.CitedSources,
		SourceRetrievable:             raw.SourceRetrievable,
		SourceAgreesWithCarrier:       domain.TriBool(raw.SourceAgreesWithCarrier),
		MandatoryDocMissing:           raw.MandatoryDocMissing,
		MissingDocID:                  raw.MissingDocID,
		VaguenessSignals:              raw.VaguenessSignals,
		HasTestableAcceptanceCriteria: raw.HasTestableAcceptanceCriteria,
	}
	for _, c := range raw.ConflictSignals {
		bundle.ConflictSignals = append(bundle.ConflictSignals, domain.ConflictSignal{
			DocA: c.DocA, DocB: c.DocB, Topic: c.Topic, ExcerptA: c.ExcerptA, ExcerptB: c.ExcerptB,
		})
	}

	if err := validate(bundle); err != nil {
		return domain.EvidenceBundle{}, err
	}
	return bundle, nil
}

// validate enforces the internal-consistency rules the Failure-Mode
// Resolver's decision tree depends on: every field it reads must already be
// one of its known enum values, and boolean/detail pairs must agree.
func validate(b domain.EvidenceBundle) error {
	switch b.CarrierQuoteType {
	case domain.QuoteVerbatim, domain.QuoteParaphrase, domain.QuoteInferred:
	default:
		return falconerrors.New(falconerrors.KindAttributionInvalid, "validate evidence bundle", nil).
			WithResource("carrierQuoteType: " + string(b.CarrierQuoteType))
	}
	switch b.CarrierInstructionKind {
	case domain.InstructionExplicitlyHarmful, domain.InstructionBenignMissingGuardrails,
		domain.InstructionDescriptive, domain.InstructionUnknown:
	default:
		return falconerrors.New(falconerrors.KindAttributionInvalid, "validate evidence bundle", nil).
			WithResource("carrierInstructionKind: " + string(b.CarrierInstructionKind))
	}
	switch b.SourceAgreesWithCarrier {
	case domain.TriTrue, domain.TriFalse, domain.TriUnknown, "":
	default:
		return falconerrors.New(falconerrors.KindAttributionInvalid, "validate evidence bundle", nil).
			WithResource("sourceAgreesWithCarrier: " + string(b.SourceAgreesWithCarrier))
	}
	if b.HasCitation && len(b.CitedSources) == 0 {
		return falconerrors.New(falconerrors.KindAttributionInvalid, "validate evidence bundle", nil).
			WithResource("hasCitation=true with no citedSources")
	}
	if b.MandatoryDocMissing && b.MissingDocID == "" {
		return falconerrors.New(falconerrors.KindAttributionInvalid, "validate evidence bundle", nil).
			WithResource("mandatoryDocMissing=true with no missingDocId")
	}
	return nil
}
