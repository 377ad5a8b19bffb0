// Package resolver implements the Failure-Mode Resolver (C13): a pure,
// deterministic decision tree over an EvidenceBundle. No step consults
// anything but its input; order of checks is first-match-wins exactly as
// spec §4.8.2 enumerates them.
package resolver

import (
	"fmt"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

// Resolve classifies bundle into a ResolvedFailure.
func Resolve(bundle domain.EvidenceBundle) domain.ResolvedFailure {
	if bundle.HasCitation && bundle.SourceRetrievable && bundle.SourceAgreesWithCarrier == domain.TriFalse {
		return domain.ResolvedFailure{
			FailureMode: domain.FailureSynthesisDrift,
			Reasoning:   "citation present, source retrievable, and source disagrees with the carrier's claim",
		}
	}

	if bundle.HasCitation && !bundle.SourceRetrievable {
		return domain.ResolvedFailure{
			FailureMode:             domain.FailureIncorrect,
			ConfidenceModifier:      -0.15,
			SuspectedSynthesisDrift: true,
			Reasoning:               "citation present but its source could not be retrieved for verification",
		}
	}

	if bundle.MandatoryDocMissing {
		return domain.ResolvedFailure{
			FailureMode: domain.FailureMissingReference,
			Reasoning:   fmt.Sprintf("mandatory document %s is missing", bundle.MissingDocID),
		}
	}

	if len(bundle.ConflictSignals) > 0 {
		return domain.ResolvedFailure{
			FailureMode: domain.FailureConflictUnresolved,
			Reasoning:   fmt.Sprintf("%d unresolved conflict signal(s) between guidance documents", len(bundle.ConflictSignals)),
		}
	}

	ambiguity := ambiguityScore(bundle)
	incompleteness := incompletenessScore(bundle)
	if ambiguity > incompleteness && ambiguity >= 2 {
		return domain.ResolvedFailure{
			FailureMode: domain.FailureAmbiguous,
			Reasoning:   fmt.Sprintf("ambiguity score %d outweighs incompleteness score %d", ambiguity, incompleteness),
		}
	}
	if incompleteness > ambiguity && incompleteness >= 2 {
		return domain.ResolvedFailure{
			FailureMode: domain.FailureIncomplete,
			Reasoning:   fmt.Sprintf("incompleteness score %d outweighs ambiguity score %d", incompleteness, ambiguity),
		}
	}

	return domain.ResolvedFailure{
		FailureMode: defaultOnCarrierKind(bundle.CarrierQuoteType, bundle.CarrierInstructionKind),
		Reasoning:   fmt.Sprintf("default classification for carrier quote type %s, instruction kind %s", bundle.CarrierQuoteType, bundle.CarrierInstructionKind),
	}
}

// ambiguityScore buckets the vagueness-signal count and adds one when the
// carrier lacks testable acceptance criteria, per spec §4.8.2 step 5.
func ambiguityScore(bundle domain.EvidenceBundle) int {
	score := bucketVagueness(len(bundle.VaguenessSignals))
	if !bundle.HasTestableAcceptanceCriteria {
		score++
	}
	return score
}

func bucketVagueness(count int) int {
	switch {
	case count >= 3:
		return 3
	case count >= 2:
		return 2
	case count >= 1:
		return 1
	default:
		return 0
	}
}

// incompletenessScore is spec §4.8.2 step 5's incompleteness formula.
func incompletenessScore(bundle domain.EvidenceBundle) int {
	score := 0
	if bundle.CarrierQuoteType == domain.QuoteInferred {
		score += 3
	}
	if bundle.HasCitation && len(bundle.CitedSources) > 0 {
		score++
	}
	if len(bundle.VaguenessSignals) == 0 && bundle.CarrierQuoteType != domain.QuoteInferred {
		score++
	}
	return score
}

// defaultOnCarrierKind is spec §4.8.2 step 6's fallback, reached only when
// neither ambiguity nor incompleteness cleared the threshold in step 5. The
// carrier instruction kind only distinguishes outcomes when the carrier was
// quoted verbatim or paraphrased; an inferred carrier is always incomplete
// regardless of instruction kind.
func defaultOnCarrierKind(quoteType domain.QuoteType, kind domain.InstructionKind) domain.FailureMode {
	if quoteType != domain.QuoteVerbatim && quoteType != domain.QuoteParaphrase {
		return domain.FailureIncomplete
	}
	if kind == domain.InstructionExplicitlyHarmful {
		return domain.FailureIncorrect
	}
	return domain.FailureIncomplete
}
