package noncompliance_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/attribution/noncompliance"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

func TestCheck_SkipsWhenFailureModeDoesNotWarrantIt(t *testing.T) {
	_, ok := noncompliance.Check(noncompliance.Input{
		FailureMode:  domain.FailureAmbiguous,
		FindingTitle: "timeout retry backoff",
	})
	assert.False(t, ok)
}

func TestCheck_SkipsWhenNoKeywordsExtracted(t *testing.T) {
	_, ok := noncompliance.Check(noncompliance.Input{
		FailureMode:  domain.FailureIncomplete,
		FindingTitle: "a to in",
	})
	assert.False(t, ok)
}

func TestCheck_MatchesContextPackOverSpecWhenBothQualify(t *testing.T) {
	contextPack := strings.Join([]string{
		"heading",
		"always apply exponential backoff retry timeout guard",
		"before calling the downstream database service client",
		"otherwise the pipeline will cascade failures everywhere",
		"end of section",
	}, "\n")
	spec := strings.Join([]string{
		"unrelated heading",
		"exponential backoff retry timeout guard database service",
		"client cascade failures pipeline unrelated more words here",
		"more filler text that is not relevant at all today",
		"final line",
	}, "\n")

	in := noncompliance.Input{
		FailureMode:        domain.FailureIncomplete,
		FindingTitle:       "missing retry backoff",
		FindingDescription: "exponential backoff retry timeout guard database service client cascade failures pipeline",
		CarrierLocation:    "nowhere near a match",
		ContextPack:        noncompliance.Document{Stage: domain.CarrierContextPack, Content: contextPack},
		Spec:                noncompliance.Document{Stage: domain.CarrierSpec, Content: spec},
	}

	got, ok := noncompliance.Check(in)
	require.True(t, ok)
	assert.Equal(t, domain.CarrierContextPack, got.ViolatedGuidanceStage)
	assert.Contains(t, got.ViolatedLocation, "Lines")
	assert.Greater(t, got.Relevance, 0.0)
}

func TestCheck_FallsBackToSpecWhenContextPackDoesNotQualify(t *testing.T) {
	spec := strings.Join([]string{
		"unrelated heading",
		"exponential backoff retry timeout guard database service",
		"client cascade failures pipeline unrelated more words here",
		"more filler text that is not relevant at all today",
		"final line",
	}, "\n")

	in := noncompliance.Input{
		FailureMode:        domain.FailureMissingReference,
		FindingTitle:       "missing retry backoff",
		FindingDescription: "exponential backoff retry timeout guard database service client cascade failures pipeline",
		ContextPack:        noncompliance.Document{Stage: domain.CarrierContextPack, Content: "totally unrelated text with nothing matching"},
		Spec:                noncompliance.Document{Stage: domain.CarrierSpec, Content: spec},
	}

	got, ok := noncompliance.Check(in)
	require.True(t, ok)
	assert.Equal(t, domain.CarrierSpec, got.ViolatedGuidanceStage)
}

func TestCheck_NoMatchAnywhereReturnsFalse(t *testing.T) {
	in := noncompliance.Input{
		FailureMode:        domain.FailureIncomplete,
		FindingTitle:       "missing retry backoff",
		FindingDescription: "exponential backoff retry timeout guard",
		ContextPack:        noncompliance.Document{Content: "nothing here matches at all"},
		Spec:                noncompliance.Document{Content: "nor does this text match anything"},
	}

	_, ok := noncompliance.Check(in)
	assert.False(t, ok)
}

func TestCheck_SalienceCauseWhenCarrierLocationDoesNotContainMatch(t *testing.T) {
	contextPack := strings.Join([]string{
		"exponential backoff retry timeout guard database",
		"service client cascade failures pipeline section",
		"more words filler padding text extra content here",
		"additional filler line for window padding purposes",
		"final line of the document content block",
	}, "\n")

	in := noncompliance.Input{
		FailureMode:        domain.FailureIncomplete,
		FindingTitle:       "missing retry backoff",
		FindingDescription: "exponential backoff retry timeout guard database service client cascade failures pipeline",
		CarrierLocation:    "Lines 99..103",
		ContextPack:        noncompliance.Document{Stage: domain.CarrierContextPack, Content: contextPack},
	}

	got, ok := noncompliance.Check(in)
	require.True(t, ok)
	assert.Contains(t, got.PossibleCauses, domain.CauseSalience)
}

func TestCheck_FormattingCauseWhenCarrierLocationContainsMatch(t *testing.T) {
	contextPack := strings.Join([]string{
		"exponential backoff retry timeout guard database",
		"service client cascade failures pipeline section",
		"more words filler padding text extra content here",
		"additional filler line for window padding purposes",
		"final line of the document content block",
	}, "\n")

	in := noncompliance.Input{
		FailureMode:        domain.FailureIncomplete,
		FindingTitle:       "missing retry backoff",
		FindingDescription: "exponential backoff retry timeout guard database service client cascade failures pipeline",
		CarrierLocation:    "Lines 1..5",
		ContextPack:        noncompliance.Document{Stage: domain.CarrierContextPack, Content: contextPack},
	}

	got, ok := noncompliance.Check(in)
	require.True(t, ok)
	assert.Contains(t, got.PossibleCauses, domain.CauseFormatting)
	assert.NotContains(t, got.PossibleCauses, domain.CauseSalience)
}
