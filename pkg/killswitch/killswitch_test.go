package killswitch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
)

func TestAllowsCreation_Active(t *testing.T) {
	assert.True(t, killswitch.AllowsCreation(domain.KillSwitchActive, domain.QuoteInferred))
	assert.True(t, killswitch.AllowsCreation(domain.KillSwitchActive, domain.QuoteVerbatim))
}

func TestAllowsCreation_InferredPausedBlocksOnlyInferred(t *testing.T) {
	assert.False(t, killswitch.AllowsCreation(domain.KillSwitchInferredPaused, domain.QuoteInferred))
	assert.True(t, killswitch.AllowsCreation(domain.KillSwitchInferredPaused, domain.QuoteVerbatim))
	assert.True(t, killswitch.AllowsCreation(domain.KillSwitchInferredPaused, domain.QuoteParaphrase))
}

func TestAllowsCreation_FullyPausedBlocksEverything(t *testing.T) {
	assert.False(t, killswitch.AllowsCreation(domain.KillSwitchFullyPaused, domain.QuoteVerbatim))
	assert.False(t, killswitch.AllowsCreation(domain.KillSwitchFullyPaused, domain.QuoteInferred))
}

func TestPause_RequiresReason(t *testing.T) {
	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch)

	err := sw.Pause(context.Background(), "ws", "proj-1", "")
	require.Error(t, err)
}

func TestPause_ThenResumeWithoutForceSucceedsForManualPause(t *testing.T) {
	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch)

	require.NoError(t, sw.Pause(context.Background(), "ws", "proj-1", "investigating a bug"))
	require.NoError(t, sw.Resume(context.Background(), "ws", "proj-1", false))

	status, err := store.Repositories().KillSwitch.Get(context.Background(), "ws", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, domain.KillSwitchActive, status.State)
}

func TestEvaluateHealth_BreachTriggersAutoPause(t *testing.T) {
	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch)
	thresholds := domain.DefaultThresholds()

	metrics := domain.HealthMetrics{
		ProjectID:                 "proj-1",
		AttributionPrecisionScore: 0.1,
		InferredRatio:             0.1,
		ObservedImprovementRate:   0.9,
	}
	require.NoError(t, sw.EvaluateHealth(context.Background(), metrics, thresholds))

	status, err := store.Repositories().KillSwitch.Get(context.Background(), "", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, domain.KillSwitchFullyPaused, status.State)
	assert.True(t, status.AutoTriggered)
}

func TestEvaluateHealth_WithinMarginDoesNotPause(t *testing.T) {
	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch)
	thresholds := domain.DefaultThresholds()

	metrics := domain.HealthMetrics{
		ProjectID:                 "proj-1",
		AttributionPrecisionScore: thresholds.PrecisionFloor,
		InferredRatio:             thresholds.InferredRatioCeiling,
		ObservedImprovementRate:   thresholds.ImprovementRateFloor,
	}
	require.NoError(t, sw.EvaluateHealth(context.Background(), metrics, thresholds))

	status, err := store.Repositories().KillSwitch.Get(context.Background(), "", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, domain.KillSwitchActive, status.State, "nothing breached, so the project must stay active")
}

func TestResume_RefusesAutoTriggeredPauseWithoutForce(t *testing.T) {
	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch)
	thresholds := domain.DefaultThresholds()

	metrics := domain.HealthMetrics{ProjectID: "proj-1", AttributionPrecisionScore: 0.0, InferredRatio: 0.0, ObservedImprovementRate: 1.0}
	require.NoError(t, sw.EvaluateHealth(context.Background(), metrics, thresholds))

	err := sw.Resume(context.Background(), "", "proj-1", false)
	require.Error(t, err)

	require.NoError(t, sw.Resume(context.Background(), "", "proj-1", true))
	status, err := store.Repositories().KillSwitch.Get(context.Background(), "", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, domain.KillSwitchActive, status.State)
}

func TestWithinThresholds(t *testing.T) {
	thresholds := domain.DefaultThresholds()
	assert.True(t, killswitch.WithinThresholds(domain.HealthMetrics{
		AttributionPrecisionScore: 0.9,
		InferredRatio:             0.1,
		ObservedImprovementRate:   0.5,
	}, thresholds))
	assert.False(t, killswitch.WithinThresholds(domain.HealthMetrics{
		AttributionPrecisionScore: 0.1,
		InferredRatio:             0.1,
		ObservedImprovementRate:   0.5,
	}, thresholds))
}
