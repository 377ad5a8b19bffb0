package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/policy"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
)

func TestEvaluate_NoBreachWithinThresholds(t *testing.T) {
	ctx := context.Background()
	eval, err := policy.NewKillSwitchEvaluator(ctx, "")
	require.NoError(t, err)

	m := domain.HealthMetrics{
		AttributionPrecisionScore: 0.95,
		InferredRatio:             0.10,
		ObservedImprovementRate:   0.50,
	}
	breached, reason, err := eval.Evaluate(ctx, m, domain.DefaultThresholds())
	require.NoError(t, err)
	require.False(t, breached)
	require.Equal(t, "", reason)
}

func TestEvaluate_BreachesOnLowPrecision(t *testing.T) {
	ctx := context.Background()
	eval, err := policy.NewKillSwitchEvaluator(ctx, "")
	require.NoError(t, err)

	m := domain.HealthMetrics{
		AttributionPrecisionScore: 0.10,
		InferredRatio:             0.10,
		ObservedImprovementRate:   0.50,
	}
	breached, reason, err := eval.Evaluate(ctx, m, domain.DefaultThresholds())
	require.NoError(t, err)
	require.True(t, breached)
	require.Contains(t, reason, "precision")
}

func TestEvaluate_BreachesOnHighInferredRatio(t *testing.T) {
	ctx := context.Background()
	eval, err := policy.NewKillSwitchEvaluator(ctx, "")
	require.NoError(t, err)

	m := domain.HealthMetrics{
		AttributionPrecisionScore: 0.95,
		InferredRatio:             0.90,
		ObservedImprovementRate:   0.50,
	}
	breached, reason, err := eval.Evaluate(ctx, m, domain.DefaultThresholds())
	require.NoError(t, err)
	require.True(t, breached)
	require.Contains(t, reason, "inferred")
}

func TestEvaluate_WithinMarginDoesNotBreach(t *testing.T) {
	ctx := context.Background()
	eval, err := policy.NewKillSwitchEvaluator(ctx, "")
	require.NoError(t, err)

	// 5% below floor, margin is 10% — should not breach.
	m := domain.HealthMetrics{
		AttributionPrecisionScore: 0.665,
		InferredRatio:             0.10,
		ObservedImprovementRate:   0.50,
	}
	breached, _, err := eval.Evaluate(ctx, m, domain.DefaultThresholds())
	require.NoError(t, err)
	require.False(t, breached)
}

func TestKillSwitchEvaluator_WiredIntoSwitchDrivesAutoPause(t *testing.T) {
	ctx := context.Background()
	eval, err := policy.NewKillSwitchEvaluator(ctx, "")
	require.NoError(t, err)

	store := memory.New()
	sw := killswitch.New(store.Repositories().KillSwitch).WithPolicyEvaluator(eval)

	metrics := domain.HealthMetrics{
		ProjectID:                 "proj-1",
		AttributionPrecisionScore: 0.1,
		InferredRatio:             0.1,
		ObservedImprovementRate:   0.9,
	}
	require.NoError(t, sw.EvaluateHealth(ctx, metrics, domain.DefaultThresholds()))

	status, err := store.Repositories().KillSwitch.Get(ctx, "", "proj-1")
	require.NoError(t, err)
	require.Equal(t, domain.KillSwitchFullyPaused, status.State)
	require.Contains(t, status.Reason, "precision")
}
