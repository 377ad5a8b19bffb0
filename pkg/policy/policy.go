// Package policy embeds the Rego policy (C23) that encodes the Kill-Switch
// auto-pause threshold decision (spec.md §4.9), so operators can swap the
// breach rule by editing a policy file rather than shipping a new binary.
package policy

import (
	"context"
	_ "embed"

	"github.com/open-policy-agent/opa/rego"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

//go:embed rego/killswitch.rego
var killSwitchPolicy string

// KillSwitchEvaluator evaluates the embedded (or operator-supplied) Rego
// policy against a health snapshot and threshold configuration.
type KillSwitchEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewKillSwitchEvaluator prepares the embedded policy for evaluation. An
// empty policySource falls back to the embedded default.
func NewKillSwitchEvaluator(ctx context.Context, policySource string) (*KillSwitchEvaluator, error) {
	if policySource == "" {
		policySource = killSwitchPolicy
	}
	pq, err := rego.New(
		rego.Query("data.falcon.killswitch"),
		rego.Module("killswitch.rego", policySource),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &KillSwitchEvaluator{query: pq}, nil
}

// Decision is the policy's verdict for one health snapshot.
type Decision struct {
	Breached bool
	Reason   string
}

// Evaluate runs the policy against metrics and thresholds, satisfying
// killswitch.BreachEvaluator so a *KillSwitchEvaluator can be passed
// directly to Switch.WithPolicyEvaluator.
func (e *KillSwitchEvaluator) Evaluate(ctx context.Context, m domain.HealthMetrics, t domain.Thresholds) (bool, string, error) {
	d, err := e.decide(ctx, m, t)
	if err != nil {
		return false, "", err
	}
	return d.Breached, d.Reason, nil
}

// decide runs the policy against metrics and thresholds and returns the
// full breach decision.
func (e *KillSwitchEvaluator) decide(ctx context.Context, m domain.HealthMetrics, t domain.Thresholds) (Decision, error) {
	input := map[string]interface{}{
		"attribution_precision_score": m.AttributionPrecisionScore,
		"inferred_ratio":              m.InferredRatio,
		"observed_improvement_rate":   m.ObservedImprovementRate,
		"precision_floor":             t.PrecisionFloor,
		"inferred_ratio_ceiling":      t.InferredRatioCeiling,
		"improvement_rate_floor":      t.ImprovementRateFloor,
		"breach_margin":               t.BreachMargin,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, nil
	}

	breached, _ := doc["breached"].(bool)
	reason, _ := doc["reason"].(string)
	return Decision{Breached: breached, Reason: reason}, nil
}
