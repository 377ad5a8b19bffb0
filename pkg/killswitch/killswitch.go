// Package killswitch implements the Kill Switch (C16): the pattern-creation
// gate for a project, its manual pause/resume transitions, and the
// rolling-health auto-pause/auto-resume evaluation spec.md §4.9 defines.
package killswitch

import (
	"context"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// BreachEvaluator decides whether a health snapshot breaches thresholds.
// The default implementation is the hardcoded breachReason function below;
// WithPolicyEvaluator lets an operator swap in the Rego-backed evaluator
// (C23) without a code change.
type BreachEvaluator interface {
	Evaluate(ctx context.Context, m domain.HealthMetrics, t domain.Thresholds) (breached bool, reason string, err error)
}

// Notifier receives a kill-switch state transition once it is persisted.
// *notify.Notifier satisfies this without pkg/killswitch importing pkg/notify.
type Notifier interface {
	KillSwitchChanged(ctx context.Context, status *domain.KillSwitchStatus)
}

// Switch drives kill-switch state transitions for projects, backed by a
// repository.KillSwitchRepository.
type Switch struct {
	repo     repository.KillSwitchRepository
	policy   BreachEvaluator
	notifier Notifier
}

// New returns a Switch backed by repo, using the hardcoded breach rule.
func New(repo repository.KillSwitchRepository) *Switch {
	return &Switch{repo: repo}
}

// WithPolicyEvaluator swaps the breach decision to an external evaluator
// (typically pkg/policy's Rego-backed KillSwitchEvaluator).
func (s *Switch) WithPolicyEvaluator(e BreachEvaluator) *Switch {
	s.policy = e
	return s
}

// WithNotifier attaches a Notifier invoked after every persisted pause,
// resume, or auto-pause transition.
func (s *Switch) WithNotifier(n Notifier) *Switch {
	s.notifier = n
	return s
}

func (s *Switch) notify(ctx context.Context, status *domain.KillSwitchStatus) {
	if s.notifier != nil {
		s.notifier.KillSwitchChanged(ctx, status)
	}
}

// AllowsCreation reports whether a pattern or occurrence with the given
// carrier quote type may be created while state holds, per spec.md §4.9:
// active allows everything; inferred_paused still allows verbatim and
// paraphrase evidence, logging inferred evidence only; fully_paused blocks
// all pattern creation. Injection of already-existing patterns is never
// gated by this function — only creation is.
func AllowsCreation(state domain.KillSwitchState, quoteType domain.QuoteType) bool {
	switch state {
	case domain.KillSwitchActive:
		return true
	case domain.KillSwitchInferredPaused:
		return quoteType != domain.QuoteInferred
	case domain.KillSwitchFullyPaused:
		return false
	default:
		return false
	}
}

// Pause manually pauses projectID with a required reason.
func (s *Switch) Pause(ctx context.Context, workspaceID, projectID, reason string) error {
	if reason == "" {
		return falconerrors.ValidationError("reason", "manual pause requires a reason")
	}
	status, err := s.getOrDefault(ctx, workspaceID, projectID)
	if err != nil {
		return err
	}
	status.State = domain.KillSwitchFullyPaused
	status.Reason = reason
	status.AutoTriggered = false
	status.AutoResumeAt = nil
	status.ChangedAt = nowFunc()
	if err := s.repo.Upsert(ctx, status); err != nil {
		return err
	}
	s.notify(ctx, status)
	return nil
}

// Resume manually resumes projectID to active. It refuses when the current
// pause was auto-triggered unless force is set, per spec.md §4.9.
func (s *Switch) Resume(ctx context.Context, workspaceID, projectID string, force bool) error {
	status, err := s.repo.Get(ctx, workspaceID, projectID)
	if err != nil {
		return err
	}
	if status.AutoTriggered && !force {
		return falconerrors.New(falconerrors.KindInvalidTransition, "resume kill switch", nil).
			WithResource("last pause was auto-triggered; pass force to override")
	}
	status.State = domain.KillSwitchActive
	status.Reason = ""
	status.AutoTriggered = false
	status.AutoResumeAt = nil
	status.ChangedAt = nowFunc()
	if err := s.repo.Upsert(ctx, status); err != nil {
		return err
	}
	s.notify(ctx, status)
	return nil
}

// EvaluateHealth applies spec.md §4.9's auto-pause rule to a rolling health
// snapshot and, when any metric breaches its threshold by more than the
// configured margin, transitions the project to fully_paused with an
// auto-triggered reason naming the breaching metric. It is a no-op when the
// project is already paused.
func (s *Switch) EvaluateHealth(ctx context.Context, metrics domain.HealthMetrics, thresholds domain.Thresholds) error {
	status, err := s.getOrDefault(ctx, "", metrics.ProjectID)
	if err != nil {
		return err
	}
	if status.State != domain.KillSwitchActive {
		return nil
	}

	reason, breached, err := s.evaluateBreach(ctx, metrics, thresholds)
	if err != nil {
		return err
	}
	if !breached {
		return nil
	}
	status.State = domain.KillSwitchFullyPaused
	status.Reason = reason
	status.AutoTriggered = true
	status.ChangedAt = nowFunc()
	if err := s.repo.Upsert(ctx, status); err != nil {
		return err
	}
	s.notify(ctx, status)
	return nil
}

// evaluateBreach delegates to the configured policy evaluator when set,
// otherwise falls back to the hardcoded breachReason rule.
func (s *Switch) evaluateBreach(ctx context.Context, m domain.HealthMetrics, t domain.Thresholds) (string, bool, error) {
	if s.policy != nil {
		breached, reason, err := s.policy.Evaluate(ctx, m, t)
		return reason, breached, err
	}
	reason, breached := breachReason(m, t)
	return reason, breached, nil
}

// breachReason reports the first health metric (in spec order) that
// breaches its threshold by more than thresholds.BreachMargin.
func breachReason(m domain.HealthMetrics, t domain.Thresholds) (string, bool) {
	if m.AttributionPrecisionScore < t.PrecisionFloor*(1-t.BreachMargin) {
		return "attribution precision score fell below floor by more than the configured margin", true
	}
	if m.InferredRatio > t.InferredRatioCeiling*(1+t.BreachMargin) {
		return "inferred-evidence ratio rose above ceiling by more than the configured margin", true
	}
	if m.ObservedImprovementRate < t.ImprovementRateFloor*(1-t.BreachMargin) {
		return "observed improvement rate fell below floor by more than the configured margin", true
	}
	return "", false
}

// WithinThresholds reports whether every health metric is within its
// threshold with no margin applied, the bar spec.md §4.9's auto-resume
// evaluation requires before a paused project may resume automatically.
func WithinThresholds(m domain.HealthMetrics, t domain.Thresholds) bool {
	return m.AttributionPrecisionScore >= t.PrecisionFloor &&
		m.InferredRatio <= t.InferredRatioCeiling &&
		m.ObservedImprovementRate >= t.ImprovementRateFloor
}

func (s *Switch) getOrDefault(ctx context.Context, workspaceID, projectID string) (*domain.KillSwitchStatus, error) {
	status, err := s.repo.Get(ctx, workspaceID, projectID)
	if err == nil {
		return status, nil
	}
	if !falconerrors.Is(err, falconerrors.KindNotFound) {
		return nil, err
	}
	return &domain.KillSwitchStatus{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		State:       domain.KillSwitchActive,
		ChangedAt:   nowFunc(),
	}, nil
}

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = time.Now
