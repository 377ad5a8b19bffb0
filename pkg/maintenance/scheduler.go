// Package maintenance implements the Maintenance Scheduler (C17): the daily
// per-project job that decays pattern confidence, expires provisional
// alerts, detects salience issues, and auto-resumes a kill switch once a
// project's rolling health metrics recover.
package maintenance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
)

// HealthMetricsProvider computes a project's rolling-window health snapshot.
// The computation itself (aggregating audit events into precision/ratio/
// improvement-rate scores) is out of this package's scope; the Metrics
// Registry is the intended production implementation.
type HealthMetricsProvider interface {
	Compute(ctx context.Context, projectID string) (domain.HealthMetrics, error)
}

// Notifier receives a newly raised salience issue. *notify.Notifier satisfies
// this without pkg/maintenance importing pkg/notify.
type Notifier interface {
	SalienceIssueRaised(ctx context.Context, issue *domain.SalienceIssue)
}

// Scheduler runs the daily maintenance pass for one project at a time.
type Scheduler struct {
	repos      *repository.Repositories
	killSwitch *killswitch.Switch
	health     HealthMetricsProvider
	thresholds domain.Thresholds
	notifier   Notifier
}

// New returns a Scheduler backed by repos, a kill switch, and a health
// metrics provider. Thresholds default to domain.DefaultThresholds().
func New(repos *repository.Repositories, killSwitch *killswitch.Switch, health HealthMetricsProvider) *Scheduler {
	return &Scheduler{repos: repos, killSwitch: killSwitch, health: health, thresholds: domain.DefaultThresholds()}
}

// WithThresholds overrides the default thresholds, for operators or tests
// that need a different decay/archive/salience configuration.
func (s *Scheduler) WithThresholds(t domain.Thresholds) *Scheduler {
	s.thresholds = t
	return s
}

// WithNotifier attaches a Notifier invoked every time detectSalience raises
// or re-raises a salience issue.
func (s *Scheduler) WithNotifier(n Notifier) *Scheduler {
	s.notifier = n
	return s
}

// RunDailyForProject performs every spec.md §4.9 daily maintenance step for
// one project: confidence decay, alert expiry, salience detection, and
// kill-switch auto-resume (only attempted if projectID is due for
// evaluation — callers typically drive auto-resume separately via
// RunAutoResume across every due project).
func (s *Scheduler) RunDailyForProject(ctx context.Context, projectID string) error {
	if err := s.decayPatterns(ctx, projectID); err != nil {
		return err
	}
	if err := s.expireAlerts(ctx); err != nil {
		return err
	}
	if err := s.detectSalience(ctx, projectID); err != nil {
		return err
	}
	return nil
}

// decayPatterns reduces confidence by DecayStep for every non-permanent
// pattern past DecayPeriodDays since its last decay, archiving it once
// confidence falls below ArchiveThreshold.
func (s *Scheduler) decayPatterns(ctx context.Context, projectID string) error {
	due, err := s.repos.Patterns.ListForDecay(ctx, projectID, s.thresholds.DecayPeriodDays)
	if err != nil {
		return err
	}
	for _, p := range due {
		p.Confidence -= s.thresholds.DecayStep
		if p.Confidence < 0 {
			p.Confidence = 0
		}
		p.LastDecayedAt = nowFunc()
		if p.Confidence < s.thresholds.ArchiveThreshold {
			p.Archived = true
		}
		if err := s.repos.Patterns.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// expireAlerts transitions every pending alert past its expiry to expired.
// Early promotion of a still-pending alert that newly clears the pattern
// gate is handled reactively by the Alert Promoter on occurrence creation
// (see DESIGN.md); by the time an alert reaches its expiry here, any gate
// it could meet with its existing occurrences has already been evaluated.
func (s *Scheduler) expireAlerts(ctx context.Context) error {
	expiring, err := s.repos.Alerts.ListExpiring(ctx)
	if err != nil {
		return err
	}
	for _, a := range expiring {
		a.Status = domain.AlertExpired
		if err := s.repos.Alerts.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// detectSalience flags patterns whose warnings are being repeatedly
// injected but not followed: for each active pattern, count recent
// occurrences with WasInjected ∧ ¬WasAdheredTo; at or above the threshold,
// upsert a SalienceIssue keyed by a stable hash of the pattern's carrier
// stage, first 100 characters, and full content.
func (s *Scheduler) detectSalience(ctx context.Context, projectID string) error {
	active, err := s.repos.Patterns.ListActive(ctx, projectID)
	if err != nil {
		return err
	}
	for _, p := range active {
		recent, err := s.repos.Occurrences.ListRecentByPattern(ctx, p.ID, s.thresholds.SalienceWindowDays)
		if err != nil {
			return err
		}
		ignored := 0
		for _, o := range recent {
			if o.WasInjected && !o.WasAdheredTo {
				ignored++
			}
		}
		if ignored < s.thresholds.SalienceMinIgnoredCount {
			continue
		}
		key := salienceKey(p)
		existing, err := s.repos.Salience.GetByKey(ctx, key)
		if err != nil {
			existing = nil
		}
		issue := existing
		if issue == nil {
			issue = &domain.SalienceIssue{ID: uuid.NewString(), Key: key, RaisedAt: nowFunc()}
		}
		issue.PatternID = p.ID
		issue.IgnoredCount = ignored
		issue.Resolved = false
		if err := s.repos.Salience.Upsert(ctx, issue); err != nil {
			return err
		}
		if s.notifier != nil {
			s.notifier.SalienceIssueRaised(ctx, issue)
		}
	}
	return nil
}

// RunAutoResume evaluates every kill switch due for re-evaluation and
// resumes it, forcing past the auto-triggered guard, once every health
// metric is within threshold with no margin applied.
func (s *Scheduler) RunAutoResume(ctx context.Context) error {
	due, err := s.repos.KillSwitch.ListDueForEvaluation(ctx)
	if err != nil {
		return err
	}
	for _, status := range due {
		metrics, err := s.health.Compute(ctx, status.ProjectID)
		if err != nil {
			return err
		}
		if !killswitch.WithinThresholds(metrics, s.thresholds) {
			continue
		}
		if err := s.killSwitch.Resume(ctx, status.WorkspaceID, status.ProjectID, true); err != nil {
			return err
		}
	}
	return nil
}

func salienceKey(p *domain.PatternDefinition) string {
	first100 := p.PatternContent
	if len(first100) > 100 {
		first100 = first100[:100]
	}
	sum := sha256.Sum256([]byte(string(p.CarrierStage) + "\x00" + first100 + "\x00" + p.PatternContent))
	return hex.EncodeToString(sum[:])
}

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = time.Now
