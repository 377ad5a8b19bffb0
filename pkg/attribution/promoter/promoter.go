// Package promoter implements the Alert Promoter (C15): on every new
// occurrence linked to a Provisional Alert, re-check the pattern-gate
// thresholds and, once met, promote the alert into a durable Pattern.
package promoter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
)

// PatternSeed carries the fields a promoted Pattern needs that a
// ProvisionalAlert does not itself record — they come from the finding that
// originally raised the alert, supplied by the caller at occurrence-creation
// time.
type PatternSeed struct {
	CarrierStage    domain.CarrierStageKind
	FindingCategory string
	FailureMode     domain.FailureMode
	SeverityMax     string
	Technologies    []string
	Alternative     string
}

// Notifier receives a promotion once the pattern is persisted. *notify.Notifier
// satisfies this without pkg/promoter importing pkg/notify.
type Notifier interface {
	AlertPromoted(ctx context.Context, alert *domain.ProvisionalAlert, pattern *domain.PatternDefinition)
}

// Promoter re-evaluates an alert's promotion eligibility every time one of
// its occurrences changes.
type Promoter struct {
	repos      *repository.Repositories
	killSwitch *killswitch.Switch
	notifier   Notifier
}

// New returns a Promoter backed by repos and a kill switch gate.
func New(repos *repository.Repositories, killSwitch *killswitch.Switch) *Promoter {
	return &Promoter{repos: repos, killSwitch: killSwitch}
}

// WithNotifier attaches a Notifier invoked after every successful promotion.
func (p *Promoter) WithNotifier(n Notifier) *Promoter {
	p.notifier = n
	return p
}

// EvaluateOccurrence implements spec.md §4.8.4: called after occ has been
// persisted and linked to an alert. It re-checks the pattern gate across
// every active occurrence of that alert, and promotes when every threshold
// is met and the kill switch does not refuse creation for occ's carrier
// quote type. A no-op when the alert is already promoted, not yet gate-
// eligible, or not linked to an alert at all.
func (p *Promoter) EvaluateOccurrence(ctx context.Context, occ *domain.PatternOccurrence, seed PatternSeed) error {
	if occ.AlertID == "" {
		return nil
	}

	alert, err := p.repos.Alerts.Get(ctx, occ.AlertID)
	if err != nil {
		return err
	}
	if alert.Status == domain.AlertPromoted {
		return nil
	}

	issue, err := p.repos.Issues.Get(ctx, alert.IssueID)
	if err != nil {
		return err
	}

	occurrences, err := p.repos.Occurrences.ListByAlert(ctx, alert.ID)
	if err != nil {
		return err
	}
	active := activeOccurrences(occurrences)

	thresholds := domain.DefaultThresholds()
	if !gateMet(alert, active, thresholds) {
		return nil
	}

	if p.killSwitch != nil {
		status, err := p.repos.KillSwitch.Get(ctx, "", issue.ProjectID)
		if err != nil {
			return err
		}
		if !killswitch.AllowsCreation(status.State, occ.CarrierQuoteType) {
			return nil
		}
	}

	pattern := &domain.PatternDefinition{
		ID:              uuid.NewString(),
		ProjectID:       issue.ProjectID,
		CarrierStage:    seed.CarrierStage,
		PatternContent:  alert.Message,
		Alternative:     seed.Alternative,
		FindingCategory: seed.FindingCategory,
		FailureMode:     seed.FailureMode,
		SeverityMax:     seed.SeverityMax,
		Touches:         alert.Touches,
		Technologies:    seed.Technologies,
		Confidence:      averageConfidence(active),
		CreatedAt:       nowFunc(),
		LastDecayedAt:   nowFunc(),
	}
	if err := p.repos.Patterns.Create(ctx, pattern); err != nil {
		return err
	}

	alert.Status = domain.AlertPromoted
	alert.PromotedPatternID = pattern.ID
	if err := p.repos.Alerts.Update(ctx, alert); err != nil {
		return err
	}

	for _, o := range active {
		o.PatternID = pattern.ID
		if err := p.repos.Occurrences.Update(ctx, o); err != nil {
			return err
		}
	}
	if p.notifier != nil {
		p.notifier.AlertPromoted(ctx, alert, pattern)
	}
	return nil
}

func activeOccurrences(occurrences []*domain.PatternOccurrence) []*domain.PatternOccurrence {
	var out []*domain.PatternOccurrence
	for _, o := range occurrences {
		if o.Status == domain.OccurrenceActive {
			out = append(out, o)
		}
	}
	return out
}

// gateMet implements the pattern-gate thresholds of spec.md §4.8.4.
func gateMet(alert *domain.ProvisionalAlert, active []*domain.PatternOccurrence, t domain.Thresholds) bool {
	if len(active) < t.MinOccurrences {
		return false
	}
	if uniqueIssueCount(active) < t.MinUniqueIssues {
		return false
	}
	if averageConfidence(active) < t.MinConfidence {
		return false
	}
	if nowFunc().Sub(alert.CreatedAt) > time.Duration(t.MaxDaysOld)*24*time.Hour {
		return false
	}
	return true
}

func uniqueIssueCount(occurrences []*domain.PatternOccurrence) int {
	seen := make(map[int64]struct{}, len(occurrences))
	for _, o := range occurrences {
		seen[o.IssueID] = struct{}{}
	}
	return len(seen)
}

// averageConfidence derives each occurrence's confidence from its carrier
// quote type via domain.ConfidenceForQuoteType and averages across all
// occurrences — occurrences carry no confidence of their own (spec Open
// Question #1).
func averageConfidence(occurrences []*domain.PatternOccurrence) float64 {
	if len(occurrences) == 0 {
		return 0
	}
	var sum float64
	for _, o := range occurrences {
		sum += domain.ConfidenceForQuoteType(o.CarrierQuoteType)
	}
	return sum / float64(len(occurrences))
}

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = time.Now
