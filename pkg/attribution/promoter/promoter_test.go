package promoter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/attribution/promoter"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
)

func seedIssueAndAlert(t *testing.T, store *memory.Store, alertID string) {
	t.Helper()
	repos := store.Repositories()
	require.NoError(t, repos.Projects.Create(context.Background(), &domain.Project{ID: "proj-1", Slug: "proj-1"}))
	require.NoError(t, repos.Issues.Create(context.Background(), &domain.Issue{ID: 1, ProjectID: "proj-1", Title: "x"}))
	require.NoError(t, repos.Alerts.Create(context.Background(), &domain.ProvisionalAlert{
		ID: alertID, IssueID: 1, Message: "always validate the retry budget before committing",
		Touches: []domain.Touch{domain.TouchNetwork}, Status: domain.AlertPending, CreatedAt: time.Now(),
	}))
}

func addOccurrence(t *testing.T, store *memory.Store, id, alertID string, issueID int64, qt domain.QuoteType) *domain.PatternOccurrence {
	t.Helper()
	occ := &domain.PatternOccurrence{
		ID: id, AlertID: alertID, IssueID: issueID, CarrierQuoteType: qt,
		Status: domain.OccurrenceActive, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Repositories().Occurrences.Create(context.Background(), occ))
	return occ
}

func TestEvaluateOccurrence_PromotesWhenGateMet(t *testing.T) {
	store := memory.New()
	seedIssueAndAlert(t, store, "alert-1")
	addOccurrence(t, store, "occ-1", "alert-1", 1, domain.QuoteVerbatim)
	addOccurrence(t, store, "occ-2", "alert-1", 2, domain.QuoteVerbatim)
	latest := addOccurrence(t, store, "occ-3", "alert-1", 3, domain.QuoteVerbatim)

	repos := store.Repositories()
	sw := killswitch.New(repos.KillSwitch)
	pr := promoter.New(&repos, sw)

	err := pr.EvaluateOccurrence(context.Background(), latest, promoter.PatternSeed{
		CarrierStage: domain.CarrierStageContextPack, FailureMode: domain.FailureIncomplete,
	})
	require.NoError(t, err)

	alert, err := repos.Alerts.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPromoted, alert.Status)
	assert.NotEmpty(t, alert.PromotedPatternID)

	pattern, err := repos.Patterns.Get(context.Background(), alert.PromotedPatternID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, pattern.Confidence, 0.0001)
}

func TestEvaluateOccurrence_DoesNotPromoteBelowMinOccurrences(t *testing.T) {
	store := memory.New()
	seedIssueAndAlert(t, store, "alert-1")
	latest := addOccurrence(t, store, "occ-1", "alert-1", 1, domain.QuoteVerbatim)

	repos := store.Repositories()
	pr := promoter.New(&repos, killswitch.New(repos.KillSwitch))

	require.NoError(t, pr.EvaluateOccurrence(context.Background(), latest, promoter.PatternSeed{}))

	alert, err := repos.Alerts.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPending, alert.Status)
}

func TestEvaluateOccurrence_DoesNotPromoteBelowMinConfidence(t *testing.T) {
	store := memory.New()
	seedIssueAndAlert(t, store, "alert-1")
	addOccurrence(t, store, "occ-1", "alert-1", 1, domain.QuoteInferred)
	addOccurrence(t, store, "occ-2", "alert-1", 2, domain.QuoteInferred)
	latest := addOccurrence(t, store, "occ-3", "alert-1", 3, domain.QuoteInferred)

	repos := store.Repositories()
	pr := promoter.New(&repos, killswitch.New(repos.KillSwitch))

	require.NoError(t, pr.EvaluateOccurrence(context.Background(), latest, promoter.PatternSeed{}))

	alert, err := repos.Alerts.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPending, alert.Status, "inferred-only evidence averages 0.5 confidence, below the 0.70 gate")
}

func TestEvaluateOccurrence_KillSwitchFullyPausedRefusesPromotion(t *testing.T) {
	store := memory.New()
	seedIssueAndAlert(t, store, "alert-1")
	addOccurrence(t, store, "occ-1", "alert-1", 1, domain.QuoteVerbatim)
	addOccurrence(t, store, "occ-2", "alert-1", 2, domain.QuoteVerbatim)
	latest := addOccurrence(t, store, "occ-3", "alert-1", 3, domain.QuoteVerbatim)

	repos := store.Repositories()
	sw := killswitch.New(repos.KillSwitch)
	require.NoError(t, sw.Pause(context.Background(), "", "proj-1", "investigating"))
	pr := promoter.New(&repos, sw)

	require.NoError(t, pr.EvaluateOccurrence(context.Background(), latest, promoter.PatternSeed{}))

	alert, err := repos.Alerts.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPending, alert.Status)
}

func TestEvaluateOccurrence_NoOpWhenAlertAlreadyPromoted(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	require.NoError(t, repos.Projects.Create(context.Background(), &domain.Project{ID: "proj-1", Slug: "proj-1"}))
	require.NoError(t, repos.Issues.Create(context.Background(), &domain.Issue{ID: 1, ProjectID: "proj-1", Title: "x"}))
	require.NoError(t, repos.Alerts.Create(context.Background(), &domain.ProvisionalAlert{
		ID: "alert-1", IssueID: 1, Status: domain.AlertPromoted, PromotedPatternID: "pattern-existing", CreatedAt: time.Now(),
	}))
	occ := addOccurrence(t, store, "occ-1", "alert-1", 1, domain.QuoteVerbatim)

	pr := promoter.New(&repos, killswitch.New(repos.KillSwitch))
	require.NoError(t, pr.EvaluateOccurrence(context.Background(), occ, promoter.PatternSeed{}))

	alert, err := repos.Alerts.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, "pattern-existing", alert.PromotedPatternID, "must not overwrite an existing promotion")
}

func TestEvaluateOccurrence_NoOpWhenOccurrenceHasNoAlert(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	occ := &domain.PatternOccurrence{ID: "occ-orphan", Status: domain.OccurrenceActive}

	pr := promoter.New(&repos, killswitch.New(repos.KillSwitch))
	err := pr.EvaluateOccurrence(context.Background(), occ, promoter.PatternSeed{})
	require.NoError(t, err)
}
