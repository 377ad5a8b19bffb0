package maintenance_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/maintenance"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
)

func salienceKeyForTest(p *domain.PatternDefinition) string {
	first100 := p.PatternContent
	if len(first100) > 100 {
		first100 = first100[:100]
	}
	sum := sha256.Sum256([]byte(string(p.CarrierStage) + "\x00" + first100 + "\x00" + p.PatternContent))
	return hex.EncodeToString(sum[:])
}

type fakeHealth struct {
	metrics domain.HealthMetrics
	err     error
}

func (f fakeHealth) Compute(_ context.Context, projectID string) (domain.HealthMetrics, error) {
	if f.err != nil {
		return domain.HealthMetrics{}, f.err
	}
	m := f.metrics
	m.ProjectID = projectID
	return m, nil
}

func newStore() (*memory.Store, repository.Repositories) {
	s := memory.New()
	return s, s.Repositories()
}

func TestDecayPatterns_ReducesConfidenceAndArchivesBelowThreshold(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	p := &domain.PatternDefinition{
		ID:            "pattern-1",
		ProjectID:     "proj-1",
		Confidence:    0.32,
		LastDecayedAt: old,
		CreatedAt:     old,
	}
	require.NoError(t, repos.Patterns.Create(ctx, p))

	sched := maintenance.New(&repos, killswitch.New(repos.KillSwitch), fakeHealth{})
	require.NoError(t, sched.RunDailyForProject(ctx, "proj-1"))

	got, err := repos.Patterns.Get(ctx, "pattern-1")
	require.NoError(t, err)
	require.InDelta(t, 0.27, got.Confidence, 1e-9)
	require.True(t, got.Archived)
}

func TestDecayPatterns_PermanentPatternNeverListedForDecay(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	p := &domain.PatternDefinition{
		ID:            "pattern-perm",
		ProjectID:     "proj-1",
		Confidence:    0.1,
		Permanent:     true,
		LastDecayedAt: old,
		CreatedAt:     old,
	}
	require.NoError(t, repos.Patterns.Create(ctx, p))

	sched := maintenance.New(&repos, killswitch.New(repos.KillSwitch), fakeHealth{})
	require.NoError(t, sched.RunDailyForProject(ctx, "proj-1"))

	got, err := repos.Patterns.Get(ctx, "pattern-perm")
	require.NoError(t, err)
	require.Equal(t, 0.1, got.Confidence)
	require.False(t, got.Archived)
}

func TestExpireAlerts_PastExpiryBecomesExpired(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	a := &domain.ProvisionalAlert{
		ID:        "alert-1",
		Status:    domain.AlertPending,
		ExpiresAt: time.Now().Add(-1 * time.Hour),
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, repos.Alerts.Create(ctx, a))

	sched := maintenance.New(&repos, killswitch.New(repos.KillSwitch), fakeHealth{})
	require.NoError(t, sched.RunDailyForProject(ctx, "proj-1"))

	got, err := repos.Alerts.Get(ctx, "alert-1")
	require.NoError(t, err)
	require.Equal(t, domain.AlertExpired, got.Status)
}

func TestDetectSalience_UpsertsIssueWhenIgnoredCountAtThreshold(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	p := &domain.PatternDefinition{
		ID:             "pattern-1",
		ProjectID:      "proj-1",
		CarrierStage:   domain.CarrierStageSpec,
		PatternContent: "never skip input validation on user-controlled fields",
		Confidence:     0.8,
		LastDecayedAt:  time.Now(),
	}
	require.NoError(t, repos.Patterns.Create(ctx, p))

	for i := 0; i < 3; i++ {
		o := &domain.PatternOccurrence{
			ID:           "occ-" + string(rune('a'+i)),
			PatternID:    "pattern-1",
			WasInjected:  true,
			WasAdheredTo: false,
			Status:       domain.OccurrenceActive,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, repos.Occurrences.Create(ctx, o))
	}

	sched := maintenance.New(&repos, killswitch.New(repos.KillSwitch), fakeHealth{})
	require.NoError(t, sched.RunDailyForProject(ctx, "proj-1"))

	issue, err := repos.Salience.GetByKey(ctx, salienceKeyForTest(p))
	require.NoError(t, err)
	require.Equal(t, "pattern-1", issue.PatternID)
	require.Equal(t, 3, issue.IgnoredCount)
}

func TestDetectSalience_NoIssueBelowThreshold(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	p := &domain.PatternDefinition{
		ID:            "pattern-1",
		ProjectID:     "proj-1",
		Confidence:    0.8,
		LastDecayedAt: time.Now(),
	}
	require.NoError(t, repos.Patterns.Create(ctx, p))

	o := &domain.PatternOccurrence{
		ID:           "occ-a",
		PatternID:    "pattern-1",
		WasInjected:  true,
		WasAdheredTo: false,
		Status:       domain.OccurrenceActive,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repos.Occurrences.Create(ctx, o))

	sched := maintenance.New(&repos, killswitch.New(repos.KillSwitch), fakeHealth{})
	require.NoError(t, sched.RunDailyForProject(ctx, "proj-1"))

	_, err := repos.Salience.GetByKey(ctx, "anything")
	require.Error(t, err)
}

func TestRunAutoResume_ResumesWhenWithinThresholds(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	sw := killswitch.New(repos.KillSwitch)
	require.NoError(t, sw.Pause(ctx, "ws-1", "proj-1", "manual pause"))

	status, err := repos.KillSwitch.Get(ctx, "ws-1", "proj-1")
	require.NoError(t, err)
	status.AutoTriggered = true
	past := time.Now().Add(-1 * time.Hour)
	status.AutoResumeAt = &past
	require.NoError(t, repos.KillSwitch.Upsert(ctx, status))

	health := fakeHealth{metrics: domain.HealthMetrics{
		AttributionPrecisionScore: 0.95,
		InferredRatio:             0.1,
		ObservedImprovementRate:   0.5,
	}}

	sched := maintenance.New(&repos, sw, health)
	require.NoError(t, sched.RunAutoResume(ctx))

	got, err := repos.KillSwitch.Get(ctx, "ws-1", "proj-1")
	require.NoError(t, err)
	require.Equal(t, domain.KillSwitchActive, got.State)
}

func TestRunAutoResume_StaysPausedWhenMetricsStillBreached(t *testing.T) {
	_, repos := newStore()
	ctx := context.Background()

	sw := killswitch.New(repos.KillSwitch)
	require.NoError(t, sw.Pause(ctx, "ws-1", "proj-1", "manual pause"))
	status, err := repos.KillSwitch.Get(ctx, "ws-1", "proj-1")
	require.NoError(t, err)
	status.AutoTriggered = true
	past := time.Now().Add(-1 * time.Hour)
	status.AutoResumeAt = &past
	require.NoError(t, repos.KillSwitch.Upsert(ctx, status))

	health := fakeHealth{metrics: domain.HealthMetrics{
		AttributionPrecisionScore: 0.1,
		InferredRatio:             0.9,
		ObservedImprovementRate:   0.0,
	}}

	sched := maintenance.New(&repos, sw, health)
	require.NoError(t, sched.RunAutoResume(ctx))

	got, err := repos.KillSwitch.Get(ctx, "ws-1", "proj-1")
	require.NoError(t, err)
	require.Equal(t, domain.KillSwitchFullyPaused, got.State)
}
