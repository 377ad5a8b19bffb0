package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

func TestPatternRepository_ListForDecay(t *testing.T) {
	store, mock := newMockStore(t)
	repo := (*patternRepo)(store)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "project_id", "carrier_stage", "pattern_content", "alternative",
		"finding_category", "failure_mode", "severity_max", "touches", "technologies", "confidence",
		"permanent", "archived", "created_at", "last_decayed_at"}).
		AddRow("pat-1", "proj-1", domain.CarrierStageSpec, "avoid X", "do Y", "security",
			domain.FailureIncomplete, "high", "{database}", "{go}", 0.8, false, false, now, now.AddDate(0, 0, -40))

	mock.ExpectQuery(`SELECT .* FROM pattern_definitions WHERE project_id = \$1 AND NOT archived AND NOT permanent`).
		WithArgs("proj-1", 30).
		WillReturnRows(rows)

	out, err := repo.ListForDecay(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "pat-1", out[0].ID)
	require.Equal(t, []domain.Touch{domain.TouchDatabase}, out[0].Touches)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKillSwitchRepository_Get_DefaultsToActiveWhenMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := (*killSwitchRepo)(store)

	mock.ExpectQuery(`SELECT .* FROM kill_switch_status WHERE workspace_id = \$1 AND project_id = \$2`).
		WithArgs("ws-1", "proj-1").
		WillReturnError(sql.ErrNoRows)

	st, err := repo.Get(context.Background(), "ws-1", "proj-1")
	require.NoError(t, err)
	require.Equal(t, domain.KillSwitchActive, st.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKillSwitchRepository_ListDueForEvaluation(t *testing.T) {
	store, mock := newMockStore(t)
	repo := (*killSwitchRepo)(store)
	now := time.Now()
	due := now.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"workspace_id", "project_id", "state", "reason", "auto_triggered",
		"auto_resume_at", "changed_at"}).
		AddRow("ws-1", "proj-1", domain.KillSwitchInferredPaused, "low precision", true, due, now)

	mock.ExpectQuery(`SELECT .* FROM kill_switch_status`).WithArgs(domain.KillSwitchActive).WillReturnRows(rows)

	out, err := repo.ListDueForEvaluation(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "proj-1", out[0].ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}
