package postgres

import (
	"context"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type killSwitchRepo Store

func (r *killSwitchRepo) s() *Store { return (*Store)(r) }

// Get returns the active zero-value status used by pkg/repository/memory
// when no row exists yet: a project starts ungated until something pauses it.
func (r *killSwitchRepo) Get(ctx context.Context, workspaceID, projectID string) (*domain.KillSwitchStatus, error) {
	row := r.s().db.QueryRowContext(ctx, `
		SELECT workspace_id, project_id, state, reason, auto_triggered, auto_resume_at, changed_at
		FROM kill_switch_status WHERE workspace_id = $1 AND project_id = $2`, workspaceID, projectID)
	var st domain.KillSwitchStatus
	err := row.Scan(&st.WorkspaceID, &st.ProjectID, &st.State, &st.Reason, &st.AutoTriggered, &st.AutoResumeAt, &st.ChangedAt)
	if isNoRows(err) {
		return &domain.KillSwitchStatus{
			WorkspaceID: workspaceID,
			ProjectID:   projectID,
			State:       domain.KillSwitchActive,
			ChangedAt:   time.Now(),
		}, nil
	}
	if err != nil {
		return nil, dbErr("get kill switch status", err)
	}
	return &st, nil
}

func (r *killSwitchRepo) Upsert(ctx context.Context, st *domain.KillSwitchStatus) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO kill_switch_status (workspace_id, project_id, state, reason, auto_triggered, auto_resume_at, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (workspace_id, project_id) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			auto_triggered = EXCLUDED.auto_triggered,
			auto_resume_at = EXCLUDED.auto_resume_at,
			changed_at = EXCLUDED.changed_at`,
		st.WorkspaceID, st.ProjectID, st.State, st.Reason, st.AutoTriggered, st.AutoResumeAt, st.ChangedAt)
	if err != nil {
		return dbErr("upsert kill switch status", err)
	}
	return nil
}

func (r *killSwitchRepo) ListDueForEvaluation(ctx context.Context) ([]*domain.KillSwitchStatus, error) {
	rows, err := r.s().db.QueryContext(ctx, `
		SELECT workspace_id, project_id, state, reason, auto_triggered, auto_resume_at, changed_at
		FROM kill_switch_status
		WHERE state != $1 AND auto_resume_at IS NOT NULL AND auto_resume_at <= now()
		ORDER BY auto_resume_at`, domain.KillSwitchActive)
	if err != nil {
		return nil, dbErr("list kill switches due for evaluation", err)
	}
	defer rows.Close()
	var out []*domain.KillSwitchStatus
	for rows.Next() {
		var st domain.KillSwitchStatus
		if err := rows.Scan(&st.WorkspaceID, &st.ProjectID, &st.State, &st.Reason, &st.AutoTriggered,
			&st.AutoResumeAt, &st.ChangedAt); err != nil {
			return nil, dbErr("scan kill switch status", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

type auditRepo Store

func (r *auditRepo) s() *Store { return (*Store)(r) }

func (r *auditRepo) Record(ctx context.Context, e *domain.AuditEvent) error {
	_, err := r.s().db.ExecContext(ctx,
		`INSERT INTO audit_events (id, project_id, issue_id, kind, detail, at) VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.ProjectID, e.IssueID, e.Kind, e.Detail, e.At)
	if err != nil {
		return dbErr("record audit event", err)
	}
	return nil
}
