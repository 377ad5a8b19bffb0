package postgres

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
)

type agentRepo Store

func (r *agentRepo) s() *Store { return (*Store)(r) }

const agentColumns = `id, project_id, name, worktree_path, model, status, current_issue, last_error,
	created_at, updated_at`

func scanAgent(row interface{ Scan(dest ...interface{}) error }) (*agent.Record, error) {
	var a agent.Record
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.WorktreePath, &a.Model, &a.Status,
		&a.CurrentIssue, &a.LastError, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (*agent.Record, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if isNoRows(err) {
		return nil, notFound("agent")
	}
	if err != nil {
		return nil, dbErr("get agent", err)
	}
	return a, nil
}

func (r *agentRepo) GetByName(ctx context.Context, projectID, name string) (*agent.Record, error) {
	row := r.s().db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE project_id = $1 AND name = $2`, projectID, name)
	a, err := scanAgent(row)
	if isNoRows(err) {
		return nil, notFound("agent")
	}
	if err != nil {
		return nil, dbErr("get agent by name", err)
	}
	return a, nil
}

func (r *agentRepo) Create(ctx context.Context, a *agent.Record) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ProjectID, a.Name, a.WorktreePath, a.Model, a.Status, a.CurrentIssue, a.LastError,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return dbErr("create agent", err)
	}
	return nil
}

func (r *agentRepo) Update(ctx context.Context, a *agent.Record) error {
	res, err := r.s().db.ExecContext(ctx, `
		UPDATE agents SET worktree_path=$1, model=$2, status=$3, current_issue=$4, last_error=$5, updated_at=$6
		WHERE id=$7`,
		a.WorktreePath, a.Model, a.Status, a.CurrentIssue, a.LastError, a.UpdatedAt, a.ID)
	if err != nil {
		return dbErr("update agent", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("agent")
	}
	return nil
}

func (r *agentRepo) ListByProject(ctx context.Context, projectID string) ([]*agent.Record, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, dbErr("list agents by project", err)
	}
	defer rows.Close()
	var out []*agent.Record
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, dbErr("scan agent", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListIdleByModel mirrors agent.Record.Matches: status='idle' AND model=$2.
func (r *agentRepo) ListIdleByModel(ctx context.Context, projectID, model string) ([]*agent.Record, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE project_id = $1 AND status = 'idle' AND model = $2 ORDER BY name`,
		projectID, model)
	if err != nil {
		return nil, dbErr("list idle agents by model", err)
	}
	defer rows.Close()
	var out []*agent.Record
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, dbErr("scan agent", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
