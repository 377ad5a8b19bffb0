package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type issueRepo Store

func (r *issueRepo) s() *Store { return (*Store)(r) }

const issueColumns = `id, uuid, project_id, title, description, status, stage, priority, label_ids,
	branch_name, pr_number, pr_url, assigned_agent, created_at, updated_at, started_at, completed_at`

func scanIssue(row interface{ Scan(dest ...interface{}) error }) (*domain.Issue, error) {
	var i domain.Issue
	if err := row.Scan(&i.ID, &i.UUID, &i.ProjectID, &i.Title, &i.Description, &i.Status, &i.Stage,
		&i.Priority, pq.Array(&i.LabelIDs), &i.BranchName, &i.PRNumber, &i.PRURL, &i.AssignedAgent,
		&i.CreatedAt, &i.UpdatedAt, &i.StartedAt, &i.CompletedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *issueRepo) Get(ctx context.Context, id int64) (*domain.Issue, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	i, err := scanIssue(row)
	if isNoRows(err) {
		return nil, notFound("issue")
	}
	if err != nil {
		return nil, dbErr("get issue", err)
	}
	return i, nil
}

func (r *issueRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Issue, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE uuid = $1`, uuid)
	i, err := scanIssue(row)
	if isNoRows(err) {
		return nil, notFound("issue")
	}
	if err != nil {
		return nil, dbErr("get issue by uuid", err)
	}
	return i, nil
}

func (r *issueRepo) Create(ctx context.Context, i *domain.Issue) error {
	row := r.s().db.QueryRowContext(ctx, `
		INSERT INTO issues (uuid, project_id, title, description, status, stage, priority, label_ids,
			branch_name, pr_number, pr_url, assigned_agent, created_at, updated_at, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		i.UUID, i.ProjectID, i.Title, i.Description, i.Status, i.Stage, i.Priority, pq.Array(i.LabelIDs),
		i.BranchName, i.PRNumber, i.PRURL, i.AssignedAgent, i.CreatedAt, i.UpdatedAt, i.StartedAt, i.CompletedAt)
	if err := row.Scan(&i.ID); err != nil {
		return dbErr("create issue", err)
	}
	return nil
}

func (r *issueRepo) Update(ctx context.Context, i *domain.Issue) error {
	res, err := r.s().db.ExecContext(ctx, `
		UPDATE issues SET title=$1, description=$2, status=$3, stage=$4, priority=$5, label_ids=$6,
			branch_name=$7, pr_number=$8, pr_url=$9, assigned_agent=$10, updated_at=$11,
			started_at=$12, completed_at=$13
		WHERE id=$14`,
		i.Title, i.Description, i.Status, i.Stage, i.Priority, pq.Array(i.LabelIDs),
		i.BranchName, i.PRNumber, i.PRURL, i.AssignedAgent, i.UpdatedAt, i.StartedAt, i.CompletedAt, i.ID)
	if err != nil {
		return dbErr("update issue", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("issue")
	}
	return nil
}

func (r *issueRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.s().db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return dbErr("delete issue", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("issue")
	}
	return nil
}

func (r *issueRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Issue, error) {
	rows, err := r.s().db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, dbErr("list issues by project", err)
	}
	defer rows.Close()
	var out []*domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, dbErr("scan issue", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *issueRepo) ListByStage(ctx context.Context, projectID string, stage string) ([]*domain.Issue, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project_id = $1 AND stage = $2 ORDER BY id`, projectID, stage)
	if err != nil {
		return nil, dbErr("list issues by stage", err)
	}
	defer rows.Close()
	var out []*domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, dbErr("scan issue", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// NextSequence atomically increments and returns the per-project issue
// sequence, upserting its row the first time a project creates an issue.
func (r *issueRepo) NextSequence(ctx context.Context, projectID string) (int64, error) {
	row := r.s().db.QueryRowContext(ctx, `
		INSERT INTO issue_sequences (project_id, next_value) VALUES ($1, 1)
		ON CONFLICT (project_id) DO UPDATE SET next_value = issue_sequences.next_value + 1
		RETURNING next_value`, projectID)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, dbErr("advance issue sequence", err)
	}
	return n, nil
}
