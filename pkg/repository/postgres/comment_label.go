package postgres

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type commentRepo Store

func (r *commentRepo) s() *Store { return (*Store)(r) }

func (r *commentRepo) Create(ctx context.Context, c *domain.Comment) error {
	_, err := r.s().db.ExecContext(ctx,
		`INSERT INTO comments (id, issue_id, author, body, created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.IssueID, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		return dbErr("create comment", err)
	}
	return nil
}

func (r *commentRepo) ListByIssue(ctx context.Context, issueID int64) ([]*domain.Comment, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT id, issue_id, author, body, created_at FROM comments WHERE issue_id = $1 ORDER BY created_at`, issueID)
	if err != nil {
		return nil, dbErr("list comments", err)
	}
	defer rows.Close()
	var out []*domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, dbErr("scan comment", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *commentRepo) DeleteByIssue(ctx context.Context, issueID int64) error {
	if _, err := r.s().db.ExecContext(ctx, `DELETE FROM comments WHERE issue_id = $1`, issueID); err != nil {
		return dbErr("delete comments by issue", err)
	}
	return nil
}

type labelRepo Store

func (r *labelRepo) s() *Store { return (*Store)(r) }

func (r *labelRepo) Create(ctx context.Context, l *domain.Label) error {
	_, err := r.s().db.ExecContext(ctx,
		`INSERT INTO labels (id, project_id, name, color, built_in) VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.ProjectID, l.Name, l.Color, l.BuiltIn)
	if err != nil {
		return dbErr("create label", err)
	}
	return nil
}

func (r *labelRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Label, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT id, project_id, name, color, built_in FROM labels WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, dbErr("list labels", err)
	}
	defer rows.Close()
	var out []*domain.Label
	for rows.Next() {
		var l domain.Label
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Name, &l.Color, &l.BuiltIn); err != nil {
			return nil, dbErr("scan label", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *labelRepo) CountBuiltIn(ctx context.Context, projectID string) (int, error) {
	row := r.s().db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM labels WHERE project_id = $1 AND built_in`, projectID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, dbErr("count built-in labels", err)
	}
	return n, nil
}

// DeleteIssueBindings is a no-op: label membership lives in issues.label_ids
// (see issue.go), which the issue row's own delete/update already governs.
// Kept for interface symmetry with pkg/repository/memory.
func (r *labelRepo) DeleteIssueBindings(_ context.Context, _ int64) error {
	return nil
}
