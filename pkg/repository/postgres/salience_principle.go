package postgres

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type salienceRepo Store

func (r *salienceRepo) s() *Store { return (*Store)(r) }

func (r *salienceRepo) Upsert(ctx context.Context, sal *domain.SalienceIssue) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO salience_issues (id, pattern_id, key, ignored_count, raised_at, resolved)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET
			ignored_count = EXCLUDED.ignored_count,
			resolved = EXCLUDED.resolved`,
		sal.ID, sal.PatternID, sal.Key, sal.IgnoredCount, sal.RaisedAt, sal.Resolved)
	if err != nil {
		return dbErr("upsert salience issue", err)
	}
	return nil
}

func (r *salienceRepo) GetByKey(ctx context.Context, key string) (*domain.SalienceIssue, error) {
	row := r.s().db.QueryRowContext(ctx,
		`SELECT id, pattern_id, key, ignored_count, raised_at, resolved FROM salience_issues WHERE key = $1`, key)
	var sal domain.SalienceIssue
	err := row.Scan(&sal.ID, &sal.PatternID, &sal.Key, &sal.IgnoredCount, &sal.RaisedAt, &sal.Resolved)
	if isNoRows(err) {
		return nil, notFound("salience issue")
	}
	if err != nil {
		return nil, dbErr("get salience issue", err)
	}
	return &sal, nil
}

type principleRepo Store

func (r *principleRepo) s() *Store { return (*Store)(r) }

func (r *principleRepo) Create(ctx context.Context, p *domain.Principle) error {
	_, err := r.s().db.ExecContext(ctx,
		`INSERT INTO principles (id, project_id, content, origin, priority, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.ProjectID, p.Content, p.Origin, p.Priority, p.CreatedAt)
	if err != nil {
		return dbErr("create principle", err)
	}
	return nil
}

func (r *principleRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Principle, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT id, project_id, content, origin, priority, created_at FROM principles WHERE project_id = $1 ORDER BY priority DESC, created_at`,
		projectID)
	if err != nil {
		return nil, dbErr("list principles by project", err)
	}
	defer rows.Close()
	var out []*domain.Principle
	for rows.Next() {
		var p domain.Principle
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Content, &p.Origin, &p.Priority, &p.CreatedAt); err != nil {
			return nil, dbErr("scan principle", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
