package postgres

import (
	"context"
	"encoding/json"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type projectRepo Store

func (r *projectRepo) s() *Store { return (*Store)(r) }

func scanProject(row interface{ Scan(dest ...interface{}) error }) (*domain.Project, error) {
	var p domain.Project
	var configJSON []byte
	if err := row.Scan(&p.ID, &p.RepoOriginURL, &p.Subdir, &p.Slug, &p.Name, &p.Lifecycle,
		&p.BaseBranch, &configJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &p.Config); err != nil {
			return nil, dbErr("decode project config", err)
		}
	}
	return &p, nil
}

const projectColumns = `id, repo_origin_url, subdir, slug, name, lifecycle, base_branch, config, created_at, updated_at`

func (r *projectRepo) Get(ctx context.Context, id string) (*domain.Project, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if isNoRows(err) {
		return nil, notFound("project")
	}
	if err != nil {
		return nil, dbErr("get project", err)
	}
	return p, nil
}

func (r *projectRepo) GetByIdentity(ctx context.Context, repoOriginURL, subdir string) (*domain.Project, error) {
	row := r.s().db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE repo_origin_url = $1 AND subdir = $2`,
		repoOriginURL, subdir)
	p, err := scanProject(row)
	if isNoRows(err) {
		return nil, notFound("project")
	}
	if err != nil {
		return nil, dbErr("get project by identity", err)
	}
	return p, nil
}

func (r *projectRepo) Create(ctx context.Context, p *domain.Project) error {
	configJSON, err := json.Marshal(p.Config)
	if err != nil {
		return dbErr("encode project config", err)
	}
	_, err = r.s().db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.RepoOriginURL, p.Subdir, p.Slug, p.Name, p.Lifecycle, p.BaseBranch, configJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return dbErr("create project", err)
	}
	return nil
}

func (r *projectRepo) Update(ctx context.Context, p *domain.Project) error {
	configJSON, err := json.Marshal(p.Config)
	if err != nil {
		return dbErr("encode project config", err)
	}
	res, err := r.s().db.ExecContext(ctx,
		`UPDATE projects SET name=$1, lifecycle=$2, base_branch=$3, config=$4, updated_at=$5 WHERE id=$6`,
		p.Name, p.Lifecycle, p.BaseBranch, configJSON, p.UpdatedAt, p.ID)
	if err != nil {
		return dbErr("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("project")
	}
	return nil
}

func (r *projectRepo) List(ctx context.Context) ([]*domain.Project, error) {
	rows, err := r.s().db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, dbErr("list projects", err)
	}
	defer rows.Close()
	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, dbErr("scan project", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
