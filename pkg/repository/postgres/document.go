package postgres

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type documentRepo Store

func (r *documentRepo) s() *Store { return (*Store)(r) }

const documentColumns = `id, issue_id, kind, content, lines, source_kind, source_repo, source_path,
	source_doc_id, source_url, source_external_id, metadata, fingerprint, created_at`

func scanDocument(row interface{ Scan(dest ...interface{}) error }) (*domain.Document, error) {
	var d domain.Document
	var metaJSON []byte
	if err := row.Scan(&d.ID, &d.IssueID, &d.Kind, &d.Content, pq.Array(&d.Lines),
		&d.Source.Kind, &d.Source.Repo, &d.Source.Path, &d.Source.DocID, &d.Source.URL, &d.Source.ExternalID,
		&metaJSON, &d.Fingerprint, &d.CreatedAt); err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &d.Metadata); err != nil {
			return nil, dbErr("decode document metadata", err)
		}
	}
	return &d, nil
}

func (r *documentRepo) Create(ctx context.Context, d *domain.Document) error {
	metaJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return dbErr("encode document metadata", err)
	}
	_, err = r.s().db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.IssueID, d.Kind, d.Content, pq.Array(d.Lines), d.Source.Kind, d.Source.Repo, d.Source.Path,
		d.Source.DocID, d.Source.URL, d.Source.ExternalID, metaJSON, d.Fingerprint, d.CreatedAt)
	if err != nil {
		return dbErr("create document", err)
	}
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if isNoRows(err) {
		return nil, notFound("document")
	}
	if err != nil {
		return nil, dbErr("get document", err)
	}
	return d, nil
}

func (r *documentRepo) ListByIssue(ctx context.Context, issueID int64) ([]*domain.Document, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE issue_id = $1 ORDER BY created_at`, issueID)
	if err != nil {
		return nil, dbErr("list documents by issue", err)
	}
	defer rows.Close()
	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, dbErr("scan document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *documentRepo) ListByIssueAndKind(ctx context.Context, issueID int64, kind domain.DocumentKind) ([]*domain.Document, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE issue_id = $1 AND kind = $2 ORDER BY created_at`,
		issueID, kind)
	if err != nil {
		return nil, dbErr("list documents by issue and kind", err)
	}
	defer rows.Close()
	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, dbErr("scan document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *documentRepo) DeleteByIssue(ctx context.Context, issueID int64) error {
	if _, err := r.s().db.ExecContext(ctx, `DELETE FROM documents WHERE issue_id = $1`, issueID); err != nil {
		return dbErr("delete documents by issue", err)
	}
	return nil
}
