package postgres

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type occurrenceRepo Store

func (r *occurrenceRepo) s() *Store { return (*Store)(r) }

const occurrenceColumns = `id, pattern_id, alert_id, issue_id, document_fingerprint, carrier_quote_type,
	was_injected, was_adhered_to, status, inactive_reason, created_at`

func scanOccurrence(row interface{ Scan(dest ...interface{}) error }) (*domain.PatternOccurrence, error) {
	var o domain.PatternOccurrence
	if err := row.Scan(&o.ID, &o.PatternID, &o.AlertID, &o.IssueID, &o.DocumentFingerprint,
		&o.CarrierQuoteType, &o.WasInjected, &o.WasAdheredTo, &o.Status, &o.InactiveReason, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *occurrenceRepo) Create(ctx context.Context, o *domain.PatternOccurrence) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO pattern_occurrences (`+occurrenceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.PatternID, o.AlertID, o.IssueID, o.DocumentFingerprint, o.CarrierQuoteType,
		o.WasInjected, o.WasAdheredTo, o.Status, o.InactiveReason, o.CreatedAt)
	if err != nil {
		return dbErr("create occurrence", err)
	}
	return nil
}

func (r *occurrenceRepo) Get(ctx context.Context, id string) (*domain.PatternOccurrence, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM pattern_occurrences WHERE id = $1`, id)
	o, err := scanOccurrence(row)
	if isNoRows(err) {
		return nil, notFound("occurrence")
	}
	if err != nil {
		return nil, dbErr("get occurrence", err)
	}
	return o, nil
}

func (r *occurrenceRepo) Update(ctx context.Context, o *domain.PatternOccurrence) error {
	res, err := r.s().db.ExecContext(ctx,
		`UPDATE pattern_occurrences SET status=$1, inactive_reason=$2 WHERE id=$3`,
		o.Status, o.InactiveReason, o.ID)
	if err != nil {
		return dbErr("update occurrence", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("occurrence")
	}
	return nil
}

func (r *occurrenceRepo) listWhere(ctx context.Context, clause string, arg interface{}) ([]*domain.PatternOccurrence, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM pattern_occurrences WHERE `+clause+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, dbErr("list occurrences", err)
	}
	defer rows.Close()
	var out []*domain.PatternOccurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, dbErr("scan occurrence", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *occurrenceRepo) ListByAlert(ctx context.Context, alertID string) ([]*domain.PatternOccurrence, error) {
	return r.listWhere(ctx, "alert_id = $1", alertID)
}

func (r *occurrenceRepo) ListByPattern(ctx context.Context, patternID string) ([]*domain.PatternOccurrence, error) {
	return r.listWhere(ctx, "pattern_id = $1", patternID)
}

func (r *occurrenceRepo) ListByDocumentFingerprint(ctx context.Context, fingerprint string) ([]*domain.PatternOccurrence, error) {
	return r.listWhere(ctx, "document_fingerprint = $1", fingerprint)
}

// ListRecentByPattern mirrors pkg/repository/memory: occurrences of a
// pattern created within the last withinDays.
func (r *occurrenceRepo) ListRecentByPattern(ctx context.Context, patternID string, withinDays int) ([]*domain.PatternOccurrence, error) {
	rows, err := r.s().db.QueryContext(ctx, `
		SELECT `+occurrenceColumns+` FROM pattern_occurrences
		WHERE pattern_id = $1 AND created_at > now() - ($2 || ' days')::interval
		ORDER BY created_at`, patternID, withinDays)
	if err != nil {
		return nil, dbErr("list recent occurrences by pattern", err)
	}
	defer rows.Close()
	var out []*domain.PatternOccurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, dbErr("scan occurrence", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
