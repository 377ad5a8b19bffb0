package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type alertRepo Store

func (r *alertRepo) s() *Store { return (*Store)(r) }

const alertColumns = `id, message, finding_id, issue_id, touches, touched_file_patterns, expires_at,
	status, promoted_pattern_id, created_at`

func scanAlert(row interface{ Scan(dest ...interface{}) error }) (*domain.ProvisionalAlert, error) {
	var a domain.ProvisionalAlert
	var touches []string
	if err := row.Scan(&a.ID, &a.Message, &a.FindingID, &a.IssueID, pq.Array(&touches),
		pq.Array(&a.TouchedFilePatterns), &a.ExpiresAt, &a.Status, &a.PromotedPatternID, &a.CreatedAt); err != nil {
		return nil, err
	}
	for _, t := range touches {
		a.Touches = append(a.Touches, domain.Touch(t))
	}
	return &a, nil
}

func (r *alertRepo) Create(ctx context.Context, a *domain.ProvisionalAlert) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO provisional_alerts (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Message, a.FindingID, a.IssueID, pq.Array(touchStrings(a.Touches)), pq.Array(a.TouchedFilePatterns),
		a.ExpiresAt, a.Status, a.PromotedPatternID, a.CreatedAt)
	if err != nil {
		return dbErr("create alert", err)
	}
	return nil
}

func (r *alertRepo) Get(ctx context.Context, id string) (*domain.ProvisionalAlert, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM provisional_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if isNoRows(err) {
		return nil, notFound("alert")
	}
	if err != nil {
		return nil, dbErr("get alert", err)
	}
	return a, nil
}

func (r *alertRepo) Update(ctx context.Context, a *domain.ProvisionalAlert) error {
	res, err := r.s().db.ExecContext(ctx, `
		UPDATE provisional_alerts SET message=$1, status=$2, promoted_pattern_id=$3 WHERE id=$4`,
		a.Message, a.Status, a.PromotedPatternID, a.ID)
	if err != nil {
		return dbErr("update alert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("alert")
	}
	return nil
}

// ListPending ignores projectID: ProvisionalAlert carries no project
// reference, matching pkg/repository/memory's identical scope.
func (r *alertRepo) ListPending(ctx context.Context, _ string) ([]*domain.ProvisionalAlert, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM provisional_alerts WHERE status = $1 ORDER BY created_at`, domain.AlertPending)
	if err != nil {
		return nil, dbErr("list pending alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *alertRepo) ListExpiring(ctx context.Context) ([]*domain.ProvisionalAlert, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM provisional_alerts WHERE status = $1 AND expires_at <= now() ORDER BY expires_at`,
		domain.AlertPending)
	if err != nil {
		return nil, dbErr("list expiring alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*domain.ProvisionalAlert, error) {
	var out []*domain.ProvisionalAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, dbErr("scan alert", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func touchStrings(touches []domain.Touch) []string {
	out := make([]string, len(touches))
	for i, t := range touches {
		out[i] = string(t)
	}
	return out
}

type patternRepo Store

func (r *patternRepo) s() *Store { return (*Store)(r) }

const patternColumns = `id, project_id, carrier_stage, pattern_content, alternative, finding_category,
	failure_mode, severity_max, touches, technologies, confidence, permanent, archived, created_at, last_decayed_at`

func scanPattern(row interface{ Scan(dest ...interface{}) error }) (*domain.PatternDefinition, error) {
	var p domain.PatternDefinition
	var touches []string
	if err := row.Scan(&p.ID, &p.ProjectID, &p.CarrierStage, &p.PatternContent, &p.Alternative,
		&p.FindingCategory, &p.FailureMode, &p.SeverityMax, pq.Array(&touches), pq.Array(&p.Technologies),
		&p.Confidence, &p.Permanent, &p.Archived, &p.CreatedAt, &p.LastDecayedAt); err != nil {
		return nil, err
	}
	for _, t := range touches {
		p.Touches = append(p.Touches, domain.Touch(t))
	}
	return &p, nil
}

func (r *patternRepo) Create(ctx context.Context, p *domain.PatternDefinition) error {
	_, err := r.s().db.ExecContext(ctx, `
		INSERT INTO pattern_definitions (`+patternColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.ProjectID, p.CarrierStage, p.PatternContent, p.Alternative, p.FindingCategory, p.FailureMode,
		p.SeverityMax, pq.Array(touchStrings(p.Touches)), pq.Array(p.Technologies), p.Confidence, p.Permanent,
		p.Archived, p.CreatedAt, p.LastDecayedAt)
	if err != nil {
		return dbErr("create pattern", err)
	}
	return nil
}

func (r *patternRepo) Get(ctx context.Context, id string) (*domain.PatternDefinition, error) {
	row := r.s().db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM pattern_definitions WHERE id = $1`, id)
	p, err := scanPattern(row)
	if isNoRows(err) {
		return nil, notFound("pattern")
	}
	if err != nil {
		return nil, dbErr("get pattern", err)
	}
	return p, nil
}

func (r *patternRepo) Update(ctx context.Context, p *domain.PatternDefinition) error {
	res, err := r.s().db.ExecContext(ctx, `
		UPDATE pattern_definitions SET confidence=$1, permanent=$2, archived=$3, last_decayed_at=$4 WHERE id=$5`,
		p.Confidence, p.Permanent, p.Archived, p.LastDecayedAt, p.ID)
	if err != nil {
		return dbErr("update pattern", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("pattern")
	}
	return nil
}

func (r *patternRepo) ListActive(ctx context.Context, projectID string) ([]*domain.PatternDefinition, error) {
	rows, err := r.s().db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM pattern_definitions WHERE project_id = $1 AND NOT archived ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, dbErr("list active patterns", err)
	}
	defer rows.Close()
	var out []*domain.PatternDefinition
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, dbErr("scan pattern", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListForDecay mirrors pkg/repository/memory's cutoff: active, non-permanent
// patterns whose last_decayed_at predates now()-olderThanDays.
func (r *patternRepo) ListForDecay(ctx context.Context, projectID string, olderThanDays int) ([]*domain.PatternDefinition, error) {
	rows, err := r.s().db.QueryContext(ctx, `
		SELECT `+patternColumns+` FROM pattern_definitions
		WHERE project_id = $1 AND NOT archived AND NOT permanent
			AND last_decayed_at < now() - ($2 || ' days')::interval
		ORDER BY last_decayed_at`, projectID, olderThanDays)
	if err != nil {
		return nil, dbErr("list patterns for decay", err)
	}
	defer rows.Close()
	var out []*domain.PatternDefinition
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, dbErr("scan pattern", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
