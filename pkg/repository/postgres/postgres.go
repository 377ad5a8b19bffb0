// Package postgres implements every repository port from pkg/repository
// against a real Postgres database via sqlx over the pgx stdlib driver,
// migrated with goose. It backs any deployment where FALCON_REDIS_ADDR (or
// more precisely a configured Postgres DSN) replaces the default
// single-process pkg/repository/memory store.
package postgres

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps a *sqlx.DB and implements every repository.* port over it.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn (a standard Postgres connection string) through the
// pgx stdlib driver and wraps it in a Store. Callers own the returned
// Store's lifetime and should call Close when done.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, falconerrors.DatabaseError("open postgres connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, falconerrors.DatabaseError("ping postgres", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sqlx.DB (used by tests, which hand in a
// sqlmock-backed *sqlx.DB rather than a real connection).
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies every embedded goose migration up to the latest version.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return falconerrors.DatabaseError("set goose dialect", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return falconerrors.DatabaseError("run migrations", err)
	}
	return nil
}

// Repositories returns a repository.Repositories bundle backed by this
// store's connection.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Projects:    (*projectRepo)(s),
		Issues:      (*issueRepo)(s),
		Comments:    (*commentRepo)(s),
		Labels:      (*labelRepo)(s),
		Documents:   (*documentRepo)(s),
		Agents:      (*agentRepo)(s),
		Alerts:      (*alertRepo)(s),
		Patterns:    (*patternRepo)(s),
		Occurrences: (*occurrenceRepo)(s),
		Salience:    (*salienceRepo)(s),
		Principles:  (*principleRepo)(s),
		KillSwitch:  (*killSwitchRepo)(s),
		Audit:       (*auditRepo)(s),
	}
}

func notFound(resource string) error {
	return falconerrors.New(falconerrors.KindNotFound, "get "+resource, sql.ErrNoRows).WithResource(resource)
}

func dbErr(op string, err error) error {
	return falconerrors.DatabaseError(op, err)
}

func isNoRows(err error) bool { return err == sql.ErrNoRows }
