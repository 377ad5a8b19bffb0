// Package repository defines the abstract persistence ports every Falcon
// service depends on. The core references persistence only through these
// interfaces (spec §1: "the persistence layer is abstract"); pkg/repository
// /memory and /postgres provide concrete adapters.
package repository

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

type ProjectRepository interface {
	Get(ctx context.Context, id string) (*domain.Project, error)
	GetByIdentity(ctx context.Context, repoOriginURL, subdir string) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) error
	Update(ctx context.Context, p *domain.Project) error
	List(ctx context.Context) ([]*domain.Project, error)
}

type IssueRepository interface {
	Get(ctx context.Context, id int64) (*domain.Issue, error)
	GetByUUID(ctx context.Context, uuid string) (*domain.Issue, error)
	Create(ctx context.Context, i *domain.Issue) error
	Update(ctx context.Context, i *domain.Issue) error
	Delete(ctx context.Context, id int64) error
	ListByProject(ctx context.Context, projectID string) ([]*domain.Issue, error)
	ListByStage(ctx context.Context, projectID string, s string) ([]*domain.Issue, error)
	NextSequence(ctx context.Context, projectID string) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *domain.Comment) error
	ListByIssue(ctx context.Context, issueID int64) ([]*domain.Comment, error)
	DeleteByIssue(ctx context.Context, issueID int64) error
}

type LabelRepository interface {
	Create(ctx context.Context, l *domain.Label) error
	ListByProject(ctx context.Context, projectID string) ([]*domain.Label, error)
	CountBuiltIn(ctx context.Context, projectID string) (int, error)
	DeleteIssueBindings(ctx context.Context, issueID int64) error
}

type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	ListByIssue(ctx context.Context, issueID int64) ([]*domain.Document, error)
	ListByIssueAndKind(ctx context.Context, issueID int64, kind domain.DocumentKind) ([]*domain.Document, error)
	DeleteByIssue(ctx context.Context, issueID int64) error
}

type AgentRepository interface {
	Get(ctx context.Context, id string) (*agent.Record, error)
	GetByName(ctx context.Context, projectID, name string) (*agent.Record, error)
	Create(ctx context.Context, r *agent.Record) error
	Update(ctx context.Context, r *agent.Record) error
	ListByProject(ctx context.Context, projectID string) ([]*agent.Record, error)
	ListIdleByModel(ctx context.Context, projectID, model string) ([]*agent.Record, error)
}

type AlertRepository interface {
	Create(ctx context.Context, a *domain.ProvisionalAlert) error
	Get(ctx context.Context, id string) (*domain.ProvisionalAlert, error)
	Update(ctx context.Context, a *domain.ProvisionalAlert) error
	ListPending(ctx context.Context, projectID string) ([]*domain.ProvisionalAlert, error)
	ListExpiring(ctx context.Context) ([]*domain.ProvisionalAlert, error)
}

type PatternRepository interface {
	Create(ctx context.Context, p *domain.PatternDefinition) error
	Get(ctx context.Context, id string) (*domain.PatternDefinition, error)
	Update(ctx context.Context, p *domain.PatternDefinition) error
	ListActive(ctx context.Context, projectID string) ([]*domain.PatternDefinition, error)
	ListForDecay(ctx context.Context, projectID string, olderThan int) ([]*domain.PatternDefinition, error)
}

type OccurrenceRepository interface {
	Create(ctx context.Context, o *domain.PatternOccurrence) error
	Get(ctx context.Context, id string) (*domain.PatternOccurrence, error)
	Update(ctx context.Context, o *domain.PatternOccurrence) error
	ListByAlert(ctx context.Context, alertID string) ([]*domain.PatternOccurrence, error)
	ListByPattern(ctx context.Context, patternID string) ([]*domain.PatternOccurrence, error)
	ListByDocumentFingerprint(ctx context.Context, fingerprint string) ([]*domain.PatternOccurrence, error)
	ListRecentByPattern(ctx context.Context, patternID string, withinDays int) ([]*domain.PatternOccurrence, error)
}

type SalienceRepository interface {
	Upsert(ctx context.Context, s *domain.SalienceIssue) error
	GetByKey(ctx context.Context, key string) (*domain.SalienceIssue, error)
}

type PrincipleRepository interface {
	Create(ctx context.Context, p *domain.Principle) error
	ListByProject(ctx context.Context, projectID string) ([]*domain.Principle, error)
}

type KillSwitchRepository interface {
	Get(ctx context.Context, workspaceID, projectID string) (*domain.KillSwitchStatus, error)
	Upsert(ctx context.Context, s *domain.KillSwitchStatus) error
	ListDueForEvaluation(ctx context.Context) ([]*domain.KillSwitchStatus, error)
}

type AuditRepository interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Repositories bundles every port so services can take one dependency
// instead of a dozen constructor parameters.
type Repositories struct {
	Projects    ProjectRepository
	Issues      IssueRepository
	Comments    CommentRepository
	Labels      LabelRepository
	Documents   DocumentRepository
	Agents      AgentRepository
	Alerts      AlertRepository
	Patterns    PatternRepository
	Occurrences OccurrenceRepository
	Salience    SalienceRepository
	Principles  PrincipleRepository
	KillSwitch  KillSwitchRepository
	Audit       AuditRepository
}
