// Package memory implements every repository port from pkg/repository as an
// in-memory, mutex-guarded store. It backs every unit test in this module
// and a single-user offline CLI mode where no Postgres DSN is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// Store implements every repository.* interface against in-memory maps
// guarded by a single mutex. Throughput is not the point: correctness and
// zero external dependencies for tests are.
type Store struct {
	mu sync.RWMutex

	projects  map[string]*domain.Project
	issues    map[int64]*domain.Issue
	issueSeq  map[string]int64
	comments  map[string]*domain.Comment
	labels    map[string]*domain.Label
	documents map[string]*domain.Document
	agents    map[string]*agent.Record
	alerts    map[string]*domain.ProvisionalAlert
	patterns  map[string]*domain.PatternDefinition
	occurrences map[string]*domain.PatternOccurrence
	salience  map[string]*domain.SalienceIssue
	principles map[string]*domain.Principle
	killSwitches map[string]*domain.KillSwitchStatus
	audit     []*domain.AuditEvent
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		projects:     map[string]*domain.Project{},
		issues:       map[int64]*domain.Issue{},
		issueSeq:     map[string]int64{},
		comments:     map[string]*domain.Comment{},
		labels:       map[string]*domain.Label{},
		documents:    map[string]*domain.Document{},
		agents:       map[string]*agent.Record{},
		alerts:       map[string]*domain.ProvisionalAlert{},
		patterns:     map[string]*domain.PatternDefinition{},
		occurrences:  map[string]*domain.PatternOccurrence{},
		salience:     map[string]*domain.SalienceIssue{},
		principles:   map[string]*domain.Principle{},
		killSwitches: map[string]*domain.KillSwitchStatus{},
	}
}

// Repositories returns a repository.Repositories bundle backed by this
// single store.
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
	return falconerrors.New(falconerrors.KindNotFound, "look up "+resource, nil)
}

// --- projects ---

type projectRepo Store

func (r *projectRepo) s() *Store { return (*Store)(r) }

func (r *projectRepo) Get(_ context.Context, id string) (*domain.Project, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project")
	}
	cp := *p
	return &cp, nil
}

func (r *projectRepo) GetByIdentity(_ context.Context, repoOriginURL, subdir string) (*domain.Project, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.RepoOriginURL == repoOriginURL && p.Subdir == subdir {
			cp := *p
			return &cp, nil
		}
	}
	return nil, notFound("project")
}

func (r *projectRepo) Create(_ context.Context, p *domain.Project) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return falconerrors.New(falconerrors.KindConflict, "create project", nil).WithResource(p.ID)
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (r *projectRepo) Update(_ context.Context, p *domain.Project) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return notFound("project")
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (r *projectRepo) List(_ context.Context) ([]*domain.Project, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// --- issues ---

type issueRepo Store

func (r *issueRepo) s() *Store { return (*Store)(r) }

func (r *issueRepo) Get(_ context.Context, id int64) (*domain.Issue, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.issues[id]
	if !ok {
		return nil, notFound("issue")
	}
	cp := *i
	return &cp, nil
}

func (r *issueRepo) GetByUUID(_ context.Context, uuid string) (*domain.Issue, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.issues {
		if i.UUID == uuid {
			cp := *i
			return &cp, nil
		}
	}
	return nil, notFound("issue")
}

func (r *issueRepo) Create(_ context.Context, i *domain.Issue) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[i.ID]; ok {
		return falconerrors.New(falconerrors.KindConflict, "create issue", nil)
	}
	cp := *i
	s.issues[i.ID] = &cp
	return nil
}

func (r *issueRepo) Update(_ context.Context, i *domain.Issue) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[i.ID]; !ok {
		return notFound("issue")
	}
	cp := *i
	s.issues[i.ID] = &cp
	return nil
}

func (r *issueRepo) Delete(_ context.Context, id int64) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[id]; !ok {
		return notFound("issue")
	}
	delete(s.issues, id)
	for cid, c := range s.comments {
		if c.IssueID == id {
			delete(s.comments, cid)
		}
	}
	for did, d := range s.documents {
		if d.IssueID == id {
			delete(s.documents, did)
		}
	}
	return nil
}

func (r *issueRepo) ListByProject(_ context.Context, projectID string) ([]*domain.Issue, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Issue
	for _, i := range s.issues {
		if i.ProjectID == projectID {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *issueRepo) ListByStage(_ context.Context, projectID string, st string) ([]*domain.Issue, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Issue
	for _, i := range s.issues {
		if i.ProjectID == projectID && string(i.Stage) == st {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *issueRepo) NextSequence(_ context.Context, projectID string) (int64, error) {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueSeq[projectID]++
	return s.issueSeq[projectID], nil
}

// --- comments ---

type commentRepo Store

func (r *commentRepo) s() *Store { return (*Store)(r) }

func (r *commentRepo) Create(_ context.Context, c *domain.Comment) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.comments[c.ID] = &cp
	return nil
}

func (r *commentRepo) ListByIssue(_ context.Context, issueID int64) ([]*domain.Comment, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.IssueID == issueID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *commentRepo) DeleteByIssue(_ context.Context, issueID int64) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.comments {
		if c.IssueID == issueID {
			delete(s.comments, id)
		}
	}
	return nil
}

// --- labels ---

type labelRepo Store

func (r *labelRepo) s() *Store { return (*Store)(r) }

func (r *labelRepo) Create(_ context.Context, l *domain.Label) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.labels[l.ID] = &cp
	return nil
}

func (r *labelRepo) ListByProject(_ context.Context, projectID string) ([]*domain.Label, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Label
	for _, l := range s.labels {
		if l.ProjectID == projectID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *labelRepo) CountBuiltIn(_ context.Context, projectID string) (int, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.labels {
		if l.ProjectID == projectID && l.BuiltIn {
			n++
		}
	}
	return n, nil
}

func (r *labelRepo) DeleteIssueBindings(_ context.Context, _ int64) error {
	// Bindings are modeled as part of Issue.LabelIDs in this in-memory
	// store; the issue repository's Delete already drops the issue.
	return nil
}

// --- documents ---

type documentRepo Store

func (r *documentRepo) s() *Store { return (*Store)(r) }

func (r *documentRepo) Create(_ context.Context, d *domain.Document) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

func (r *documentRepo) Get(_ context.Context, id string) (*domain.Document, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, notFound("document")
	}
	cp := *d
	return &cp, nil
}

func (r *documentRepo) ListByIssue(_ context.Context, issueID int64) ([]*domain.Document, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, d := range s.documents {
		if d.IssueID == issueID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *documentRepo) ListByIssueAndKind(_ context.Context, issueID int64, kind domain.DocumentKind) ([]*domain.Document, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, d := range s.documents {
		if d.IssueID == issueID && d.Kind == kind {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *documentRepo) DeleteByIssue(_ context.Context, issueID int64) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.documents {
		if d.IssueID == issueID {
			delete(s.documents, id)
		}
	}
	return nil
}

// --- agents ---

type agentRepo Store

func (r *agentRepo) s() *Store { return (*Store)(r) }

func (r *agentRepo) Get(_ context.Context, id string) (*agent.Record, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("agent")
	}
	cp := *a
	return &cp, nil
}

func (r *agentRepo) GetByName(_ context.Context, projectID, name string) (*agent.Record, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.agents {
		if a.ProjectID == projectID && a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, notFound("agent")
}

func (r *agentRepo) Create(_ context.Context, a *agent.Record) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.agents {
		if existing.ProjectID == a.ProjectID && existing.Name == a.Name {
			return falconerrors.New(falconerrors.KindConflict, "create agent", nil).WithResource(a.Name)
		}
	}
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

func (r *agentRepo) Update(_ context.Context, a *agent.Record) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return notFound("agent")
	}
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

func (r *agentRepo) ListByProject(_ context.Context, projectID string) ([]*agent.Record, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*agent.Record
	for _, a := range s.agents {
		if a.ProjectID == projectID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *agentRepo) ListIdleByModel(_ context.Context, projectID, model string) ([]*agent.Record, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*agent.Record
	for _, a := range s.agents {
		if a.ProjectID == projectID && a.Matches(model) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- alerts ---

type alertRepo Store

func (r *alertRepo) s() *Store { return (*Store)(r) }

func (r *alertRepo) Create(_ context.Context, a *domain.ProvisionalAlert) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (r *alertRepo) Get(_ context.Context, id string) (*domain.ProvisionalAlert, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, notFound("alert")
	}
	cp := *a
	return &cp, nil
}

func (r *alertRepo) Update(_ context.Context, a *domain.ProvisionalAlert) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return notFound("alert")
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (r *alertRepo) ListPending(_ context.Context, projectID string) ([]*domain.ProvisionalAlert, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ProvisionalAlert
	for _, a := range s.alerts {
		if a.Status == domain.AlertPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *alertRepo) ListExpiring(_ context.Context) ([]*domain.ProvisionalAlert, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []*domain.ProvisionalAlert
	for _, a := range s.alerts {
		if a.Status == domain.AlertPending && !a.ExpiresAt.After(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- patterns ---

type patternRepo Store

func (r *patternRepo) s() *Store { return (*Store)(r) }

func (r *patternRepo) Create(_ context.Context, p *domain.PatternDefinition) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (r *patternRepo) Get(_ context.Context, id string) (*domain.PatternDefinition, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, notFound("pattern")
	}
	cp := *p
	return &cp, nil
}

func (r *patternRepo) Update(_ context.Context, p *domain.PatternDefinition) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[p.ID]; !ok {
		return notFound("pattern")
	}
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (r *patternRepo) ListActive(_ context.Context, projectID string) ([]*domain.PatternDefinition, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PatternDefinition
	for _, p := range s.patterns {
		if p.ProjectID == projectID && !p.Archived {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *patternRepo) ListForDecay(_ context.Context, projectID string, olderThanDays int) ([]*domain.PatternDefinition, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	var out []*domain.PatternDefinition
	for _, p := range s.patterns {
		if p.ProjectID == projectID && !p.Archived && !p.Permanent && p.LastDecayedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- occurrences ---

type occurrenceRepo Store

func (r *occurrenceRepo) s() *Store { return (*Store)(r) }

func (r *occurrenceRepo) Create(_ context.Context, o *domain.PatternOccurrence) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.occurrences[o.ID] = &cp
	return nil
}

func (r *occurrenceRepo) Get(_ context.Context, id string) (*domain.PatternOccurrence, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.occurrences[id]
	if !ok {
		return nil, notFound("occurrence")
	}
	cp := *o
	return &cp, nil
}

func (r *occurrenceRepo) Update(_ context.Context, o *domain.PatternOccurrence) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[o.ID]; !ok {
		return notFound("occurrence")
	}
	cp := *o
	s.occurrences[o.ID] = &cp
	return nil
}

func (r *occurrenceRepo) ListByAlert(_ context.Context, alertID string) ([]*domain.PatternOccurrence, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PatternOccurrence
	for _, o := range s.occurrences {
		if o.AlertID == alertID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *occurrenceRepo) ListByPattern(_ context.Context, patternID string) ([]*domain.PatternOccurrence, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PatternOccurrence
	for _, o := range s.occurrences {
		if o.PatternID == patternID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *occurrenceRepo) ListByDocumentFingerprint(_ context.Context, fingerprint string) ([]*domain.PatternOccurrence, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PatternOccurrence
	for _, o := range s.occurrences {
		if o.DocumentFingerprint == fingerprint {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *occurrenceRepo) ListRecentByPattern(_ context.Context, patternID string, withinDays int) ([]*domain.PatternOccurrence, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().AddDate(0, 0, -withinDays)
	var out []*domain.PatternOccurrence
	for _, o := range s.occurrences {
		if o.PatternID == patternID && o.CreatedAt.After(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- salience ---

type salienceRepo Store

func (r *salienceRepo) s() *Store { return (*Store)(r) }

func (r *salienceRepo) Upsert(_ context.Context, sal *domain.SalienceIssue) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sal
	s.salience[sal.Key] = &cp
	return nil
}

func (r *salienceRepo) GetByKey(_ context.Context, key string) (*domain.SalienceIssue, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	sal, ok := s.salience[key]
	if !ok {
		return nil, notFound("salience issue")
	}
	cp := *sal
	return &cp, nil
}

// --- principles ---

type principleRepo Store

func (r *principleRepo) s() *Store { return (*Store)(r) }

func (r *principleRepo) Create(_ context.Context, p *domain.Principle) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.principles[p.ID] = &cp
	return nil
}

func (r *principleRepo) ListByProject(_ context.Context, projectID string) ([]*domain.Principle, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Principle
	for _, p := range s.principles {
		if p.ProjectID == projectID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- kill switch ---

type killSwitchRepo Store

func (r *killSwitchRepo) s() *Store { return (*Store)(r) }

func killSwitchKey(workspaceID, projectID string) string { return workspaceID + "/" + projectID }

func (r *killSwitchRepo) Get(_ context.Context, workspaceID, projectID string) (*domain.KillSwitchStatus, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.killSwitches[killSwitchKey(workspaceID, projectID)]
	if !ok {
		return &domain.KillSwitchStatus{
			WorkspaceID: workspaceID,
			ProjectID:   projectID,
			State:       domain.KillSwitchActive,
			ChangedAt:   time.Now(),
		}, nil
	}
	cp := *st
	return &cp, nil
}

func (r *killSwitchRepo) Upsert(_ context.Context, st *domain.KillSwitchStatus) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.killSwitches[killSwitchKey(st.WorkspaceID, st.ProjectID)] = &cp
	return nil
}

func (r *killSwitchRepo) ListDueForEvaluation(_ context.Context) ([]*domain.KillSwitchStatus, error) {
	s := r.s()
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []*domain.KillSwitchStatus
	for _, st := range s.killSwitches {
		if st.State != domain.KillSwitchActive && st.AutoResumeAt != nil && !st.AutoResumeAt.After(now) {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- audit ---

type auditRepo Store

func (r *auditRepo) s() *Store { return (*Store)(r) }

func (r *auditRepo) Record(_ context.Context, e *domain.AuditEvent) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.audit = append(s.audit, &cp)
	return nil
}

// Events returns every recorded audit event, for tests to assert against.
func (s *Store) Events() []*domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.AuditEvent, len(s.audit))
	copy(out, s.audit)
	return out
}
