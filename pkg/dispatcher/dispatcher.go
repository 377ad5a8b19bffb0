// Package dispatcher implements the Agent Lifecycle & Dispatcher (C2, C9):
// selecting an idle agent for an issue, driving it through CHECKOUT and
// WORKING, invoking the Workflow Executor, and reconciling the result back
// into the agent and issue records.
package dispatcher

import (
	"context"
	"strconv"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
	"github.com/tbelfort/falcon-ai-sub003/pkg/concurrency"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/gitsync"
	"github.com/tbelfort/falcon-ai-sub003/pkg/invoker"
	"github.com/tbelfort/falcon-ai-sub003/pkg/issueflow"
	"github.com/tbelfort/falcon-ai-sub003/pkg/provisioner"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

// Executor is the subset of *workflow.Executor the Dispatcher depends on.
type Executor interface {
	Run(ctx context.Context, agentID, model string, s stage.Stage, issue *domain.Issue, toolBaseURL string, mode invoker.Mode) (invoker.Result, error)
}

// Dispatcher selects idle agents and drives one dispatch cycle for an issue.
type Dispatcher struct {
	repos       *repository.Repositories
	sync        *gitsync.Sync
	provisioner *provisioner.Provisioner
	executor    Executor
	issueLocks  *concurrency.KeyedMutex
	agentLocks  *concurrency.KeyedMutex
}

// New returns a Dispatcher wired to its collaborators.
func New(repos *repository.Repositories, sync *gitsync.Sync, prov *provisioner.Provisioner, executor Executor) *Dispatcher {
	return &Dispatcher{
		repos:       repos,
		sync:        sync,
		provisioner: prov,
		executor:    executor,
		issueLocks:  concurrency.NewKeyedMutex(),
		agentLocks:  concurrency.NewKeyedMutex(),
	}
}

// SelectAgent returns the first agent in projectID that is IDLE and matches
// model, or nil if none qualify (spec §4.3: selectAgent).
func SelectAgent(ctx context.Context, agents repository.AgentRepository, projectID, model string) (*agent.Record, error) {
	candidates, err := agents.ListIdleByModel(ctx, projectID, model)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// Dispatch runs one full dispatch cycle for issueID at its current stage:
// bind an idle agent, checkout its worktree, invoke the stage subprocess,
// and reconcile success/failure back into both records, advancing the
// issue's stage via issueflow.AdvanceOnSuccess when the stage just run has a
// single unambiguous forward target. Two concurrent dispatches for the same
// issue serialize on issueID (spec §4.3); a given agent likewise serializes
// on its own id so it is never double-booked.
func (d *Dispatcher) Dispatch(ctx context.Context, projectID string, issueID int64, model, toolBaseURL string, mode invoker.Mode) error {
	issueKey := issueKeyFor(issueID)
	d.issueLocks.Lock(issueKey)
	defer d.issueLocks.Unlock(issueKey)

	issue, err := d.repos.Issues.Get(ctx, issueID)
	if err != nil {
		return err
	}

	record, err := SelectAgent(ctx, d.repos.Agents, projectID, model)
	if err != nil {
		return err
	}
	if record == nil {
		return falconerrors.New(falconerrors.KindAgentBusy, "dispatch issue", nil).WithResource(issueKey)
	}

	d.agentLocks.Lock(record.ID)
	defer d.agentLocks.Unlock(record.ID)

	project, err := d.repos.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}

	lifecycle := agent.Restore(record.Status, record.CurrentIssue, record.LastError)
	if err := lifecycle.ToCheckout(issueKey); err != nil {
		return err
	}
	record.Status, record.CurrentIssue = lifecycle.State(), lifecycle.IssueID()
	if err := d.repos.Agents.Update(ctx, record); err != nil {
		return err
	}

	if issue.BranchName == "" {
		issue.BranchName = domain.DeriveBranchName(issue.ID, issue.Title)
	}

	if err := d.checkout(ctx, project, record, issue); err != nil {
		return d.fail(ctx, lifecycle, record, err)
	}

	if err := lifecycle.ToWorking(); err != nil {
		return d.fail(ctx, lifecycle, record, err)
	}
	record.Status = lifecycle.State()
	if err := d.repos.Agents.Update(ctx, record); err != nil {
		return err
	}

	result, err := d.executor.Run(ctx, record.ID, record.Model, issue.Stage, issue, toolBaseURL, mode)
	if err != nil {
		return d.fail(ctx, lifecycle, record, err)
	}
	if !result.Success {
		return d.fail(ctx, lifecycle, record, falconerrors.New(falconerrors.KindInternal, "run agent subprocess", nil).WithResource(result.ErrorText))
	}

	if err := lifecycle.ToDone(); err != nil {
		return d.fail(ctx, lifecycle, record, err)
	}
	if err := lifecycle.Release(); err != nil {
		return d.fail(ctx, lifecycle, record, err)
	}
	record.Status, record.CurrentIssue, record.LastError = lifecycle.State(), lifecycle.IssueID(), ""
	record.UpdatedAt = nowFunc()
	if err := d.repos.Agents.Update(ctx, record); err != nil {
		return err
	}
	if advanced, err := issueflow.AdvanceOnSuccess(ctx, d.repos.Issues, issue); err != nil || advanced {
		return err
	}
	issue.UpdatedAt = nowFunc()
	return d.repos.Issues.Update(ctx, issue)
}

// checkout provisions the agent's worktree, cloning the primary checkout
// first if this is the project's first dispatch, then checking out the
// issue branch inside the agent's own worktree.
func (d *Dispatcher) checkout(ctx context.Context, project *domain.Project, record *agent.Record, issue *domain.Issue) error {
	primaryDir, err := d.provisioner.EnsurePrimary(ctx, project.Slug, project.RepoOriginURL, project.BaseBranch)
	if err != nil {
		return err
	}
	agentDir, err := d.provisioner.ProvisionAgent(ctx, project.Slug, record.Name, primaryDir, issue.BranchName)
	if err != nil {
		return err
	}
	record.WorktreePath = agentDir
	return d.sync.CheckoutIssueBranch(ctx, agentDir, project.BaseBranch, issue.BranchName, project.RepoOriginURL)
}

// fail drives the lifecycle to ERROR, persists it, and returns the original
// cause so the caller sees why the dispatch failed.
func (d *Dispatcher) fail(ctx context.Context, lifecycle *agent.Lifecycle, record *agent.Record, cause error) error {
	_ = lifecycle.ToError(cause)
	record.Status = lifecycle.State()
	record.LastError = lifecycle.LastError()
	_ = d.repos.Agents.Update(ctx, record)
	return cause
}

func issueKeyFor(issueID int64) string {
	return "issue-" + strconv.FormatInt(issueID, 10)
}

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = time.Now
