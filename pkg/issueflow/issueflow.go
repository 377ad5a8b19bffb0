// Package issueflow wires pkg/stage's transition graph into production use:
// the "start" composite operation and the per-stage advance that move an
// Issue through the pipeline, persisting every mutation through
// repository.IssueRepository.
package issueflow

import (
	"context"
	"fmt"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = time.Now

// Start is the distinguished composite operation spec invariant 1 names:
// the only transition that sets status and stage together. It is permitted
// only when the issue sits at status backlog/todo and stage BACKLOG/TODO,
// moves it to status in_progress and stage CONTEXT_PACK, and derives its
// branch name on first start.
func Start(ctx context.Context, issues repository.IssueRepository, issue *domain.Issue) error {
	if issue.Status != domain.StatusBacklog && issue.Status != domain.StatusTodo {
		return falconerrors.New(falconerrors.KindInvalidTransition,
			fmt.Sprintf("start issue %d at status %s", issue.ID, issue.Status), nil).WithResource("status")
	}
	if issue.Stage != stage.Backlog && issue.Stage != stage.Todo {
		return falconerrors.New(falconerrors.KindInvalidTransition,
			fmt.Sprintf("start issue %d at stage %s", issue.ID, issue.Stage), nil).WithResource("stage")
	}

	if issue.BranchName == "" {
		issue.BranchName = domain.DeriveBranchName(issue.ID, issue.Title)
	}
	issue.Status = domain.StatusInProgress
	issue.Stage = stage.ContextPack
	started := nowFunc()
	issue.StartedAt = &started
	issue.UpdatedAt = started
	return issues.Update(ctx, issue)
}

// Advance validates the move from issue's current stage to next against
// pkg/stage's fixed graph, carries its status to the stage's sole allowed
// value, stamps CompletedAt on arrival at DONE, and persists the result.
// Callers that already hold a resolved decision (a human PR-review verdict,
// a test-suite outcome, a reviewer agent's verdict) call this directly with
// that decision as next.
func Advance(ctx context.Context, issues repository.IssueRepository, issue *domain.Issue, next stage.Stage) error {
	if !stage.CanTransition(issue.Stage, next) {
		return falconerrors.New(falconerrors.KindInvalidTransition,
			fmt.Sprintf("advance issue %d from %s to %s", issue.ID, issue.Stage, next), nil)
	}

	issue.Stage = next
	if statuses := domain.AllowedStatuses(next); len(statuses) == 1 {
		issue.Status = statuses[0]
	}
	now := nowFunc()
	if next == stage.Done {
		issue.CompletedAt = &now
	}
	issue.UpdatedAt = now
	return issues.Update(ctx, issue)
}

// AdvanceOnSuccess advances issue along the single unambiguous forward
// transition from its current stage, for use right after a stage's
// subprocess reports success. It is a no-op (returning ok=false, nil error)
// when the current stage has zero or more than one allowed target — a
// branching stage (CONTEXT_REVIEW, SPEC_REVIEW, PR_HUMAN_REVIEW, TESTING)
// needs an external verdict resolved and applied through Advance directly,
// since subprocess success alone cannot pick among its targets.
func AdvanceOnSuccess(ctx context.Context, issues repository.IssueRepository, issue *domain.Issue) (ok bool, err error) {
	targets := stage.Allowed(issue.Stage)
	if len(targets) != 1 {
		return false, nil
	}
	if err := Advance(ctx, issues, issue, targets[0]); err != nil {
		return false, err
	}
	return true, nil
}
