package dispatcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
	"github.com/tbelfort/falcon-ai-sub003/pkg/dispatcher"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/gitsync"
	"github.com/tbelfort/falcon-ai-sub003/pkg/invoker"
	"github.com/tbelfort/falcon-ai-sub003/pkg/provisioner"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
	"github.com/tbelfort/falcon-ai-sub003/pkg/worktree"
)

type fakeExecutor struct {
	result invoker.Result
	err    error
}

func (f *fakeExecutor) Run(context.Context, string, string, stage.Stage, *domain.Issue, string, invoker.Mode) (invoker.Result, error) {
	return f.result, f.err
}

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, _ string, _ ...string) (string, error) { return "", nil }

func setup(t *testing.T, exec *fakeExecutor) (*dispatcher.Dispatcher, *memory.Store) {
	t.Helper()
	store := memory.New()
	repos := store.Repositories()

	require.NoError(t, repos.Projects.Create(context.Background(), &domain.Project{
		ID: "proj-1", Slug: "proj-1", RepoOriginURL: "https://example.com/repo.git", BaseBranch: "main",
	}))
	require.NoError(t, repos.Issues.Create(context.Background(), &domain.Issue{
		ID: 1, ProjectID: "proj-1", Title: "Add login", Stage: stage.Implement,
	}))
	require.NoError(t, repos.Agents.Create(context.Background(), &agent.Record{
		ID: "agent-1", ProjectID: "proj-1", Name: "agent-1", Model: "claude", Status: agent.Idle,
	}))

	sync := gitsync.New(fakeRunner{})
	layout, err := worktree.New(t.TempDir())
	require.NoError(t, err)
	prov := provisioner.New(layout, fakeRunner{}, sync)

	return dispatcher.New(&repos, sync, prov, exec), store
}

func TestDispatch_SuccessReleasesAgentToIdle(t *testing.T) {
	d, store := setup(t, &fakeExecutor{result: invoker.Result{RunID: "run-1", Success: true}})

	err := d.Dispatch(context.Background(), "proj-1", 1, "claude", "", invoker.ModeSilent)
	require.NoError(t, err)

	repos := store.Repositories()
	record, err := repos.Agents.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.Idle, record.Status)
	assert.Empty(t, record.CurrentIssue)

	issue, err := repos.Issues.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, stage.PRReview, issue.Stage, "IMPLEMENT has a single forward target and advances on success")
	assert.Equal(t, domain.StatusInProgress, issue.Status)
}

func TestDispatch_BranchingStageDoesNotAutoAdvance(t *testing.T) {
	d, store := setup(t, &fakeExecutor{result: invoker.Result{RunID: "run-1", Success: true}})
	repos := store.Repositories()
	issue, err := repos.Issues.Get(context.Background(), 1)
	require.NoError(t, err)
	issue.Stage = stage.ContextReview
	require.NoError(t, repos.Issues.Update(context.Background(), issue))

	require.NoError(t, d.Dispatch(context.Background(), "proj-1", 1, "claude", "", invoker.ModeSilent))

	issue, err = repos.Issues.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, stage.ContextReview, issue.Stage, "CONTEXT_REVIEW has two targets; only an explicit verdict picks one")
}

func TestDispatch_NoIdleAgentReturnsAgentBusy(t *testing.T) {
	d, store := setup(t, &fakeExecutor{result: invoker.Result{Success: true}})
	repos := store.Repositories()
	record, err := repos.Agents.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	record.Status = agent.Working
	require.NoError(t, repos.Agents.Update(context.Background(), record))

	err = d.Dispatch(context.Background(), "proj-1", 1, "claude", "", invoker.ModeSilent)
	require.Error(t, err)
}

func TestDispatch_SubprocessFailureMovesAgentToError(t *testing.T) {
	d, store := setup(t, &fakeExecutor{result: invoker.Result{RunID: "run-1", Success: false, ErrorText: "boom"}})

	err := d.Dispatch(context.Background(), "proj-1", 1, "claude", "", invoker.ModeSilent)
	require.Error(t, err)

	repos := store.Repositories()
	record, getErr := repos.Agents.Get(context.Background(), "agent-1")
	require.NoError(t, getErr)
	assert.Equal(t, agent.Error, record.Status)
}
