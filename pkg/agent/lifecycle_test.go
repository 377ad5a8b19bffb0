package agent_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/agent"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

func TestLifecycle_HappyPath(t *testing.T) {
	l := agent.NewLifecycle()
	assert.Equal(t, agent.Init, l.State())

	require.NoError(t, l.ToIdle())
	assert.Equal(t, agent.Idle, l.State())

	require.NoError(t, l.ToCheckout("issue-1"))
	assert.Equal(t, agent.Checkout, l.State())
	assert.Equal(t, "issue-1", l.IssueID())

	require.NoError(t, l.ToWorking())
	assert.Equal(t, agent.Working, l.State())
	assert.Equal(t, "issue-1", l.IssueID())

	require.NoError(t, l.ToDone())
	assert.Equal(t, agent.Done, l.State())
	assert.Equal(t, "issue-1", l.IssueID(), "issueId persists through DONE until explicit release")

	require.NoError(t, l.Release())
	assert.Equal(t, agent.Idle, l.State())
	assert.Empty(t, l.IssueID())
}

func TestLifecycle_IssueIDOnlyDuringCheckoutOrWorking(t *testing.T) {
	l := agent.NewLifecycle()
	require.NoError(t, l.ToIdle())
	assert.Empty(t, l.IssueID())

	require.NoError(t, l.ToCheckout("issue-7"))
	assert.NotEmpty(t, l.IssueID())

	require.NoError(t, l.ToWorking())
	assert.NotEmpty(t, l.IssueID())
}

func TestLifecycle_CheckoutRequiresIssueID(t *testing.T) {
	l := agent.NewLifecycle()
	require.NoError(t, l.ToIdle())
	err := l.ToCheckout("")
	assert.Error(t, err)
}

func TestLifecycle_CheckoutForbiddenWhileWorking(t *testing.T) {
	l := agent.NewLifecycle()
	require.NoError(t, l.ToIdle())
	require.NoError(t, l.ToCheckout("issue-1"))
	require.NoError(t, l.ToWorking())

	err := l.ToCheckout("issue-2")
	assert.Error(t, err)
	assert.True(t, falconerrors.Is(err, falconerrors.KindAgentBusy))
}

func TestLifecycle_IllegalTransitionFails(t *testing.T) {
	l := agent.NewLifecycle()
	err := l.ToWorking()
	assert.Error(t, err)
	assert.True(t, falconerrors.Is(err, falconerrors.KindInvalidTransition))
}

func TestLifecycle_ErrorFromAnyState(t *testing.T) {
	for _, setup := range []func(*agent.Lifecycle){
		func(l *agent.Lifecycle) {},
		func(l *agent.Lifecycle) { _ = l.ToIdle() },
		func(l *agent.Lifecycle) { _ = l.ToIdle(); _ = l.ToCheckout("x") },
		func(l *agent.Lifecycle) { _ = l.ToIdle(); _ = l.ToCheckout("x"); _ = l.ToWorking() },
	} {
		l := agent.NewLifecycle()
		setup(l)
		require.NoError(t, l.ToError(errors.New("boom")))
		assert.Equal(t, agent.Error, l.State())
		assert.Equal(t, "boom", l.LastError())
	}
}

func TestLifecycle_ReleaseClearsLastError(t *testing.T) {
	l := agent.NewLifecycle()
	require.NoError(t, l.ToIdle())
	require.NoError(t, l.ToCheckout("issue-1"))
	require.NoError(t, l.ToError(errors.New("git failure")))
	assert.Equal(t, "git failure", l.LastError())

	require.NoError(t, l.Release())
	assert.Empty(t, l.LastError())
	assert.Empty(t, l.IssueID())
	assert.Equal(t, agent.Idle, l.State())
}

func TestRecord_Matches(t *testing.T) {
	r := agent.Record{Status: agent.Idle, Model: "claude-sonnet"}
	assert.True(t, r.Matches("claude-sonnet"))
	assert.False(t, r.Matches("claude-opus"))

	r.Status = agent.Working
	assert.False(t, r.Matches("claude-sonnet"))
}
