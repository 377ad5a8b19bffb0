package workflow

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/invoker"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

// Invoker is the subset of *invoker.Invoker the Executor depends on.
type Invoker interface {
	Invoke(ctx context.Context, req invoker.Request) (invoker.Result, error)
}

// Executor builds a stage prompt and hands it to the Agent Invoker, the
// "builds prompts, hands to invoker, returns run-id" responsibility spec §2
// assigns to C10.
type Executor struct {
	invoker Invoker
}

// New returns an Executor backed by inv.
func New(inv Invoker) *Executor {
	return &Executor{invoker: inv}
}

// Run builds the default prompt for issue at s and invokes agentID's
// subprocess, returning the invoker's result unchanged.
func (e *Executor) Run(ctx context.Context, agentID, model string, s stage.Stage, issue *domain.Issue, toolBaseURL string, mode invoker.Mode) (invoker.Result, error) {
	prompt := BuildPrompt(s, issue)
	return e.invoker.Invoke(ctx, invoker.Request{
		AgentID:     agentID,
		Model:       model,
		IssueID:     issue.ID,
		Stage:       s,
		Prompt:      prompt,
		ToolBaseURL: toolBaseURL,
		Mode:        mode,
	})
}
