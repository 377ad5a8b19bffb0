// Package provisioner implements the Worktree Provisioner (C6): creation and
// teardown of per-agent git worktrees rooted at a project's primary
// checkout, layered on the Worktree Layout (C4) for path resolution and the
// gitsync Runner for the underlying git plumbing.
package provisioner

import (
	"context"
	"os"

	"github.com/tbelfort/falcon-ai-sub003/pkg/gitsync"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/worktree"
)

// Provisioner manages the lifecycle of per-agent worktree directories.
type Provisioner struct {
	layout *worktree.Layout
	runner gitsync.Runner
	sync   *gitsync.Sync
}

// New returns a Provisioner that resolves paths through layout, runs git
// plumbing through runner, and clones the primary checkout through sync
// (so EnsurePrimary's clone gets the same breaker/tracing wiring as every
// other gitsync operation).
func New(layout *worktree.Layout, runner gitsync.Runner, sync *gitsync.Sync) *Provisioner {
	return &Provisioner{layout: layout, runner: runner, sync: sync}
}

// EnsurePrimary makes sure the project's primary checkout directory exists,
// cloning url at baseBranch into it when it does not.
func (p *Provisioner) EnsurePrimary(ctx context.Context, projectSlug, url, baseBranch string) (string, error) {
	dir, err := p.layout.PrimaryDir(projectSlug)
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return dir, nil
	}
	if err := os.MkdirAll(dir, worktree.DirMode); err != nil {
		return "", falconerrors.FailedToWithDetails("create primary checkout directory", "provisioner", dir, err)
	}
	if err := p.sync.Clone(ctx, url, baseBranch, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// ProvisionAgent creates an isolated git worktree for agentName, branched
// from the project's primary checkout at branchName. If the directory
// already exists it is returned as-is (idempotent re-provisioning of an
// already-checked-out agent).
func (p *Provisioner) ProvisionAgent(ctx context.Context, projectSlug, agentName, primaryDir, branchName string) (string, error) {
	dir, err := p.layout.AgentDir(projectSlug, agentName)
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return dir, nil
	}
	if _, err := p.runner.Run(ctx, primaryDir, "worktree", "add", "-B", branchName, dir); err != nil {
		return "", falconerrors.Wrapf(err, "provision worktree for agent %s", agentName)
	}
	return dir, nil
}

// ReleaseAgent removes agentName's worktree from both the primary
// repository's worktree list and the filesystem. Safe to call on an agent
// with no provisioned worktree.
func (p *Provisioner) ReleaseAgent(ctx context.Context, projectSlug, agentName, primaryDir string) error {
	dir, err := p.layout.AgentDir(projectSlug, agentName)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		return nil
	}
	if _, err := p.runner.Run(ctx, primaryDir, "worktree", "remove", "--force", dir); err != nil {
		return falconerrors.Wrapf(err, "release worktree for agent %s", agentName)
	}
	return os.RemoveAll(dir)
}

// IssueArtifactDir returns (creating if necessary) the directory an issue's
// non-git artifacts (context packs, spec drafts) live in.
func (p *Provisioner) IssueArtifactDir(projectSlug, issueID string) (string, error) {
	dir, err := p.layout.IssueDir(projectSlug, issueID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, worktree.DirMode); err != nil {
		return "", falconerrors.FailedToWithDetails("create issue artifact directory", "provisioner", dir, err)
	}
	return dir, nil
}
