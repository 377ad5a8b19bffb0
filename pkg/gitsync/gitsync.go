// Package gitsync implements Git Sync (C5): clone, checkout, pull-rebase,
// commit, and push against a worktree directory, with every error funneled
// through credential scrubbing before it reaches a caller.
package gitsync

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/tbelfort/falcon-ai-sub003/pkg/reliability"
	"github.com/tbelfort/falcon-ai-sub003/pkg/scrub"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/telemetry"
)

// Runner executes git commands in a working directory. Production code uses
// ExecRunner; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (stdout string, err error)
}

// ExecRunner shells out to the git binary.
type ExecRunner struct {
	GitBinary string
}

// NewExecRunner returns a Runner that invokes "git" on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GitBinary: "git"}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.GitBinary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return out.String(), scrubbedRunError(args, errBuf.String(), err)
	}
	return out.String(), nil
}

func scrubbedRunError(args []string, stderr string, cause error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = cause.Error()
	}
	return falconerrors.New(falconerrors.KindInternal, "run git "+strings.Join(args, " "), nil).
		WithComponent("git").
		WithResource(scrub.Scrub(msg))
}

// Sync wraps a Runner with the higher-level operations spec §4.4 names.
type Sync struct {
	runner  Runner
	breaker *reliability.Breaker
}

// New returns a Sync backed by runner.
func New(runner Runner) *Sync {
	return &Sync{runner: runner}
}

// WithBreaker routes every network-touching git operation (clone, fetch,
// pull, push) through b, tripping the circuit after repeated remote
// failures instead of letting every dispatch cycle retry a dead remote.
func (s *Sync) WithBreaker(b *reliability.Breaker) *Sync {
	s.breaker = b
	return s
}

// traced spans op with originURL as the remote identity, running fn through
// the breaker when one is configured.
func (s *Sync) traced(ctx context.Context, op, originURL string, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartGitOperation(ctx, op, originURL)
	var err error
	defer func() { telemetry.EndWithError(span, err) }()

	if s.breaker == nil {
		err = fn(ctx)
		return err
	}
	_, err = s.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// IsClean reports whether dir's worktree has no uncommitted changes.
func (s *Sync) IsClean(ctx context.Context, dir string) (bool, error) {
	out, err := s.runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

func (s *Sync) requireClean(ctx context.Context, dir, operation string) error {
	clean, err := s.IsClean(ctx, dir)
	if err != nil {
		return err
	}
	if !clean {
		return falconerrors.New(falconerrors.KindDirtyWorktree, operation, nil).WithResource(dir)
	}
	return nil
}

// Clone performs a shallow clone of url at baseBranch into dir, refusing if
// dir already has a repository, and unshallowing it afterward. On failure
// any partial clone is left for the caller's cleanup responsibility (the
// provisioner removes the directory it created).
func (s *Sync) Clone(ctx context.Context, url, baseBranch, dir string) error {
	if _, err := s.runner.Run(ctx, dir, "rev-parse", "--is-inside-work-tree"); err == nil {
		return falconerrors.New(falconerrors.KindConflict, "clone repository", nil).WithResource(dir)
	}
	return s.traced(ctx, "clone", url, func(ctx context.Context) error {
		if _, err := s.runner.Run(ctx, "", "clone", "--branch", baseBranch, "--depth", "1", url, dir); err != nil {
			return falconerrors.Wrapf(err, "clone %s", scrub.Scrub(url))
		}
		shallow, err := s.runner.Run(ctx, dir, "rev-parse", "--is-shallow-repository")
		if err == nil && strings.TrimSpace(shallow) == "true" {
			if _, err := s.runner.Run(ctx, dir, "fetch", "--unshallow"); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckoutIssueBranch switches dir onto branchName, creating it from
// baseBranch if it does not already exist locally. Requires a clean
// worktree. originURL is used only to label the tracing span for the
// remote fetch/pull this performs when branchName does not exist yet.
func (s *Sync) CheckoutIssueBranch(ctx context.Context, dir, baseBranch, branchName, originURL string) error {
	if err := s.requireClean(ctx, dir, "checkout issue branch"); err != nil {
		return err
	}
	if _, err := s.runner.Run(ctx, dir, "rev-parse", "--verify", branchName); err == nil {
		_, err := s.runner.Run(ctx, dir, "checkout", branchName)
		return err
	}
	err := s.traced(ctx, "checkout-issue-branch-sync", originURL, func(ctx context.Context) error {
		if _, err := s.runner.Run(ctx, dir, "fetch", "origin", baseBranch); err != nil {
			return err
		}
		if _, err := s.runner.Run(ctx, dir, "checkout", baseBranch); err != nil {
			return err
		}
		_, err := s.runner.Run(ctx, dir, "pull", "origin", baseBranch)
		return err
	})
	if err != nil {
		return err
	}
	_, err = s.runner.Run(ctx, dir, "checkout", "-b", branchName)
	return err
}

// SyncIdleToBase resets an idle agent's worktree back onto baseBranch.
// Requires a clean worktree.
func (s *Sync) SyncIdleToBase(ctx context.Context, dir, baseBranch, originURL string) error {
	if err := s.requireClean(ctx, dir, "sync idle worktree to base"); err != nil {
		return err
	}
	return s.traced(ctx, "sync-idle-to-base", originURL, func(ctx context.Context) error {
		if _, err := s.runner.Run(ctx, dir, "fetch", "origin", baseBranch); err != nil {
			return err
		}
		if _, err := s.runner.Run(ctx, dir, "checkout", baseBranch); err != nil {
			return err
		}
		_, err := s.runner.Run(ctx, dir, "pull", "origin", baseBranch)
		return err
	})
}

// PullRebase checks out branchName and rebases it onto its upstream.
func (s *Sync) PullRebase(ctx context.Context, dir, branchName, originURL string) error {
	if _, err := s.runner.Run(ctx, dir, "checkout", branchName); err != nil {
		return err
	}
	return s.traced(ctx, "pull-rebase", originURL, func(ctx context.Context) error {
		_, err := s.runner.Run(ctx, dir, "pull", "--rebase", "origin", branchName)
		return err
	})
}

// CommitAndPush stages files (all files when files is empty), commits with
// message, and pushes to origin, to branchName when given or the current
// branch otherwise.
func (s *Sync) CommitAndPush(ctx context.Context, dir, message, branchName string, files []string, originURL string) error {
	addArgs := append([]string{"add"}, files...)
	if len(files) == 0 {
		addArgs = []string{"add", "-A"}
	}
	if _, err := s.runner.Run(ctx, dir, addArgs...); err != nil {
		return err
	}
	if _, err := s.runner.Run(ctx, dir, "commit", "-m", message); err != nil {
		return err
	}
	pushArgs := []string{"push", "origin"}
	if branchName != "" {
		pushArgs = append(pushArgs, branchName)
	}
	return s.traced(ctx, "push", originURL, func(ctx context.Context) error {
		_, err := s.runner.Run(ctx, dir, pushArgs...)
		return err
	})
}
