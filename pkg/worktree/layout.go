// Package worktree implements the Worktree Layout (C4): a pure mapping from
// (home, project, agent|issue) to filesystem paths, rejecting any component
// that could escape the home directory.
package worktree

import (
	"path/filepath"
	"strings"

	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// Layout resolves on-disk paths for a single Falcon home directory, per the
// on-disk layout in spec §6:
//
//	projects/<projectSlug>/{primary, agents/<agentName>, issues/<issueId>}
type Layout struct {
	home string
}

// DirMode is the permission mode every directory created by the provisioner
// uses.
const DirMode = 0o700

// New validates home (must be absolute) and returns a Layout rooted there.
func New(home string) (*Layout, error) {
	if !filepath.IsAbs(home) {
		return nil, falconerrors.New(falconerrors.KindValidation, "resolve falcon home", nil).WithResource(home)
	}
	return &Layout{home: home}, nil
}

// Home returns the root directory this Layout resolves paths under.
func (l *Layout) Home() string { return l.home }

// validateComponent rejects empty, absolute, or traversal-bearing path
// components. It is the single choke point spec invariant 8 refers to.
func validateComponent(component string) error {
	if component == "" {
		return falconerrors.New(falconerrors.KindValidation, "validate path component", nil)
	}
	if filepath.IsAbs(component) {
		return falconerrors.New(falconerrors.KindValidation, "validate path component", nil).WithResource(component)
	}
	for _, part := range strings.Split(filepath.ToSlash(component), "/") {
		if part == ".." {
			return falconerrors.New(falconerrors.KindValidation, "validate path component", nil).WithResource(component)
		}
	}
	return nil
}

// ProjectDir returns <home>/projects/<projectSlug>.
func (l *Layout) ProjectDir(projectSlug string) (string, error) {
	if err := validateComponent(projectSlug); err != nil {
		return "", err
	}
	return filepath.Join(l.home, "projects", projectSlug), nil
}

// PrimaryDir returns the canonical checkout directory for a project.
func (l *Layout) PrimaryDir(projectSlug string) (string, error) {
	base, err := l.ProjectDir(projectSlug)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "primary"), nil
}

// AgentDir returns the exclusive worktree directory for one agent.
func (l *Layout) AgentDir(projectSlug, agentName string) (string, error) {
	base, err := l.ProjectDir(projectSlug)
	if err != nil {
		return "", err
	}
	if err := validateComponent(agentName); err != nil {
		return "", err
	}
	return filepath.Join(base, "agents", agentName), nil
}

// IssueDir returns the issue-local artifact directory.
func (l *Layout) IssueDir(projectSlug, issueID string) (string, error) {
	base, err := l.ProjectDir(projectSlug)
	if err != nil {
		return "", err
	}
	if err := validateComponent(issueID); err != nil {
		return "", err
	}
	return filepath.Join(base, "issues", issueID), nil
}

// PatternDBPath returns the per-home database file path, created with mode
// 0o600 by the repository layer.
func (l *Layout) PatternDBPath() string {
	return filepath.Join(l.home, "pm.db")
}

// DBFileMode is the permission mode the pm.db file is created with.
const DBFileMode = 0o600
