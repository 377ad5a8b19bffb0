// Package domain holds the plain-struct data model shared across every
// Falcon component: Project, Issue, Agent Record, Pattern/Occurrence,
// Provisional Alert, EvidenceBundle, ExecutionNoncompliance, Kill-Switch
// Status, and Rolling Health Metrics.
package domain

import "time"

// ProjectLifecycle is the project's coarse lifecycle state.
type ProjectLifecycle string

const (
	ProjectActive   ProjectLifecycle = "active"
	ProjectArchived ProjectLifecycle = "archived"
)

// Project is identified by its canonical repo-origin URL plus an optional
// subdirectory. That pair is immutable; name and config may change.
type Project struct {
	ID            string
	RepoOriginURL string
	Subdir        string
	Slug          string
	Name          string
	Lifecycle     ProjectLifecycle
	BaseBranch    string
	Config        map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity returns the immutable (origin, subdir) pair used for equality.
func (p Project) Identity() (string, string) {
	return p.RepoOriginURL, p.Subdir
}
