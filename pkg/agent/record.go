package agent

import "time"

// Record is the persisted Agent Record: (project, logical name, worktree
// path, model, status, current issue, last error). Agent name is unique per
// project; worktree path is derived deterministically by the worktree
// layout from (falcon home, project slug, agent name).
type Record struct {
	ID            string
	ProjectID     string
	Name          string
	WorktreePath  string
	Model         string
	Status        State
	CurrentIssue  string
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Matches reports whether this agent is idle and usable for the given
// model, the selection predicate the Dispatcher's selectAgent uses.
func (r Record) Matches(model string) bool {
	return r.Status == Idle && r.Model == model
}
