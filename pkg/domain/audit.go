package domain

import "time"

// AuditEvent records one state-changing action for later review: dispatcher
// FSM transitions, alert promotions, kill-switch transitions. This
// supplements the distilled spec (see SPEC_FULL.md "Supplemented features")
// the way the teacher's pkg/audit and pkg/aianalysis/audit packages record
// every controller decision.
type AuditEvent struct {
	ID        string
	ProjectID string
	IssueID   int64
	Kind      string
	Detail    string
	At        time.Time
}
