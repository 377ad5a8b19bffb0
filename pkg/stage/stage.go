// Package stage implements the Stage State Machine (C1): a fixed, pure
// directed graph of allowed issue-stage transitions. It has no dependencies
// on any other Falcon package, matching its role as the leaf of the
// dependency order.
package stage

// Stage is one node of the issue pipeline.
type Stage string

const (
	Backlog        Stage = "BACKLOG"
	Todo           Stage = "TODO"
	ContextPack    Stage = "CONTEXT_PACK"
	ContextReview  Stage = "CONTEXT_REVIEW"
	Spec           Stage = "SPEC"
	SpecReview     Stage = "SPEC_REVIEW"
	Implement      Stage = "IMPLEMENT"
	PRReview       Stage = "PR_REVIEW"
	PRHumanReview  Stage = "PR_HUMAN_REVIEW"
	Fixer          Stage = "FIXER"
	Testing        Stage = "TESTING"
	DocReview      Stage = "DOC_REVIEW"
	MergeReady     Stage = "MERGE_READY"
	Done           Stage = "DONE"
)

// All lists every valid Stage in pipeline order, useful for validation and
// for iterating in tests and CLI help text.
var All = []Stage{
	Backlog, Todo, ContextPack, ContextReview, Spec, SpecReview,
	Implement, PRReview, PRHumanReview, Fixer, Testing, DocReview,
	MergeReady, Done,
}

// Valid reports whether s is one of the enumerated stages.
func (s Stage) Valid() bool {
	for _, candidate := range All {
		if candidate == s {
			return true
		}
	}
	return false
}

// graph is the fixed set of allowed (from, to) transitions from spec §4.1.
var graph = map[Stage][]Stage{
	Backlog:       {Todo},
	Todo:          {ContextPack},
	ContextPack:   {ContextReview},
	ContextReview: {Spec, Implement},
	Spec:          {SpecReview},
	SpecReview:    {Implement, Spec},
	Implement:     {PRReview},
	PRReview:      {PRHumanReview},
	PRHumanReview: {Fixer, Testing},
	Fixer:         {PRReview},
	Testing:       {DocReview, Implement},
	DocReview:     {MergeReady},
	MergeReady:    {Done},
	Done:          {},
}

// CanTransition is a pure, total predicate: it answers strictly from the
// fixed graph above and never panics, even for invalid Stage values.
func CanTransition(from, to Stage) bool {
	targets, ok := graph[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Allowed returns the set of stages reachable from from in one transition.
// The returned slice is a defensive copy; callers may mutate it freely.
func Allowed(from Stage) []Stage {
	targets := graph[from]
	out := make([]Stage, len(targets))
	copy(out, targets)
	return out
}

// Terminal reports whether a stage has no outgoing transitions.
func Terminal(s Stage) bool {
	return len(graph[s]) == 0
}
