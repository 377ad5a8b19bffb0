// Package agent implements the Agent Lifecycle FSM (C2) and the Agent
// Record data model. The lifecycle is a pure value-state: side effects (git,
// subprocess) are performed by other components and reflected into the FSM
// only after they succeed.
package agent

import (
	"fmt"

	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// State is one node of the per-agent lifecycle.
type State string

const (
	Init     State = "INIT"
	Idle     State = "IDLE"
	Checkout State = "CHECKOUT"
	Working  State = "WORKING"
	Done     State = "DONE"
	Error    State = "ERROR"
)

// Lifecycle is the pure FSM value for one agent. IssueID is non-empty only
// while State is Checkout or Working (spec invariant 3).
type Lifecycle struct {
	state     State
	issueID   string
	lastError string
}

// NewLifecycle returns a Lifecycle starting in INIT.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: Init}
}

// Restore rebuilds a Lifecycle value from persisted state, for a Dispatcher
// that loads an agent.Record from a repository rather than driving a
// Lifecycle that lived in memory the whole time.
func Restore(state State, issueID, lastError string) *Lifecycle {
	return &Lifecycle{state: state, issueID: issueID, lastError: lastError}
}

func (l *Lifecycle) State() State      { return l.state }
func (l *Lifecycle) IssueID() string   { return l.issueID }
func (l *Lifecycle) LastError() string { return l.lastError }

// legal enumerates every allowed (from, to) transition other than the
// "any state -> ERROR" rule, which ToError applies unconditionally.
var legal = map[State]map[State]bool{
	Init:     {Idle: true},
	Idle:     {Checkout: true},
	Checkout: {Working: true},
	Working:  {Done: true},
	Done:     {Idle: true},
	Error:    {Idle: true},
}

func (l *Lifecycle) canGo(to State) bool {
	targets, ok := legal[l.state]
	return ok && targets[to]
}

// invalidTransition builds the InvalidTransition error the spec requires for
// illegal moves.
func (l *Lifecycle) invalidTransition(to State) error {
	return falconerrors.New(falconerrors.KindInvalidTransition,
		fmt.Sprintf("transition agent lifecycle %s->%s", l.state, to), nil)
}

// ToIdle moves INIT/DONE/ERROR to IDLE, clearing issueID and lastError via an
// explicit release (spec §4.2).
func (l *Lifecycle) ToIdle() error {
	if !l.canGo(Idle) {
		return l.invalidTransition(Idle)
	}
	l.state = Idle
	l.issueID = ""
	l.lastError = ""
	return nil
}

// ToCheckout binds issueID and moves IDLE to CHECKOUT. Forbidden when the
// agent is already WORKING, and whenever issueID is empty.
func (l *Lifecycle) ToCheckout(issueID string) error {
	if issueID == "" {
		return falconerrors.New(falconerrors.KindValidation, "transition agent lifecycle to checkout", nil).WithResource("issueID")
	}
	if !l.canGo(Checkout) {
		if l.state == Working {
			return falconerrors.New(falconerrors.KindAgentBusy, "transition agent lifecycle to checkout", nil)
		}
		return l.invalidTransition(Checkout)
	}
	l.state = Checkout
	l.issueID = issueID
	return nil
}

// ToWorking moves CHECKOUT to WORKING.
func (l *Lifecycle) ToWorking() error {
	if !l.canGo(Working) {
		return l.invalidTransition(Working)
	}
	l.state = Working
	return nil
}

// ToDone moves WORKING to DONE.
func (l *Lifecycle) ToDone() error {
	if !l.canGo(Done) {
		return l.invalidTransition(Done)
	}
	l.state = Done
	return nil
}

// ToError moves any state to ERROR, recording lastError. Per spec §4.2 this
// transition is legal from any state.
func (l *Lifecycle) ToError(cause error) error {
	l.state = Error
	if cause != nil {
		l.lastError = cause.Error()
	}
	return nil
}

// Release is an alias for ToIdle documenting the "explicit release" language
// used in spec §4.2 for DONE/ERROR -> IDLE.
func (l *Lifecycle) Release() error { return l.ToIdle() }
