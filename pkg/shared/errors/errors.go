// Package errors provides the operation-error type and error-kind taxonomy
// shared by every Falcon component.
package errors

import "fmt"

// Kind classifies an error the way a caller needs to branch on it, per the
// error-handling design: some kinds are recoverable and safe to retry,
// others require explicit operator or FSM intervention.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindAgentBusy          Kind = "agent_busy"
	KindInvalidTransition  Kind = "invalid_transition"
	KindDirtyWorktree      Kind = "dirty_worktree"
	KindTimeout            Kind = "timeout"
	KindPromptTooLarge     Kind = "prompt_too_large"
	KindAttributionInvalid Kind = "attribution_invalid"
	KindInternal           Kind = "internal"
)

// Recoverable reports whether a caller may retry the operation that produced
// this kind of error without further operator intervention.
func (k Kind) Recoverable() bool {
	switch k {
	case KindAgentBusy, KindDirtyWorktree, KindTimeout:
		return true
	default:
		return false
	}
}

// OperationError carries enough context to log and to act on: which
// operation failed, on which component, against which resource, and why.
type OperationError struct {
	Kind      Kind
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause)
	}
	return msg
}

func (e *OperationError) Unwrap() error { return e.Cause }

// New builds a Kind-tagged OperationError.
func New(kind Kind, operation string, cause error) *OperationError {
	return &OperationError{Kind: kind, Operation: operation, Cause: cause}
}

// WithComponent attaches a component name, returning the same error for
// chaining.
func (e *OperationError) WithComponent(component string) *OperationError {
	e.Component = component
	return e
}

// WithResource attaches a resource name, returning the same error for
// chaining.
func (e *OperationError) WithResource(resource string) *OperationError {
	e.Resource = resource
	return e
}

// FailedTo builds an unclassified (Internal) OperationError describing a
// failed action and its cause. When cause is nil the message omits the
// "cause:" clause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Kind: KindInternal, Operation: action}
	}
	return &OperationError{Kind: KindInternal, Operation: action, Cause: cause}
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Kind:      KindInternal,
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with additional formatted context, or returns nil when err
// is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// DatabaseError builds a Component: "database" OperationError.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Kind: KindInternal, Operation: operation, Component: "database", Cause: cause}
}

// NetworkError builds a Component: "network" OperationError with the
// endpoint recorded as the resource.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Kind: KindTimeout, Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// fieldError carries Kind for errors.Is/As without forcing the OperationError
// message shape onto field-validation and configuration errors, whose wording
// is fixed by callers across the codebase.
type fieldError struct {
	kind Kind
	msg  string
}

func (e *fieldError) Error() string { return e.msg }
func (e *fieldError) Kind() Kind    { return e.kind }

// ValidationError reports a field-level constraint breach.
func ValidationError(field, reason string) error {
	return &fieldError{kind: KindValidation, msg: fmt.Sprintf("validation failed for field %s: %s", field, reason)}
}

// ConfigurationError reports a bad configuration key/value pair.
func ConfigurationError(key, reason string) error {
	return &fieldError{kind: KindValidation, msg: fmt.Sprintf("configuration error for %s: %s", key, reason)}
}

// kinded is implemented by every error type in this package that carries a
// Kind, letting Is() branch without a type switch per variant.
type kinded interface{ Kind() Kind }

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if oe, ok := err.(*OperationError); ok {
			return oe.Kind == kind
		}
		if ke, ok := err.(kinded); ok {
			return ke.Kind() == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
