package workflow

import "errors"

// Typed workflow failures. Callers distinguish them with errors.Is; none of
// them is fatal to the process.
var (
	// ErrInvalidRecord indicates the record identifier does not resolve.
	ErrInvalidRecord = errors.New("record not found")
	// ErrInvalidAction indicates the action name is not in the transition table.
	ErrInvalidAction = errors.New("unknown workflow action")
	// ErrInvalidTransition indicates the action is not valid from the record's current state.
	ErrInvalidTransition = errors.New("action not valid from current state")
	// ErrInsufficientPermissions indicates the acting user lacks the required role.
	ErrInsufficientPermissions = errors.New("insufficient permissions for action")
	// ErrMissingNotes indicates the action requires notes and none were supplied.
	ErrMissingNotes = errors.New("notes are required for this action")
	// ErrPersistence wraps a record store read or write failure. No partial
	// mutation is ever left behind when it is returned.
	ErrPersistence = errors.New("record store failure")
)
