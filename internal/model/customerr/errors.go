// Package customerr holds the error kinds the server distinguishes when
// turning failures into protocol responses. Parse and validation problems
// keep the connection alive; only socket-level I/O errors end a session.
package customerr

import "fmt"

// ParseError reports a command line that could not be decoded into a
// command: wrong arity, malformed amount, malformed date.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// ValidationError reports a semantically invalid field on an otherwise
// well-formed command.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a failed durable write. The in-memory ledger has
// already been updated when this is returned; memory and disk may diverge
// until the next successful write for the same user.
type PersistenceError struct {
	Username string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist expenses for %s: %v", e.Username, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UnknownCommandError reports an unrecognized command verb.
type UnknownCommandError struct {
	Verb string
}

func (e *UnknownCommandError) Error() string {
	return "Unknown command: " + e.Verb
}
