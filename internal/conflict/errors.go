package conflict

import (
	"errors"
	"fmt"
)

var (
	// ErrConflictUnresolved is returned when the user interrupts or aborts
	// resolution. The store file is left untouched.
	ErrConflictUnresolved = errors.New("conflict left unresolved")

	// ErrNoPrompter is returned when manual resolution is requested
	// without a way to ask the user.
	ErrNoPrompter = errors.New("manual conflict resolution needs an interactive prompt")
)

// MalformedConflictError reports conflict markers that do not form
// well-nested blocks.
type MalformedConflictError struct {
	Line   int
	Reason string
}

func (e *MalformedConflictError) Error() string {
	return fmt.Sprintf("malformed conflict markers at line %d: %s", e.Line, e.Reason)
}
