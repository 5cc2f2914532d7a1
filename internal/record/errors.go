package record

import "fmt"

// CorruptRecordError reports a store line that could not be decoded.
type CorruptRecordError struct {
	// Line is the 1-based physical line number in the store file,
	// counting blank lines.
	Line int
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record at line %d: %v", e.Line, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
