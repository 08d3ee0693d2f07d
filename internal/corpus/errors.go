package corpus

import (
	"errors"
	"fmt"
)

// ErrNoRoleRecords marks an empty corpus: the store listed zero role records.
// Read and parse failures are LoadErrors without this sentinel, so callers can
// tell "nothing to build from" apart from "could not read the corpus".
var ErrNoRoleRecords = errors.New("no role records found")

// LoadError represents a fatal problem with the achievement corpus: no role
// records, an unreadable record, or a record with zero achievement statements.
type LoadError struct {
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("load error: %s", e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
