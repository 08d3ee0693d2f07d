// Package generation produces candidate achievement bullets for one role at a
// time, drawing exclusively on that role's source achievements.
package generation

import "fmt"

// APICallError represents a failed call to the generation service after
// retries were exhausted.
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call error: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// SchemaError represents model output that never satisfied the expected
// structure, even after stricter-formatting retries.
type SchemaError struct {
	Message  string
	Attempts int
	Cause    error
}

func (e *SchemaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema error after %d attempts: %s: %v", e.Attempts, e.Message, e.Cause)
	}
	return fmt.Sprintf("schema error after %d attempts: %s", e.Attempts, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}
