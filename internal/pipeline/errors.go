package pipeline

import "fmt"

// ErrorKind classifies fatal pipeline failures.
type ErrorKind string

// Fatal failure kinds. Everything else degrades to a warning on the result.
const (
	KindLoadFailed     ErrorKind = "load_failed"
	KindNoRoleRecords  ErrorKind = "no_role_records"
	KindAllRolesFailed ErrorKind = "all_roles_failed"
)

// PipelineError is a fatal, structured failure that aborts the run. Non-fatal
// problems never produce one; they surface as warnings on the result instead.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pipeline error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("pipeline error (%s): %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}
