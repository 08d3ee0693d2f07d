// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Phase identifies a pipeline stage. Phases advance monotonically.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseLoad     Phase = "load"
	PhaseGenerate Phase = "generate"
	PhaseStitch   Phase = "stitch"
	PhaseHeader   Phase = "header"
	PhaseGrade    Phase = "grade"
	PhaseImprove  Phase = "improve"
	PhaseDone     Phase = "done"
)

// Warning codes surfaced in CVResult when guarantees were relaxed. The
// pipeline never silently presents a degraded document as fully validated.
const (
	WarnBudgetUnattainable   = "BUDGET_UNATTAINABLE"
	WarnIterationCapReached  = "ITERATION_CAP_REACHED"
	WarnGradeBelowThreshold  = "GRADE_BELOW_THRESHOLD"
	WarnRoleSkipped          = "ROLE_SKIPPED"
	WarnHeaderDegraded       = "HEADER_DEGRADED"
	WarnDeadlineExpired      = "DEADLINE_EXPIRED"
)

// PipelineState is the end-to-end run state. It is owned and mutated only by
// the orchestrator; worker results are merged in by value.
type PipelineState struct {
	Phase      Phase             `json:"phase"`
	Roles      []RoleRecord      `json:"roles,omitempty"`
	BulletSets []RoleBulletSet   `json:"bullet_sets,omitempty"`
	Document   *StitchedDocument `json:"document,omitempty"`
	Header     *HeaderSection    `json:"header,omitempty"`
	Grade      *GradeResult      `json:"grade,omitempty"`
	Iterations int               `json:"iterations"`
	Warnings   []string          `json:"warnings,omitempty"`
	Status     string            `json:"status"`
}

// Advance moves the state to the given phase. Phases never move backwards;
// out-of-order calls are ignored so retried stages cannot regress the state.
func (s *PipelineState) Advance(p Phase) {
	if phaseOrder[p] >= phaseOrder[s.Phase] {
		s.Phase = p
	}
}

// Warn appends a warning code once.
func (s *PipelineState) Warn(code string) {
	for _, w := range s.Warnings {
		if w == code {
			return
		}
	}
	s.Warnings = append(s.Warnings, code)
}

var phaseOrder = map[Phase]int{
	PhaseLoad:     0,
	PhaseGenerate: 1,
	PhaseStitch:   2,
	PhaseHeader:   3,
	PhaseGrade:    4,
	PhaseImprove:  5,
	PhaseDone:     6,
}
