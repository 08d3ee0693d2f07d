// Package improve runs the grade/revise convergence loop over an assembled
// document. The loop is a small state machine with a mandatory iteration cap;
// it never recurses indefinitely and never inflates the reported grade.
package improve

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-pipeline/internal/types"
)

// State names the loop's position between transitions.
type State string

const (
	StateDrafted  State = "drafted"
	StateGraded   State = "graded"
	StateRevising State = "revising"
	StateAccepted State = "accepted"
	StateCapped   State = "iteration_cap_reached"
)

const defaultMaxIterations = 3

// Draft is the unit the loop operates on: a body plus its header. Revisions
// replace drafts wholesale; a draft is never mutated in place.
type Draft struct {
	Document *types.StitchedDocument
	Header   *types.HeaderSection
}

// GradeFunc scores a draft.
type GradeFunc func(ctx context.Context, doc *types.StitchedDocument, hdr *types.HeaderSection) (*types.GradeResult, error)

// Reviser regenerates flagged content. ReviseRoles rebuilds only the flagged
// role sections of the document; ReviseHeader rewrites the flagged header.
type Reviser interface {
	ReviseRoles(ctx context.Context, draft *Draft, grade *types.GradeResult) (*types.StitchedDocument, error)
	ReviseHeader(ctx context.Context, draft *Draft, grade *types.GradeResult) (*types.HeaderSection, error)
}

// Outcome reports how the loop ended and with what.
type Outcome struct {
	Draft      *Draft
	Grade      *types.GradeResult
	State      State
	Iterations int // grading passes performed
}

// Accepted reports whether the final draft met the threshold with no flags.
func (o *Outcome) Accepted() bool {
	return o.State == StateAccepted
}

// Loop drives grade → revise → re-grade until acceptance or the cap.
type Loop struct {
	Grade         GradeFunc
	Reviser       Reviser
	Threshold     float64
	MaxIterations int
}

// Run executes the loop starting from a drafted document. The returned
// outcome always carries the best graded draft seen: on cap-out the best
// draft and its actual grade are returned, never the last revision ungraded.
func (l *Loop) Run(ctx context.Context, draft *Draft) (*Outcome, error) {
	if l.Grade == nil {
		return nil, fmt.Errorf("improve loop requires a grade function")
	}
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	var best *Outcome
	passes := 0
	current := draft

	for iteration := 1; iteration <= maxIter; iteration++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		grade, err := l.Grade(ctx, current.Document, current.Header)
		if err != nil {
			// A failed grading pass cannot improve the draft; return the best
			// result so far, or fail the loop if nothing was ever graded.
			if best != nil {
				break
			}
			return nil, err
		}
		passes = iteration

		if best == nil || grade.Overall > best.Grade.Overall {
			best = &Outcome{Draft: current, Grade: grade}
		}

		if grade.Overall >= l.Threshold && len(grade.Flags) == 0 {
			return &Outcome{Draft: current, Grade: grade, State: StateAccepted, Iterations: iteration}, nil
		}

		if iteration == maxIter || l.Reviser == nil {
			break
		}

		revised, err := l.revise(ctx, current, grade)
		if err != nil {
			break
		}
		current = revised
	}

	best.State = StateCapped
	best.Iterations = passes
	return best, nil
}

// revise rebuilds only what the grade flagged, leaving the rest of the draft
// untouched.
func (l *Loop) revise(ctx context.Context, draft *Draft, grade *types.GradeResult) (*Draft, error) {
	next := &Draft{Document: draft.Document, Header: draft.Header}

	if len(grade.FlaggedRoles()) > 0 {
		doc, err := l.Reviser.ReviseRoles(ctx, draft, grade)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			next.Document = doc
		}
	}

	if grade.HeaderFlagged() {
		hdr, err := l.Reviser.ReviseHeader(ctx, draft, grade)
		if err != nil {
			return nil, err
		}
		if hdr != nil {
			next.Header = hdr
		}
	}

	return next, nil
}
