package improve

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/cv-pipeline/internal/types"
)

func draftFixture() *Draft {
	return &Draft{
		Document: &types.StitchedDocument{
			Sections: []types.RoleSection{{
				RoleID: "acme",
				Bullets: []types.CandidateBullet{
					{ID: "acme-b01", RoleID: "acme", Text: "Led migration to new platform"},
				},
			}},
			WordCount: 5,
		},
		Header: &types.HeaderSection{Summary: "Engineer."},
	}
}

func grade(overall float64, flags ...types.GradeFlag) *types.GradeResult {
	return &types.GradeResult{RubricVersion: "v1", Overall: overall, Flags: flags}
}

// scriptedGrader returns grades in order, then repeats the last one.
type scriptedGrader struct {
	grades []*types.GradeResult
	calls  int
}

func (s *scriptedGrader) grade(_ context.Context, _ *types.StitchedDocument, _ *types.HeaderSection) (*types.GradeResult, error) {
	i := s.calls
	s.calls++
	if i >= len(s.grades) {
		i = len(s.grades) - 1
	}
	return s.grades[i], nil
}

type recordingReviser struct {
	roleCalls   int
	headerCalls int
}

func (r *recordingReviser) ReviseRoles(_ context.Context, draft *Draft, _ *types.GradeResult) (*types.StitchedDocument, error) {
	r.roleCalls++
	revised := *draft.Document
	return &revised, nil
}

func (r *recordingReviser) ReviseHeader(_ context.Context, draft *Draft, _ *types.GradeResult) (*types.HeaderSection, error) {
	r.headerCalls++
	revised := *draft.Header
	return &revised, nil
}

func TestLoopAcceptsOnFirstPass(t *testing.T) {
	grader := &scriptedGrader{grades: []*types.GradeResult{grade(0.9)}}
	reviser := &recordingReviser{}
	l := &Loop{Grade: grader.grade, Reviser: reviser, Threshold: 0.75, MaxIterations: 3}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Accepted() || outcome.State != StateAccepted {
		t.Errorf("expected acceptance, got state %s", outcome.State)
	}
	if outcome.Iterations != 1 {
		t.Errorf("expected 1 grading pass, got %d", outcome.Iterations)
	}
	if reviser.roleCalls != 0 || reviser.headerCalls != 0 {
		t.Error("accepted draft should not be revised")
	}
}

func TestLoopTerminatesAtIterationCap(t *testing.T) {
	// Never-accepting grader: always below threshold with a standing flag.
	grader := &scriptedGrader{grades: []*types.GradeResult{
		grade(0.5, types.GradeFlag{Section: "acme", BulletID: "acme-b01", Reason: "too vague"}),
	}}
	reviser := &recordingReviser{}
	l := &Loop{Grade: grader.grade, Reviser: reviser, Threshold: 0.75, MaxIterations: 3}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.State != StateCapped {
		t.Errorf("expected cap-out, got state %s", outcome.State)
	}
	if grader.calls != 3 {
		t.Errorf("expected exactly 3 grading passes, got %d", grader.calls)
	}
	if reviser.roleCalls != 2 {
		t.Errorf("expected 2 revisions between 3 passes, got %d", reviser.roleCalls)
	}
	if outcome.Grade.Overall != 0.5 {
		t.Errorf("reported grade %f must match what grading actually produced", outcome.Grade.Overall)
	}
}

func TestLoopFlagsBelowThresholdWithoutFlags(t *testing.T) {
	// Score below threshold keeps revising even when nothing specific is
	// flagged; no flagged sections means no revision targets, so the loop
	// grades again and caps out.
	grader := &scriptedGrader{grades: []*types.GradeResult{grade(0.5)}}
	l := &Loop{Grade: grader.grade, Reviser: &recordingReviser{}, Threshold: 0.75, MaxIterations: 2}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.State != StateCapped {
		t.Errorf("expected cap-out, got %s", outcome.State)
	}
}

func TestLoopRevisesOnlyFlaggedParts(t *testing.T) {
	grader := &scriptedGrader{grades: []*types.GradeResult{
		grade(0.5, types.GradeFlag{Section: types.SectionHeader, Reason: "summary too generic"}),
		grade(0.9),
	}}
	reviser := &recordingReviser{}
	l := &Loop{Grade: grader.grade, Reviser: reviser, Threshold: 0.75, MaxIterations: 3}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Accepted() {
		t.Fatalf("expected acceptance on second pass, got %s", outcome.State)
	}
	if reviser.headerCalls != 1 {
		t.Errorf("header flagged once, revised %d times", reviser.headerCalls)
	}
	if reviser.roleCalls != 0 {
		t.Errorf("no role flags, but roles revised %d times", reviser.roleCalls)
	}
}

func TestLoopKeepsBestGradeOnCapOut(t *testing.T) {
	// Scores decline across passes; the returned grade must be the best one
	// actually produced, never the last (worse) one and never inflated.
	grader := &scriptedGrader{grades: []*types.GradeResult{
		grade(0.6, types.GradeFlag{Section: "acme", Reason: "vague"}),
		grade(0.4, types.GradeFlag{Section: "acme", Reason: "worse"}),
		grade(0.3, types.GradeFlag{Section: "acme", Reason: "worse still"}),
	}}
	l := &Loop{Grade: grader.grade, Reviser: &recordingReviser{}, Threshold: 0.75, MaxIterations: 3}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Grade.Overall != 0.6 {
		t.Errorf("best grade was 0.6, reported %f", outcome.Grade.Overall)
	}
	if outcome.Iterations != 3 {
		t.Errorf("expected 3 grading passes recorded, got %d", outcome.Iterations)
	}
}

func TestLoopReturnsBestWhenLaterGradingFails(t *testing.T) {
	calls := 0
	gradeFn := func(_ context.Context, _ *types.StitchedDocument, _ *types.HeaderSection) (*types.GradeResult, error) {
		calls++
		if calls == 1 {
			return grade(0.5, types.GradeFlag{Section: "acme", Reason: "vague"}), nil
		}
		return nil, errors.New("model unavailable")
	}
	l := &Loop{Grade: gradeFn, Reviser: &recordingReviser{}, Threshold: 0.75, MaxIterations: 3}

	outcome, err := l.Run(context.Background(), draftFixture())
	if err != nil {
		t.Fatalf("Run should degrade, not fail: %v", err)
	}
	if outcome.State != StateCapped || outcome.Grade.Overall != 0.5 {
		t.Errorf("expected capped outcome with first grade, got %s %f", outcome.State, outcome.Grade.Overall)
	}
}

func TestLoopFailsWhenFirstGradeFails(t *testing.T) {
	gradeFn := func(_ context.Context, _ *types.StitchedDocument, _ *types.HeaderSection) (*types.GradeResult, error) {
		return nil, errors.New("model unavailable")
	}
	l := &Loop{Grade: gradeFn, Threshold: 0.75, MaxIterations: 3}

	if _, err := l.Run(context.Background(), draftFixture()); err == nil {
		t.Fatal("expected error when no draft was ever graded")
	}
}
