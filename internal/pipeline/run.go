// Package pipeline orchestrates the full CV generation run: load, per-role
// generation and validation, stitching, header composition, and the
// grade/improve loop. The orchestrator owns the run state and degrades
// gracefully: every relaxed guarantee surfaces as a warning on the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/cv-pipeline/internal/corpus"
	"github.com/jonathan/cv-pipeline/internal/db"
	"github.com/jonathan/cv-pipeline/internal/generation"
	"github.com/jonathan/cv-pipeline/internal/grading"
	"github.com/jonathan/cv-pipeline/internal/header"
	"github.com/jonathan/cv-pipeline/internal/improve"
	"github.com/jonathan/cv-pipeline/internal/llm"
	"github.com/jonathan/cv-pipeline/internal/observability"
	"github.com/jonathan/cv-pipeline/internal/qa"
	"github.com/jonathan/cv-pipeline/internal/retry"
	"github.com/jonathan/cv-pipeline/internal/stitch"
	"github.com/jonathan/cv-pipeline/internal/types"
)

const (
	defaultWorkers = 3

	// defaultHeaderReserveWords is the slice of the word budget held back
	// from body assembly for the header composed afterwards.
	defaultHeaderReserveWords = 40
)

// Options bound a single pipeline run.
type Options struct {
	// CorpusPath and JobTitle label the persisted run; neither affects
	// pipeline behavior.
	CorpusPath string
	JobTitle   string

	MinWords            int
	MaxWords            int
	MinBulletsPerRole   int
	MaxBulletWords      int
	SimilarityThreshold float64

	// HeaderReserveWords defaults to 40 when zero; negative reserves nothing.
	HeaderReserveWords int

	Workers       int
	MaxIterations int
	Timeout       time.Duration
	Rubric        *grading.Rubric
	Retry         retry.Policy
}

// Pipeline wires the phase components around a shared model client.
type Pipeline struct {
	Client   llm.Client
	Store    corpus.Store
	DB       *db.DB // optional; nil disables persistence
	Printer  *observability.Printer
	Progress ProgressCallback
	Opts     Options
}

// New creates a pipeline with defaults applied.
func New(client llm.Client, store corpus.Store, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.HeaderReserveWords == 0 {
		opts.HeaderReserveWords = defaultHeaderReserveWords
	}
	if opts.Rubric == nil {
		opts.Rubric = grading.DefaultRubric()
	}
	return &Pipeline{Client: client, Store: store, Opts: opts}
}

// Run executes the full pipeline and returns the final CV with its metadata.
// Fatal failures (no role records, all roles failed) return a PipelineError;
// everything else degrades into warnings on the result.
func (p *Pipeline) Run(ctx context.Context, job *types.JobContext) (*types.CVResult, error) {
	if p.Opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Opts.Timeout)
		defer cancel()
	}

	state := &types.PipelineState{Phase: types.PhaseLoad, Status: "running"}
	runID := p.createRun(ctx)

	roles, err := p.load(ctx, state, runID)
	if err != nil {
		p.completeRun(ctx, runID, "failed")
		return nil, err
	}

	sets, err := p.generateAll(ctx, state, runID, roles, job)
	if err != nil {
		p.completeRun(ctx, runID, "failed")
		return nil, err
	}

	doc := p.assemble(ctx, state, runID, roles, sets, job)
	hdr := p.composeHeader(ctx, state, runID, doc, roles)
	doc, hdr = p.improveLoop(ctx, state, runID, doc, hdr, roles, sets, job)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		state.Warn(types.WarnDeadlineExpired)
	}

	text := Render(hdr, doc)
	wordCount := renderedWordCount(text)
	if wordCount < p.Opts.MinWords || (p.Opts.MaxWords > 0 && wordCount > p.Opts.MaxWords) {
		state.Warn(types.WarnBudgetUnattainable)
	}

	state.Advance(types.PhaseDone)
	state.Status = "completed"
	if p.Printer != nil {
		p.Printer.PrintWarnings(state.Warnings)
	}

	result := &types.CVResult{
		Document:  text,
		WordCount: wordCount,
		Grade:     state.Grade,
		Warnings:  state.Warnings,
		Citations: citations(doc, roles),
	}

	p.saveText(ctx, runID, db.StepFinalCV, db.CategoryDocument, text)
	p.completeRun(ctx, runID, "completed")
	return result, nil
}

// load reads and parses the achievement corpus. An empty corpus is fatal.
func (p *Pipeline) load(ctx context.Context, state *types.PipelineState, runID uuid.UUID) ([]*types.RoleRecord, error) {
	p.emit(types.PhaseLoad, "loading achievement corpus")

	records, err := corpus.Load(ctx, p.Store)
	if err != nil {
		kind := KindLoadFailed
		if errors.Is(err, corpus.ErrNoRoleRecords) {
			kind = KindNoRoleRecords
		}
		return nil, &PipelineError{Kind: kind, Message: "loading achievement corpus", Cause: err}
	}

	state.Roles = records
	roles := make([]*types.RoleRecord, len(records))
	for i := range records {
		roles[i] = &state.Roles[i]
	}

	if p.Printer != nil {
		p.Printer.PrintRoleRecords(roles)
	}
	p.save(ctx, runID, db.StepRoleRecords, db.CategoryInput, records)
	return roles, nil
}

// generateAll fans generation and validation out over a bounded worker pool,
// one task per role. Results land at the role's own index, so arrival order
// never affects downstream content. A failed role is recorded and skipped;
// all roles failing is fatal.
func (p *Pipeline) generateAll(ctx context.Context, state *types.PipelineState, runID uuid.UUID, roles []*types.RoleRecord, job *types.JobContext) (map[string]*types.RoleBulletSet, error) {
	state.Advance(types.PhaseGenerate)
	p.emit(types.PhaseGenerate, fmt.Sprintf("generating bullets for %d roles", len(roles)))

	gen := p.newGenerator()
	results := make([]types.RoleBulletSet, len(roles))

	sem := semaphore.NewWeighted(int64(p.Opts.Workers))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = types.RoleBulletSet{RoleID: role.ID, Error: err.Error()}
				return nil
			}
			defer sem.Release(1)

			bullets, err := gen.Generate(gctx, role, job)
			if err != nil {
				results[i] = types.RoleBulletSet{RoleID: role.ID, Error: err.Error()}
				return nil
			}
			results[i] = qa.ValidateBullets(role, bullets, qa.Options{MaxWords: p.Opts.MaxBulletWords})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &PipelineError{Kind: KindAllRolesFailed, Message: "generation pool failed", Cause: err}
	}

	state.BulletSets = results
	sets := make(map[string]*types.RoleBulletSet, len(results))
	failed := 0
	for i := range results {
		set := &results[i]
		sets[set.RoleID] = set
		if set.Failed() {
			failed++
			state.Warn(types.WarnRoleSkipped)
		}
		if p.Printer != nil {
			p.Printer.PrintBulletSet(set)
		}
	}
	if failed == len(results) {
		return nil, &PipelineError{Kind: KindAllRolesFailed, Message: "no role produced usable bullets"}
	}

	p.save(ctx, runID, db.StepBulletSets, db.CategoryInterim, results)
	return sets, nil
}

// assemble runs the stitcher over the collected bullet sets. The stitcher is
// the synchronization barrier: every role's result is in hand at this point.
func (p *Pipeline) assemble(ctx context.Context, state *types.PipelineState, runID uuid.UUID, roles []*types.RoleRecord, sets map[string]*types.RoleBulletSet, job *types.JobContext) *types.StitchedDocument {
	state.Advance(types.PhaseStitch)
	p.emit(types.PhaseStitch, "stitching document body")

	doc, warnings, err := p.newStitcher(job).Stitch(ctx, roles, sets)
	if err != nil || doc == nil {
		state.Warn(types.WarnBudgetUnattainable)
		doc = &types.StitchedDocument{}
	}
	for _, w := range warnings {
		state.Warn(w)
	}

	state.Document = doc
	if p.Printer != nil {
		p.Printer.PrintDocument(doc)
	}
	p.save(ctx, runID, db.StepStitched, db.CategoryInterim, doc)
	return doc
}

// composeHeader writes the profile header. Composition failure is non-fatal:
// the run degrades to a minimal grounded header and warns.
func (p *Pipeline) composeHeader(ctx context.Context, state *types.PipelineState, runID uuid.UUID, doc *types.StitchedDocument, roles []*types.RoleRecord) *types.HeaderSection {
	state.Advance(types.PhaseHeader)
	p.emit(types.PhaseHeader, "composing header")

	hdr, err := p.newComposer().Compose(ctx, doc, roles)
	if err != nil || hdr == nil {
		state.Warn(types.WarnHeaderDegraded)
		hdr = fallbackHeader(roles)
	}

	state.Header = hdr
	p.save(ctx, runID, db.StepHeader, db.CategoryInterim, hdr)
	return hdr
}

// improveLoop drives grade → revise → re-grade over the draft. Grading
// failure or non-convergence is non-fatal and ends the loop with warnings.
func (p *Pipeline) improveLoop(ctx context.Context, state *types.PipelineState, runID uuid.UUID, doc *types.StitchedDocument, hdr *types.HeaderSection, roles []*types.RoleRecord, sets map[string]*types.RoleBulletSet, job *types.JobContext) (*types.StitchedDocument, *types.HeaderSection) {
	state.Advance(types.PhaseGrade)
	p.emit(types.PhaseGrade, "grading draft")

	grader := &grading.Grader{Client: p.Client, Retry: p.Opts.Retry, Rubric: p.Opts.Rubric}
	loop := &improve.Loop{
		Grade:         grader.Grade,
		Reviser:       &reviser{pipeline: p, roles: roles, sets: sets, job: job},
		Threshold:     p.Opts.Rubric.Threshold,
		MaxIterations: p.Opts.MaxIterations,
	}

	outcome, err := loop.Run(ctx, &improve.Draft{Document: doc, Header: hdr})
	if err != nil || outcome == nil {
		// Nothing was ever graded; the draft stands as-is.
		state.Warn(types.WarnGradeBelowThreshold)
		return doc, hdr
	}

	state.Advance(types.PhaseImprove)
	state.Grade = outcome.Grade
	state.Iterations = outcome.Iterations
	state.Document = outcome.Draft.Document
	state.Header = outcome.Draft.Header

	if !outcome.Accepted() {
		state.Warn(types.WarnIterationCapReached)
		if outcome.Grade.Overall < p.Opts.Rubric.Threshold {
			state.Warn(types.WarnGradeBelowThreshold)
		}
	}
	if p.Printer != nil {
		p.Printer.PrintGrade(outcome.Grade)
	}
	p.save(ctx, runID, db.StepGrade, db.CategoryInterim, outcome.Grade)
	return outcome.Draft.Document, outcome.Draft.Header
}

// reviser rebuilds flagged content by re-running generation, validation, and
// stitching scoped to the flagged roles.
type reviser struct {
	pipeline *Pipeline
	roles    []*types.RoleRecord
	sets     map[string]*types.RoleBulletSet
	job      *types.JobContext
}

func (r *reviser) ReviseRoles(ctx context.Context, _ *improve.Draft, grade *types.GradeResult) (*types.StitchedDocument, error) {
	gen := r.pipeline.newGenerator()

	revised := make(map[string]*types.RoleBulletSet, len(r.sets))
	for id, set := range r.sets {
		revised[id] = set
	}

	for _, roleID := range grade.FlaggedRoles() {
		role := findRole(r.roles, roleID)
		if role == nil {
			continue
		}
		bullets, err := gen.Generate(ctx, role, r.job)
		if err != nil {
			continue // keep the previous set for this role
		}
		set := qa.ValidateBullets(role, bullets, qa.Options{MaxWords: r.pipeline.Opts.MaxBulletWords})
		if !set.Failed() {
			revised[roleID] = &set
		}
	}
	r.sets = revised

	doc, _, err := r.pipeline.newStitcher(r.job).Stitch(ctx, r.roles, revised)
	return doc, err
}

func (r *reviser) ReviseHeader(ctx context.Context, draft *improve.Draft, grade *types.GradeResult) (*types.HeaderSection, error) {
	return r.pipeline.newComposer().Revise(ctx, draft.Header, grade.Flags, draft.Document, r.roles)
}

func (p *Pipeline) newGenerator() *generation.Generator {
	gen := generation.NewGenerator(p.Client, p.Opts.Retry)
	if p.Opts.MaxBulletWords > 0 {
		gen.MaxWords = p.Opts.MaxBulletWords
	}
	return gen
}

func (p *Pipeline) newComposer() *header.Composer {
	return header.NewComposer(p.Client, p.Opts.Retry)
}

func (p *Pipeline) newStitcher(job *types.JobContext) *stitch.Stitcher {
	gen := p.newGenerator()
	return stitch.New(stitch.Options{
		MinWords:            p.Opts.MinWords,
		MaxWords:            p.Opts.MaxWords,
		MinBulletsPerRole:   p.Opts.MinBulletsPerRole,
		SimilarityThreshold: p.Opts.SimilarityThreshold,
		HeaderReserveWords:  p.Opts.HeaderReserveWords,
		TopUp: func(ctx context.Context, role *types.RoleRecord) ([]types.CandidateBullet, error) {
			bullets, err := gen.Generate(ctx, role, job)
			if err != nil {
				return nil, err
			}
			set := qa.ValidateBullets(role, bullets, qa.Options{MaxWords: p.Opts.MaxBulletWords})
			return set.Accepted, nil
		},
	})
}

// fallbackHeader builds a minimal header from role metadata alone, used when
// header composition fails. Everything in it is trivially grounded.
func fallbackHeader(roles []*types.RoleRecord) *types.HeaderSection {
	if len(roles) == 0 {
		return &types.HeaderSection{}
	}
	latest := roles[0]
	for _, r := range roles {
		if r.Recency < latest.Recency {
			latest = r
		}
	}
	return &types.HeaderSection{
		Summary: fmt.Sprintf("%s at %s.", latest.Title, latest.Employer),
	}
}

func citations(doc *types.StitchedDocument, roles []*types.RoleRecord) []types.Citation {
	byID := make(map[string]*types.RoleRecord, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	var out []types.Citation
	for _, b := range doc.Bullets() {
		c := types.Citation{
			BulletID:       b.ID,
			RoleID:         b.RoleID,
			AchievementRef: b.SourceAchievementRef,
		}
		if role := byID[b.RoleID]; role != nil {
			c.Achievement = role.Achievement(b.SourceAchievementRef)
		}
		out = append(out, c)
	}
	return out
}

func findRole(roles []*types.RoleRecord, id string) *types.RoleRecord {
	for _, r := range roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Persistence helpers. All are no-ops without a database and never fail the
// run; losing an artifact is not worth losing the document.

func (p *Pipeline) createRun(ctx context.Context) uuid.UUID {
	if p.DB == nil {
		return uuid.Nil
	}
	id, err := p.DB.CreateRun(ctx, p.Opts.CorpusPath, p.Opts.JobTitle)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (p *Pipeline) completeRun(ctx context.Context, runID uuid.UUID, status string) {
	if p.DB == nil || runID == uuid.Nil {
		return
	}
	_ = p.DB.CompleteRun(ctx, runID, status)
}

func (p *Pipeline) save(ctx context.Context, runID uuid.UUID, step, category string, content any) {
	if p.DB == nil || runID == uuid.Nil {
		return
	}
	_ = p.DB.SaveArtifact(ctx, runID, step, category, content)
}

func (p *Pipeline) saveText(ctx context.Context, runID uuid.UUID, step, category, text string) {
	if p.DB == nil || runID == uuid.Nil {
		return
	}
	_ = p.DB.SaveTextArtifact(ctx, runID, step, category, text)
}
