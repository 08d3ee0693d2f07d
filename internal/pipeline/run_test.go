package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/cv-pipeline/internal/corpus"
	"github.com/jonathan/cv-pipeline/internal/llm"
	"github.com/jonathan/cv-pipeline/internal/types"
)

// fakeClient answers by prompt content rather than call order: generation,
// header, and grading calls interleave under the worker pool, so order-based
// scripting would be flaky by construction.
type fakeClient struct {
	generate string
	header   string
	grade    string
}

func (f *fakeClient) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	return f.dispatch(prompt)
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	return f.dispatch(prompt)
}

func (f *fakeClient) dispatch(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Compose a profile header"):
		return f.header, nil
	case strings.Contains(prompt, "strict CV reviewer"):
		return f.grade, nil
	default:
		return f.generate, nil
	}
}

func (f *fakeClient) GetModel(llm.ModelTier) string { return "fake" }
func (f *fakeClient) Close() error                  { return nil }

const acmeRecord = `Employer: Acme Corp
Title: Senior Engineer
Period: 2019 - 2022

- Led migration to new platform, cut costs 30%
- Mentored 3 engineers
`

const generateResponse = `{
  "bullets": [
    {"text": "Led migration to new platform, cutting costs 30%", "source_achievement_ref": 0, "metric": "30%", "matched_keyword": "platform migration"},
    {"text": "Mentored 3 engineers through promotion cycles", "source_achievement_ref": 1, "matched_keyword": "mentorship"}
  ]
}`

const headerResponse = `{
  "summary": "Senior engineer who led the migration of a core platform and cut infrastructure costs by 30% while keeping delivery on track for the business. Experienced in mentoring engineers, guiding teams through complex change, building durable systems, and delivering measurable improvements to cost, reliability, and delivery speed over several years of senior engineering work.",
  "skills": [{"category": "Engineering", "skills": ["Platform Migration", "Mentoring"]}]
}`

const gradeResponse = `{
  "dimensions": [
    {"dimension": "specificity", "score": 0.9},
    {"dimension": "keyword_coverage", "score": 0.85},
    {"dimension": "grounding", "score": 1.0},
    {"dimension": "conciseness", "score": 0.9},
    {"dimension": "tone", "score": 0.85}
  ],
  "flags": []
}`

func minimalStore() *corpus.MapStore {
	return &corpus.MapStore{Records: map[string]string{"acme": acmeRecord}}
}

func minimalJob() *types.JobContext {
	return &types.JobContext{Keywords: []string{"platform migration", "mentorship"}}
}

func happyClient() *fakeClient {
	return &fakeClient{generate: generateResponse, header: headerResponse, grade: gradeResponse}
}

func TestRunMinimalCorpus(t *testing.T) {
	p := New(happyClient(), minimalStore(), Options{
		MinWords:           80,
		MaxWords:           150,
		HeaderReserveWords: 70,
		MaxIterations:      3,
	})

	result, err := p.Run(context.Background(), minimalJob())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("clean run should carry no warnings, got %v", result.Warnings)
	}
	if result.WordCount < 80 || result.WordCount > 150 {
		t.Errorf("word count %d outside [80,150]", result.WordCount)
	}
	if result.Grade == nil || result.Grade.Overall < 0.75 {
		t.Errorf("expected an accepted grade, got %+v", result.Grade)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(result.Citations))
	}

	var found bool
	for _, c := range result.Citations {
		if c.AchievementRef == 0 && strings.Contains(c.Achievement, "30%") {
			found = true
		}
	}
	if !found {
		t.Error("the cost-cutting bullet should cite the 30% achievement")
	}

	if !strings.Contains(result.Document, "PROFILE") || !strings.Contains(result.Document, "EXPERIENCE") {
		t.Errorf("document missing sections:\n%s", result.Document)
	}
	if !strings.Contains(result.Document, "cutting costs 30%") {
		t.Errorf("accepted bullet missing from document:\n%s", result.Document)
	}
}

// richGenerateResponse carries enough grounded bullets to fill the body
// budget left over once the default header reserve is held back.
const richGenerateResponse = `{
  "bullets": [
    {"text": "Led migration of the core billing platform to new infrastructure, cutting operating costs 30% for the business", "source_achievement_ref": 0, "metric": "30%", "matched_keyword": "platform migration"},
    {"text": "Mentored 3 engineers through structured feedback and promotion planning across two annual review cycles", "source_achievement_ref": 1, "matched_keyword": "mentorship"},
    {"text": "Coordinated the platform migration rollout with partner teams to avoid downtime during the final cutover", "source_achievement_ref": 0}
  ]
}`

func TestRunAppliesHeaderReserveDefault(t *testing.T) {
	client := &fakeClient{generate: richGenerateResponse, header: headerResponse, grade: gradeResponse}
	p := New(client, minimalStore(), Options{
		MinWords:      80,
		MaxWords:      150,
		MaxIterations: 3,
	})

	if p.Opts.HeaderReserveWords != 40 {
		t.Fatalf("expected default header reserve of 40, got %d", p.Opts.HeaderReserveWords)
	}

	result, err := p.Run(context.Background(), minimalJob())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("default budget split should hold without warnings, got %v", result.Warnings)
	}
	if result.WordCount < 80 || result.WordCount > 150 {
		t.Errorf("word count %d outside [80,150]", result.WordCount)
	}
	if len(result.Citations) != 3 {
		t.Errorf("expected 3 citations, got %d", len(result.Citations))
	}
}

// readFailStore lists a record it cannot read.
type readFailStore struct{}

func (readFailStore) List(context.Context) ([]string, error) { return []string{"acme"}, nil }
func (readFailStore) Read(context.Context, string) (string, error) {
	return "", errors.New("permission denied")
}

func TestRunReportsReadFailureAsLoadFailed(t *testing.T) {
	p := New(happyClient(), readFailStore{}, Options{MaxWords: 150})

	_, err := p.Run(context.Background(), minimalJob())
	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pipeErr.Kind != KindLoadFailed {
		t.Errorf("kind = %s, want %s", pipeErr.Kind, KindLoadFailed)
	}
}

func TestRunFailsWithoutRoleRecords(t *testing.T) {
	p := New(happyClient(), &corpus.MapStore{}, Options{MaxWords: 150})

	_, err := p.Run(context.Background(), minimalJob())
	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pipeErr.Kind != KindNoRoleRecords {
		t.Errorf("kind = %s, want %s", pipeErr.Kind, KindNoRoleRecords)
	}
}

func TestRunFailsWhenAllRolesFail(t *testing.T) {
	client := &fakeClient{generate: "not json", header: headerResponse, grade: gradeResponse}
	p := New(client, minimalStore(), Options{MaxWords: 150})

	_, err := p.Run(context.Background(), minimalJob())
	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pipeErr.Kind != KindAllRolesFailed {
		t.Errorf("kind = %s, want %s", pipeErr.Kind, KindAllRolesFailed)
	}
}

func TestRunDegradesOnHeaderFailure(t *testing.T) {
	client := &fakeClient{generate: generateResponse, header: "not json", grade: gradeResponse}
	p := New(client, minimalStore(), Options{
		MinWords:           0,
		MaxWords:           150,
		HeaderReserveWords: 10,
	})

	result, err := p.Run(context.Background(), minimalJob())
	if err != nil {
		t.Fatalf("header failure must degrade, not abort: %v", err)
	}

	var degraded bool
	for _, w := range result.Warnings {
		if w == types.WarnHeaderDegraded {
			degraded = true
		}
	}
	if !degraded {
		t.Errorf("expected %s warning, got %v", types.WarnHeaderDegraded, result.Warnings)
	}
	if !strings.Contains(result.Document, "Senior Engineer at Acme Corp.") {
		t.Errorf("fallback header missing:\n%s", result.Document)
	}
}

func TestRunDegradesOnGradingFailure(t *testing.T) {
	client := &fakeClient{generate: generateResponse, header: headerResponse, grade: "not json"}
	p := New(client, minimalStore(), Options{
		MinWords:           80,
		MaxWords:           150,
		HeaderReserveWords: 70,
	})

	result, err := p.Run(context.Background(), minimalJob())
	if err != nil {
		t.Fatalf("grading failure must degrade, not abort: %v", err)
	}
	if result.Grade != nil {
		t.Error("no grading pass succeeded; result must not carry a grade")
	}

	var flagged bool
	for _, w := range result.Warnings {
		if w == types.WarnGradeBelowThreshold {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("expected %s warning, got %v", types.WarnGradeBelowThreshold, result.Warnings)
	}
	if !strings.Contains(result.Document, "cutting costs 30%") {
		t.Error("document should still be returned without a grade")
	}
}

func TestRenderPlainText(t *testing.T) {
	hdr := &types.HeaderSection{
		Summary: "An engineer with *markdown* habits.",
		Skills: []types.SkillCategory{
			{Category: "Engineering", Skills: []string{"Go", "SQL"}},
		},
	}
	doc := &types.StitchedDocument{
		Sections: []types.RoleSection{{
			RoleID: "acme", Employer: "Acme Corp", Title: "Engineer", Period: "2019 - 2022",
			Bullets: []types.CandidateBullet{
				{ID: "acme-b01", Text: "Shipped `critical` feature"},
			},
		}},
	}

	text := Render(hdr, doc)
	for _, forbidden := range []string{"*", "`", "#", "_"} {
		if strings.Contains(text, forbidden) {
			t.Errorf("markup %q leaked into plain text:\n%s", forbidden, text)
		}
	}
	for _, want := range []string{"PROFILE", "SKILLS", "EXPERIENCE", "Engineering: Go, SQL", "- Shipped critical feature"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in rendered output:\n%s", want, text)
		}
	}
}

func TestCitationsMapBulletsToSources(t *testing.T) {
	roles := []*types.RoleRecord{{
		ID:           "acme",
		Achievements: []string{"Led migration to new platform, cut costs 30%", "Mentored 3 engineers"},
	}}
	doc := &types.StitchedDocument{
		Sections: []types.RoleSection{{
			RoleID: "acme",
			Bullets: []types.CandidateBullet{
				{ID: "acme-b01", RoleID: "acme", SourceAchievementRef: 1},
			},
		}},
	}

	cites := citations(doc, roles)
	if len(cites) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(cites))
	}
	if cites[0].Achievement != "Mentored 3 engineers" {
		t.Errorf("citation resolved to %q", cites[0].Achievement)
	}
}
