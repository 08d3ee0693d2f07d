package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/llm"
	"github.com/jonathan/cv-pipeline/internal/prompts"
	"github.com/jonathan/cv-pipeline/internal/retry"
	"github.com/jonathan/cv-pipeline/internal/schemas"
	"github.com/jonathan/cv-pipeline/internal/types"
)

const defaultSchemaAttempts = 3

// GradeError represents a grading failure after retries.
type GradeError struct {
	Message string
	Cause   error
}

func (e *GradeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("grade error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("grade error: %s", e.Message)
}

func (e *GradeError) Unwrap() error {
	return e.Cause
}

// Grader scores full documents against its rubric. The advanced model tier is
// used: grading quality gates the whole revision loop.
type Grader struct {
	Client         llm.Client
	Retry          retry.Policy
	Rubric         *Rubric
	SchemaAttempts int
}

// NewGrader creates a grader with the default rubric.
func NewGrader(client llm.Client, policy retry.Policy) *Grader {
	return &Grader{
		Client:         client,
		Retry:          policy,
		Rubric:         DefaultRubric(),
		SchemaAttempts: defaultSchemaAttempts,
	}
}

// gradeResponse mirrors the JSON structure the model is instructed to return.
type gradeResponse struct {
	Dimensions []struct {
		Dimension string  `json:"dimension"`
		Score     float64 `json:"score"`
	} `json:"dimensions"`
	Flags []struct {
		Section  string `json:"section"`
		BulletID string `json:"bullet_id"`
		Reason   string `json:"reason"`
	} `json:"flags"`
}

// Grade scores the full document (header plus stitched body) and returns
// per-dimension scores, the weighted overall score, and revision flags.
func (g *Grader) Grade(ctx context.Context, doc *types.StitchedDocument, hdr *types.HeaderSection) (*types.GradeResult, error) {
	rubric := g.Rubric
	if rubric == nil {
		rubric = DefaultRubric()
	}
	attempts := g.SchemaAttempts
	if attempts <= 0 {
		attempts = defaultSchemaAttempts
	}

	intro := prompts.Format(prompts.MustGet("grading.json", "grade-document-intro"), map[string]string{
		"RubricVersion": rubric.Version,
		"Dimensions":    rubric.promptDimensions(),
		"Document":      renderForGrading(doc, hdr),
	})
	format := prompts.MustGet("grading.json", "grade-document-format")

	strictReason := ""
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := intro + format
		if strictReason != "" {
			prompt += prompts.Format(prompts.MustGet("grading.json", "grade-document-strict"), map[string]string{
				"Reason": strictReason,
			})
		}

		var raw string
		callErr := g.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			raw, err = g.Client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
			return err
		})
		if callErr != nil {
			return nil, &GradeError{Message: "grading document", Cause: callErr}
		}

		result, err := g.decode(rubric, raw)
		if err == nil {
			return result, nil
		}

		lastErr = err
		strictReason = err.Error()
	}

	return nil, &GradeError{
		Message: fmt.Sprintf("grade never matched the expected structure after %d attempts", attempts),
		Cause:   lastErr,
	}
}

// decode validates the raw grade against the embedded schema and checks that
// every rubric dimension is scored exactly once.
func (g *Grader) decode(rubric *Rubric, raw string) (*types.GradeResult, error) {
	cleaned := llm.CleanJSONBlock(raw)

	if err := schemas.Validate("grade_result.json", cleaned); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var resp gradeResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	known := make(map[string]bool, len(rubric.Dimensions))
	for _, d := range rubric.Dimensions {
		known[d.Name] = false
	}

	scores := make(map[string]float64, len(resp.Dimensions))
	for _, d := range resp.Dimensions {
		scored, ok := known[d.Dimension]
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", d.Dimension)
		}
		if scored {
			return nil, fmt.Errorf("dimension %q scored twice", d.Dimension)
		}
		known[d.Dimension] = true
		scores[d.Dimension] = clampScore(d.Score)
	}
	for name, scored := range known {
		if !scored {
			return nil, fmt.Errorf("dimension %q not scored", name)
		}
	}

	result := &types.GradeResult{
		RubricVersion: rubric.Version,
		Overall:       rubric.Overall(scores),
	}
	for _, d := range rubric.Dimensions {
		result.Dimensions = append(result.Dimensions, types.DimensionScore{
			Dimension: d.Name,
			Score:     scores[d.Name],
		})
	}
	for _, f := range resp.Flags {
		result.Flags = append(result.Flags, types.GradeFlag{
			Section:  f.Section,
			BulletID: f.BulletID,
			Reason:   f.Reason,
		})
	}
	return result, nil
}

// renderForGrading produces the document text the model grades. Role and
// bullet IDs are included in brackets so flags can reference them precisely.
func renderForGrading(doc *types.StitchedDocument, hdr *types.HeaderSection) string {
	var sb strings.Builder

	if hdr != nil {
		sb.WriteString("[header]\n")
		sb.WriteString(hdr.Summary)
		sb.WriteString("\n")
		for _, cat := range hdr.Skills {
			fmt.Fprintf(&sb, "%s: %s\n", cat.Category, strings.Join(cat.Skills, ", "))
		}
		sb.WriteString("\n")
	}

	for _, sec := range doc.Sections {
		fmt.Fprintf(&sb, "[%s] %s, %s (%s)\n", sec.RoleID, sec.Title, sec.Employer, sec.Period)
		for _, b := range sec.Bullets {
			fmt.Fprintf(&sb, "- [%s] %s\n", b.ID, b.Text)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
