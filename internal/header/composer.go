// Package header composes the profile summary and categorized skills for an
// assembled CV body. Nothing may enter the header that is not traceable to an
// accepted bullet or a raw achievement.
package header

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

// ComposeError represents a header composition failure after retries.
type ComposeError struct {
	Message string
	Cause   error
}

func (e *ComposeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("header error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("header error: %s", e.Message)
}

func (e *ComposeError) Unwrap() error {
	return e.Cause
}

// Composer produces and revises header sections.
type Composer struct {
	Client         llm.Client
	Retry          retry.Policy
	SchemaAttempts int
}

// NewComposer creates a composer with defaults applied.
func NewComposer(client llm.Client, policy retry.Policy) *Composer {
	return &Composer{
		Client:         client,
		Retry:          policy,
		SchemaAttempts: defaultSchemaAttempts,
	}
}

// Compose writes a header for the stitched body. The model output is schema
// validated, then passed through the grounding filter so unsupported skills
// and claims never reach the document.
func (c *Composer) Compose(ctx context.Context, doc *types.StitchedDocument, roles []*types.RoleRecord) (*types.HeaderSection, error) {
	intro := prompts.Format(prompts.MustGet("header.json", "compose-header-intro"), map[string]string{
		"Body":   bodyText(doc),
		"Corpus": corpusText(roles),
	})
	return c.generate(ctx, intro, doc, roles)
}

// Revise rewrites a flagged header. Only the flagged claims should change;
// the same schema and grounding enforcement applies to the result.
func (c *Composer) Revise(ctx context.Context, current *types.HeaderSection, flags []types.GradeFlag, doc *types.StitchedDocument, roles []*types.RoleRecord) (*types.HeaderSection, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, &ComposeError{Message: "encoding current header", Cause: err}
	}

	intro := prompts.Format(prompts.MustGet("header.json", "revise-header"), map[string]string{
		"Flags":  flagText(flags),
		"Header": string(currentJSON),
	})
	return c.generate(ctx, intro, doc, roles)
}

func (c *Composer) generate(ctx context.Context, intro string, doc *types.StitchedDocument, roles []*types.RoleRecord) (*types.HeaderSection, error) {
	attempts := c.SchemaAttempts
	if attempts <= 0 {
		attempts = defaultSchemaAttempts
	}
	format := prompts.MustGet("header.json", "compose-header-format")

	strictReason := ""
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := intro + format
		if strictReason != "" {
			prompt += prompts.Format(prompts.MustGet("header.json", "compose-header-strict"), map[string]string{
				"Reason": strictReason,
			})
		}

		var raw string
		callErr := c.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			raw, err = c.Client.GenerateJSON(ctx, prompt, llm.TierStandard)
			return err
		})
		if callErr != nil {
			return nil, &ComposeError{Message: "composing header", Cause: callErr}
		}

		section, err := c.decode(raw)
		if err == nil {
			return newGrounding(doc, roles).filter(section), nil
		}

		lastErr = err
		strictReason = err.Error()
	}

	return nil, &ComposeError{
		Message: fmt.Sprintf("header never matched the expected structure after %d attempts", attempts),
		Cause:   lastErr,
	}
}

func (c *Composer) decode(raw string) (*types.HeaderSection, error) {
	cleaned := llm.CleanJSONBlock(raw)

	if err := schemas.Validate("header_section.json", cleaned); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var section types.HeaderSection
	if err := json.Unmarshal([]byte(cleaned), &section); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if strings.TrimSpace(section.Summary) == "" {
		return nil, fmt.Errorf("summary is empty")
	}
	return &section, nil
}

func bodyText(doc *types.StitchedDocument) string {
	var sb strings.Builder
	for _, sec := range doc.Sections {
		fmt.Fprintf(&sb, "%s, %s (%s)\n", sec.Title, sec.Employer, sec.Period)
		for _, b := range sec.Bullets {
			fmt.Fprintf(&sb, "- %s\n", b.Text)
		}
	}
	return sb.String()
}

func corpusText(roles []*types.RoleRecord) string {
	var sb strings.Builder
	for _, role := range roles {
		for _, a := range role.Achievements {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}
	return sb.String()
}

func flagText(flags []types.GradeFlag) string {
	var lines []string
	for _, f := range flags {
		if f.Section != types.SectionHeader {
			continue
		}
		lines = append(lines, "- "+f.Reason)
	}
	if len(lines) == 0 {
		return "- general quality concerns"
	}
	return strings.Join(lines, "\n")
}
