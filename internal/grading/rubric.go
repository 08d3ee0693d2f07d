// Package grading scores an assembled document against a weighted rubric and
// flags sections that need revision. Dimension weights are policy, not
// mechanism, so rubrics load from JSON rather than being hard-coded.
package grading

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dimension is one named quality axis with its weight in the overall score.
type Dimension struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Rubric is a versioned set of weighted dimensions plus the acceptance
// threshold for the overall score.
type Rubric struct {
	Version    string      `json:"version"`
	Threshold  float64     `json:"threshold"`
	Dimensions []Dimension `json:"dimensions"`
}

// DefaultRubric returns the built-in rubric.
func DefaultRubric() *Rubric {
	return &Rubric{
		Version:   "v1",
		Threshold: 0.75,
		Dimensions: []Dimension{
			{Name: "specificity", Weight: 0.25, Description: "Bullets state concrete actions and outcomes, not generic duties"},
			{Name: "keyword_coverage", Weight: 0.20, Description: "The job's keywords and pain points are addressed"},
			{Name: "grounding", Weight: 0.25, Description: "Every claim is plausible given the evidence; nothing reads invented"},
			{Name: "conciseness", Weight: 0.15, Description: "No filler; every word earns its place"},
			{Name: "tone", Weight: 0.15, Description: "Confident, professional, consistent voice throughout"},
		},
	}
}

// LoadRubric reads a rubric from a JSON file, validating weights and version.
func LoadRubric(path string) (*Rubric, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rubric: %w", err)
	}
	defer f.Close()
	return ParseRubric(f)
}

// ParseRubric decodes and validates a rubric from a reader.
func ParseRubric(r io.Reader) (*Rubric, error) {
	var rubric Rubric
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rubric); err != nil {
		return nil, fmt.Errorf("decoding rubric: %w", err)
	}
	if err := rubric.validate(); err != nil {
		return nil, err
	}
	return &rubric, nil
}

func (r *Rubric) validate() error {
	if strings.TrimSpace(r.Version) == "" {
		return fmt.Errorf("rubric version is required")
	}
	if r.Threshold <= 0 || r.Threshold > 1 {
		return fmt.Errorf("rubric threshold %f outside (0,1]", r.Threshold)
	}
	if len(r.Dimensions) == 0 {
		return fmt.Errorf("rubric has no dimensions")
	}

	total := 0.0
	seen := make(map[string]bool)
	for _, d := range r.Dimensions {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("rubric dimension with empty name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate rubric dimension %q", d.Name)
		}
		seen[d.Name] = true
		if d.Weight <= 0 {
			return fmt.Errorf("dimension %q has non-positive weight", d.Name)
		}
		total += d.Weight
	}
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("dimension weights sum to %f, want 1.0", total)
	}
	return nil
}

// Overall computes the weighted sum of the given scores under this rubric.
// Missing dimensions score zero; unknown dimensions are ignored.
func (r *Rubric) Overall(scores map[string]float64) float64 {
	total := 0.0
	for _, d := range r.Dimensions {
		total += d.Weight * clampScore(scores[d.Name])
	}
	return total
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// promptDimensions renders the dimension list for the grading prompt.
func (r *Rubric) promptDimensions() string {
	var lines []string
	for _, d := range r.Dimensions {
		lines = append(lines, fmt.Sprintf("- %s (weight %.2f): %s", d.Name, d.Weight, d.Description))
	}
	return strings.Join(lines, "\n")
}
