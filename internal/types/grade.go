// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// DimensionScore is one rubric dimension's score in [0,1].
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
}

// GradeFlag references a specific section, bullet, or header sentence that the
// grader wants revised.
type GradeFlag struct {
	Section  string `json:"section"`             // role ID, or "header"
	BulletID string `json:"bullet_id,omitempty"` // set when a specific bullet is flagged
	Reason   string `json:"reason"`
}

// GradeResult is the quality assessment of the full document. Overall is the
// weighted sum of dimension scores under the named rubric version.
type GradeResult struct {
	RubricVersion string           `json:"rubric_version"`
	Dimensions    []DimensionScore `json:"dimensions"`
	Overall       float64          `json:"overall"`
	Flags         []GradeFlag      `json:"flags,omitempty"`
}

// FlaggedRoles returns the distinct role IDs with at least one flag.
func (g *GradeResult) FlaggedRoles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range g.Flags {
		if f.Section == "" || f.Section == SectionHeader {
			continue
		}
		if !seen[f.Section] {
			seen[f.Section] = true
			out = append(out, f.Section)
		}
	}
	return out
}

// HeaderFlagged reports whether any flag targets the header section.
func (g *GradeResult) HeaderFlagged() bool {
	for _, f := range g.Flags {
		if f.Section == SectionHeader {
			return true
		}
	}
	return false
}

// SectionHeader is the GradeFlag section name for the profile header.
const SectionHeader = "header"
