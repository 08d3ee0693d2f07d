// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// DedupKey is the normalized signature of a bullet's semantic content:
// lower-cased, whitespace-collapsed, stop-word-reduced text. Two bullets with
// equal keys are duplicates regardless of source role.
type DedupKey string

// RoleSection is one role's slice of the assembled document body.
type RoleSection struct {
	RoleID   string            `json:"role_id"`
	Employer string            `json:"employer"`
	Title    string            `json:"title"`
	Period   string            `json:"period"`
	Bullets  []CandidateBullet `json:"bullets"`
}

// StitchedDocument is the assembled body: all roles merged, deduplicated, and
// trimmed to the word budget. The Improver replaces (never mutates) it.
type StitchedDocument struct {
	Sections  []RoleSection `json:"sections"`
	WordCount int           `json:"word_count"`
}

// Bullets returns all included bullets in document order.
func (d *StitchedDocument) Bullets() []CandidateBullet {
	var out []CandidateBullet
	for _, sec := range d.Sections {
		out = append(out, sec.Bullets...)
	}
	return out
}

// SkillCategory groups related skill names under a heading.
type SkillCategory struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}

// HeaderSection is the profile summary plus categorized skills. Every claim in
// it must be traceable to an accepted bullet or a raw achievement.
type HeaderSection struct {
	Summary string          `json:"summary"`
	Skills  []SkillCategory `json:"skills"`
}
