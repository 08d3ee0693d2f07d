// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RoleRecord represents the source-of-truth achievement text for one employment period.
// Records are loaded once and never mutated; every downstream claim must trace back
// to one of its achievement statements.
type RoleRecord struct {
	ID           string   `json:"id"`
	Employer     string   `json:"employer"`
	Title        string   `json:"title"`
	Period       string   `json:"period"`
	EndYear      int      `json:"end_year,omitempty"`
	Recency      int      `json:"recency"` // 0 = most recent role
	Achievements []string `json:"achievements"`
}

// Achievement returns the achievement statement at ref, or "" if out of range.
func (r *RoleRecord) Achievement(ref int) string {
	if ref < 0 || ref >= len(r.Achievements) {
		return ""
	}
	return r.Achievements[ref]
}

// AnnotationBoost marks one achievement as a core strength, biasing bullet
// selection toward it without inventing new content.
type AnnotationBoost struct {
	RoleID         string  `json:"role_id"`
	AchievementRef int     `json:"achievement_ref"`
	Boost          float64 `json:"boost"`
}

// JobContext carries the target-job signals supplied by upstream collaborators.
type JobContext struct {
	Keywords          []string           `json:"keywords"`
	PainPoints        []string           `json:"pain_points,omitempty"`
	CompetencyWeights map[string]float64 `json:"competency_weights,omitempty"`
	Boosts            []AnnotationBoost  `json:"boosts,omitempty"`
}

// BoostFor returns the annotation boost for a specific achievement, or 0.
func (j *JobContext) BoostFor(roleID string, achievementRef int) float64 {
	for _, b := range j.Boosts {
		if b.RoleID == roleID && b.AchievementRef == achievementRef {
			return b.Boost
		}
	}
	return 0
}
