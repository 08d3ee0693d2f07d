// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Citation maps one included bullet back to its source achievement, sufficient
// for later audit or interview preparation.
type Citation struct {
	BulletID       string `json:"bullet_id"`
	RoleID         string `json:"role_id"`
	AchievementRef int    `json:"achievement_ref"`
	Achievement    string `json:"achievement"`
}

// CVResult is the final pipeline output: the plain-text document plus the
// structured metadata handed to downstream persistence/rendering collaborators.
type CVResult struct {
	Document  string       `json:"document"`
	WordCount int          `json:"word_count"`
	Grade     *GradeResult `json:"grade,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
	Citations []Citation   `json:"citations"`
}
