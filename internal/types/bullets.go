// Package types provides type definitions for structured data used throughout the cv-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// CandidateBullet represents a single generated claim about a role.
// SourceAchievementRef points into the owning RoleRecord's achievement list and
// is the anchor for all grounding checks.
type CandidateBullet struct {
	ID                   string   `json:"id"`
	RoleID               string   `json:"role_id"`
	Text                 string   `json:"text"`
	SourceAchievementRef int      `json:"source_achievement_ref"`
	Metric               string   `json:"metric,omitempty"`
	MatchedKeyword       string   `json:"matched_keyword,omitempty"`
	MatchedPainPoint     string   `json:"matched_pain_point,omitempty"`
	BoostScore           float64  `json:"boost_score"`
	ReviewFlags          []string `json:"review_flags,omitempty"`
}

// RejectedBullet pairs a rejected candidate with the reason it failed QA.
type RejectedBullet struct {
	Bullet CandidateBullet `json:"bullet"`
	Reason string          `json:"reason"`
}

// RoleBulletSet holds the QA partition for one role. Only Accepted bullets may
// leave this stage; Rejected bullets are kept for audit.
type RoleBulletSet struct {
	RoleID   string            `json:"role_id"`
	Accepted []CandidateBullet `json:"accepted"`
	Rejected []RejectedBullet  `json:"rejected,omitempty"`
	Error    string            `json:"error,omitempty"` // recorded generation failure, role skipped
}

// Failed reports whether the role produced no usable bullets.
func (s *RoleBulletSet) Failed() bool {
	return len(s.Accepted) == 0
}
