package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleRecordAchievement(t *testing.T) {
	r := &RoleRecord{Achievements: []string{"first", "second"}}

	assert.Equal(t, "first", r.Achievement(0))
	assert.Equal(t, "second", r.Achievement(1))
	assert.Equal(t, "", r.Achievement(2))
	assert.Equal(t, "", r.Achievement(-1))
}

func TestJobContextBoostFor(t *testing.T) {
	job := &JobContext{Boosts: []AnnotationBoost{
		{RoleID: "acme", AchievementRef: 1, Boost: 0.5},
		{RoleID: "beta", AchievementRef: 0, Boost: 0.2},
	}}

	assert.Equal(t, 0.5, job.BoostFor("acme", 1))
	assert.Equal(t, 0.2, job.BoostFor("beta", 0))
	assert.Equal(t, 0.0, job.BoostFor("acme", 0))
	assert.Equal(t, 0.0, job.BoostFor("gamma", 1))
}

func TestGradeResultFlaggedRoles(t *testing.T) {
	g := &GradeResult{Flags: []GradeFlag{
		{Section: "acme", BulletID: "acme-b01", Reason: "vague"},
		{Section: SectionHeader, Reason: "too long"},
		{Section: "acme", Reason: "weak verb"},
		{Section: "beta", Reason: "no metric"},
		{Section: "", Reason: "malformed flag"},
	}}

	assert.Equal(t, []string{"acme", "beta"}, g.FlaggedRoles())
	assert.True(t, g.HeaderFlagged())

	clean := &GradeResult{}
	assert.Empty(t, clean.FlaggedRoles())
	assert.False(t, clean.HeaderFlagged())
}

func TestStitchedDocumentBullets(t *testing.T) {
	doc := &StitchedDocument{Sections: []RoleSection{
		{RoleID: "beta", Bullets: []CandidateBullet{{ID: "beta-b01"}, {ID: "beta-b02"}}},
		{RoleID: "acme", Bullets: []CandidateBullet{{ID: "acme-b01"}}},
	}}

	bullets := doc.Bullets()
	assert.Len(t, bullets, 3)
	assert.Equal(t, "beta-b01", bullets[0].ID)
	assert.Equal(t, "acme-b01", bullets[2].ID)
}
