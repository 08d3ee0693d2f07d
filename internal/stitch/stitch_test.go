package stitch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/jonathan/cv-pipeline/internal/types"
)

func TestKeyNormalization(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"Led the migration to a new platform", "Led migration to new platform"},
		{"Cut costs by 30%", "cut costs 30%"},
		{"Mentored 3 engineers.", "Mentored 3 engineers"},
	}
	for _, tc := range cases {
		if Key(tc.a) != Key(tc.b) {
			t.Errorf("keys differ: %q=%q vs %q=%q", tc.a, Key(tc.a), tc.b, Key(tc.b))
		}
	}

	if Key("Led platform migration") == Key("Mentored 3 engineers") {
		t.Error("distinct content must not collide")
	}
}

func TestSimilarity(t *testing.T) {
	a := Key("Reduced deployment time by 40% with CI automation")
	b := Key("Reduced deployment time 40% through CI automation")
	if sim := Similarity(a, b); sim < 0.8 {
		t.Errorf("near-identical bullets scored %f", sim)
	}

	c := Key("Mentored 3 engineers")
	if sim := Similarity(a, c); sim > 0.2 {
		t.Errorf("unrelated bullets scored %f", sim)
	}

	if Similarity(a, a) != 1 {
		t.Error("identical keys must score 1")
	}
}

func bullet(id, roleID, text string, boost float64) types.CandidateBullet {
	return types.CandidateBullet{ID: id, RoleID: roleID, Text: text, BoostScore: boost}
}

func twoRoleFixture() ([]*types.RoleRecord, map[string]*types.RoleBulletSet) {
	roles := []*types.RoleRecord{
		{ID: "beta", Employer: "Beta Inc", Title: "Staff Engineer", Period: "2022 - present", Recency: 0},
		{ID: "acme", Employer: "Acme Corp", Title: "Senior Engineer", Period: "2019 - 2022", Recency: 1},
	}
	sets := map[string]*types.RoleBulletSet{
		"beta": {RoleID: "beta", Accepted: []types.CandidateBullet{
			bullet("beta-b01", "beta", "Led migration to new billing platform, cutting costs 30%", 2.0),
			bullet("beta-b02", "beta", "Scaled ingestion service to 5k requests per second", 1.5),
		}},
		"acme": {RoleID: "acme", Accepted: []types.CandidateBullet{
			bullet("acme-b01", "acme", "Led the migration to a new billing platform, cutting costs 30%", 3.0),
			bullet("acme-b02", "acme", "Mentored 3 engineers through promotion cycles", 1.0),
			bullet("acme-b03", "acme", "Rebuilt alerting to cut incident response time 50%", 0.5),
		}},
	}
	return roles, sets
}

func TestStitchDropsCrossRoleDuplicate(t *testing.T) {
	roles, sets := twoRoleFixture()
	s := New(Options{MinWords: 0, MaxWords: 200, HeaderReserveWords: 0})

	doc, warnings, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	ids := make(map[string]bool)
	for _, b := range doc.Bullets() {
		ids[b.ID] = true
	}
	if !ids["beta-b01"] {
		t.Error("more recent role's bullet should survive the collision")
	}
	if ids["acme-b01"] {
		t.Error("older role's duplicate should be discarded despite higher boost")
	}
	if !ids["acme-b02"] || !ids["acme-b03"] {
		t.Error("non-colliding bullets from the older role should survive")
	}
}

func TestStitchIsIdempotent(t *testing.T) {
	roles, sets := twoRoleFixture()
	s := New(Options{MinWords: 0, MaxWords: 120, HeaderReserveWords: 0})

	first, _, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, _, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("runs diverged:\n%s\n%s", a, b)
	}
}

func TestStitchOrdersSectionsByRecency(t *testing.T) {
	roles, sets := twoRoleFixture()
	// Reverse the input order: output must not depend on arrival order.
	roles[0], roles[1] = roles[1], roles[0]
	s := New(Options{MaxWords: 200, HeaderReserveWords: 0})

	doc, _, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].RoleID != "beta" || doc.Sections[1].RoleID != "acme" {
		t.Errorf("sections out of recency order: %s, %s", doc.Sections[0].RoleID, doc.Sections[1].RoleID)
	}
}

func TestStitchTrimsToBudget(t *testing.T) {
	roles := []*types.RoleRecord{
		{ID: "acme", Employer: "Acme Corp", Title: "Engineer", Period: "2019 - 2022", Recency: 0},
	}
	var accepted []types.CandidateBullet
	for i := 0; i < 8; i++ {
		accepted = append(accepted, bullet(
			fmt.Sprintf("acme-b%02d", i+1), "acme",
			fmt.Sprintf("Delivered project number %d across four separate product teams successfully", i),
			float64(8-i)))
	}
	sets := map[string]*types.RoleBulletSet{"acme": {RoleID: "acme", Accepted: accepted}}

	s := New(Options{MinWords: 10, MaxWords: 50, HeaderReserveWords: 0})
	doc, warnings, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("attainable budget should not warn: %v", warnings)
	}
	if doc.WordCount > 50 || doc.WordCount < 10 {
		t.Errorf("word count %d outside [10,50]", doc.WordCount)
	}

	// Lowest-boost bullets go first; survivors are the highest-boost prefix.
	for _, b := range doc.Bullets() {
		if b.BoostScore < float64(8-len(doc.Bullets())) {
			t.Errorf("low-boost bullet %s survived while higher-boost ones should fill the budget", b.ID)
		}
	}
}

func TestStitchWarnsWhenBudgetUnattainable(t *testing.T) {
	roles := []*types.RoleRecord{
		{ID: "acme", Employer: "Acme Corp", Title: "Engineer", Period: "2019 - 2022", Recency: 0},
	}
	sets := map[string]*types.RoleBulletSet{"acme": {RoleID: "acme", Accepted: []types.CandidateBullet{
		bullet("acme-b01", "acme", "Shipped one feature", 1.0),
	}}}

	s := New(Options{MinWords: 100, MaxWords: 150, HeaderReserveWords: 0})
	doc, warnings, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0] != types.WarnBudgetUnattainable {
		t.Fatalf("expected %s warning, got %v", types.WarnBudgetUnattainable, warnings)
	}
	if len(doc.Bullets()) != 1 {
		t.Error("closest attainable document should still be returned")
	}
}

func TestStitchTopUpFillsShortfall(t *testing.T) {
	roles := []*types.RoleRecord{
		{ID: "acme", Employer: "Acme Corp", Title: "Engineer", Period: "2019 - 2022", Recency: 0},
	}
	sets := map[string]*types.RoleBulletSet{"acme": {RoleID: "acme", Accepted: []types.CandidateBullet{
		bullet("acme-b01", "acme", "Led migration to new platform, cutting infrastructure costs 30%", 2.0),
	}}}

	calls := 0
	topUp := func(_ context.Context, role *types.RoleRecord) ([]types.CandidateBullet, error) {
		calls++
		return []types.CandidateBullet{
			bullet("acme-b02", role.ID, "Mentored 3 engineers through promotion to senior level", 1.0),
		}, nil
	}

	s := New(Options{MinWords: 15, MaxWords: 60, HeaderReserveWords: 0, MaxTopUps: 2, TopUp: topUp})
	doc, warnings, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if calls == 0 {
		t.Fatal("top-up should be invoked when under the minimum")
	}
	if len(doc.Bullets()) != 2 {
		t.Fatalf("expected 2 bullets after top-up, got %d", len(doc.Bullets()))
	}
	if len(warnings) != 0 {
		t.Errorf("budget reached after top-up, no warning expected: %v", warnings)
	}
	if doc.WordCount < 15 {
		t.Errorf("word count %d still under minimum", doc.WordCount)
	}
}

func TestStitchTopUpDefaultsToOneRound(t *testing.T) {
	roles := []*types.RoleRecord{
		{ID: "acme", Employer: "Acme Corp", Title: "Engineer", Period: "2019 - 2022", Recency: 0},
	}
	sets := map[string]*types.RoleBulletSet{"acme": {RoleID: "acme", Accepted: []types.CandidateBullet{
		bullet("acme-b01", "acme", "Led migration to new platform, cutting infrastructure costs 30%", 2.0),
	}}}

	calls := 0
	topUp := func(_ context.Context, role *types.RoleRecord) ([]types.CandidateBullet, error) {
		calls++
		return []types.CandidateBullet{
			bullet("acme-b02", role.ID, "Mentored 3 engineers through promotion to senior level", 1.0),
		}, nil
	}

	// No MaxTopUps set: a wired callback still gets its default round.
	s := New(Options{MinWords: 15, MaxWords: 60, TopUp: topUp})
	doc, warnings, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if calls == 0 {
		t.Fatal("top-up must run by default when the body is short")
	}
	if len(doc.Bullets()) != 2 || len(warnings) != 0 {
		t.Errorf("expected a filled budget, got %d bullets, warnings %v", len(doc.Bullets()), warnings)
	}

	// Negative explicitly disables top-up.
	calls = 0
	off := New(Options{MinWords: 15, MaxWords: 60, MaxTopUps: -1, TopUp: topUp})
	_, warnings, err = off.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if calls != 0 {
		t.Error("negative MaxTopUps must disable top-up")
	}
	if len(warnings) != 1 || warnings[0] != types.WarnBudgetUnattainable {
		t.Errorf("shortfall without top-up should warn, got %v", warnings)
	}
}

func TestStitchSkipsFailedRoles(t *testing.T) {
	roles, sets := twoRoleFixture()
	sets["beta"] = &types.RoleBulletSet{RoleID: "beta", Error: "generation failed"}

	s := New(Options{MaxWords: 200, HeaderReserveWords: 0})
	doc, _, err := s.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].RoleID != "acme" {
		t.Errorf("failed role should be skipped, got %d sections", len(doc.Sections))
	}
	for _, b := range doc.Bullets() {
		if strings.HasPrefix(b.ID, "beta") {
			t.Errorf("bullet %s leaked from failed role", b.ID)
		}
	}
}

func TestStitchNearDuplicateThreshold(t *testing.T) {
	roles, _ := twoRoleFixture()
	sets := map[string]*types.RoleBulletSet{
		"beta": {RoleID: "beta", Accepted: []types.CandidateBullet{
			bullet("beta-b01", "beta", "Reduced deployment time by 40% with automated CI pipelines", 1.0),
		}},
		"acme": {RoleID: "acme", Accepted: []types.CandidateBullet{
			bullet("acme-b01", "acme", "Reduced deployment time 40% with automated CI pipelines and canary releases", 2.0),
		}},
	}

	exact := New(Options{MaxWords: 200, HeaderReserveWords: 0})
	doc, _, err := exact.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(doc.Bullets()) != 2 {
		t.Fatalf("with threshold off only exact collisions drop, got %d bullets", len(doc.Bullets()))
	}

	fuzzy := New(Options{MaxWords: 200, HeaderReserveWords: 0, SimilarityThreshold: 0.75})
	doc, _, err = fuzzy.Stitch(context.Background(), roles, sets)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(doc.Bullets()) != 1 {
		t.Fatalf("near-duplicates should collapse at 0.75, got %d bullets", len(doc.Bullets()))
	}
	if doc.Bullets()[0].ID != "beta-b01" {
		t.Errorf("more recent role should win, kept %s", doc.Bullets()[0].ID)
	}
}
