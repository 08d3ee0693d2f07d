package generation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/prompts"
	"github.com/jonathan/cv-pipeline/internal/types"
)

// buildPrompt assembles the bullet-generation prompt for one role. When
// strictReason is non-empty a rejection notice with tightened formatting
// instructions is appended, escalating on each schema retry.
func buildPrompt(role *types.RoleRecord, job *types.JobContext, minBullets, maxBullets, maxWords int, strictReason string) string {
	var sb strings.Builder

	intro := prompts.MustGet("generation.json", "generate-bullets-intro")
	sb.WriteString(prompts.Format(intro, map[string]string{
		"Employer":     role.Employer,
		"Title":        role.Title,
		"Period":       role.Period,
		"Achievements": numberedAchievements(role),
	}))

	if job != nil {
		contextTmpl := prompts.MustGet("generation.json", "generate-bullets-context")
		sb.WriteString(prompts.Format(contextTmpl, map[string]string{
			"Keywords":     joinOr(job.Keywords, "none specified"),
			"PainPoints":   joinOr(job.PainPoints, "none specified"),
			"Competencies": formatCompetencies(job.CompetencyWeights),
			"BoostNote":    boostNote(role, job),
		}))
	}

	format := prompts.MustGet("generation.json", "generate-bullets-format")
	sb.WriteString(prompts.Format(format, map[string]string{
		"MinBullets": fmt.Sprintf("%d", minBullets),
		"MaxBullets": fmt.Sprintf("%d", maxBullets),
		"MaxWords":   fmt.Sprintf("%d", maxWords),
	}))

	if strictReason != "" {
		strict := prompts.MustGet("generation.json", "generate-bullets-strict")
		sb.WriteString(prompts.Format(strict, map[string]string{
			"Reason": strictReason,
		}))
	}

	return sb.String()
}

func numberedAchievements(role *types.RoleRecord) string {
	var lines []string
	for i, a := range role.Achievements {
		lines = append(lines, fmt.Sprintf("%d. %s", i, a))
	}
	return strings.Join(lines, "\n")
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

// formatCompetencies renders weights in descending order so the most important
// competencies lead the prompt.
func formatCompetencies(weights map[string]float64) string {
	if len(weights) == 0 {
		return "none specified"
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	var parts []string
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%.1f)", name, weights[name]))
	}
	return strings.Join(parts, ", ")
}

// boostNote lists achievements annotated as core strengths for this role.
func boostNote(role *types.RoleRecord, job *types.JobContext) string {
	var boosted []string
	for _, b := range job.Boosts {
		if b.RoleID != role.ID || b.Boost <= 0 {
			continue
		}
		if a := role.Achievement(b.AchievementRef); a != "" {
			boosted = append(boosted, fmt.Sprintf("CORE STRENGTH %d. %s", b.AchievementRef, a))
		}
	}
	if len(boosted) == 0 {
		return ""
	}

	tmpl := prompts.MustGet("generation.json", "generate-bullets-boost")
	return prompts.Format(tmpl, map[string]string{
		"Boosted": strings.Join(boosted, "\n"),
	})
}
