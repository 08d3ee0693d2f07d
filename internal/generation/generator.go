package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/llm"
	"github.com/jonathan/cv-pipeline/internal/retry"
	"github.com/jonathan/cv-pipeline/internal/schemas"
	"github.com/jonathan/cv-pipeline/internal/types"
)

const (
	defaultMinBullets     = 3
	defaultMaxBullets     = 5
	defaultMaxWords       = 35
	defaultSchemaAttempts = 3
)

// Generator produces candidate bullets for one role per call. Transient model
// failures are retried per Retry; malformed output is retried with
// progressively stricter formatting instructions up to SchemaAttempts.
type Generator struct {
	Client         llm.Client
	Retry          retry.Policy
	MinBullets     int
	MaxBullets     int
	MaxWords       int
	SchemaAttempts int
}

// NewGenerator creates a generator with defaults applied.
func NewGenerator(client llm.Client, policy retry.Policy) *Generator {
	return &Generator{
		Client:         client,
		Retry:          policy,
		MinBullets:     defaultMinBullets,
		MaxBullets:     defaultMaxBullets,
		MaxWords:       defaultMaxWords,
		SchemaAttempts: defaultSchemaAttempts,
	}
}

// bulletResponse mirrors the JSON structure the model is instructed to return.
type bulletResponse struct {
	Bullets []struct {
		Text                 string `json:"text"`
		SourceAchievementRef int    `json:"source_achievement_ref"`
		Metric               string `json:"metric"`
		MatchedKeyword       string `json:"matched_keyword"`
		MatchedPainPoint     string `json:"matched_pain_point"`
	} `json:"bullets"`
}

// Generate produces candidate bullets for one role. The model is instructed to
// draw exclusively on the role's achievements; each bullet records its source
// achievement and targeted keyword/pain point for later validation and audit.
func (g *Generator) Generate(ctx context.Context, role *types.RoleRecord, job *types.JobContext) ([]types.CandidateBullet, error) {
	minBullets, maxBullets := g.bulletRange(len(role.Achievements))
	maxWords := g.MaxWords
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}
	attempts := g.SchemaAttempts
	if attempts <= 0 {
		attempts = defaultSchemaAttempts
	}

	strictReason := ""
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := buildPrompt(role, job, minBullets, maxBullets, maxWords, strictReason)

		var raw string
		callErr := g.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			raw, err = g.Client.GenerateJSON(ctx, prompt, llm.TierStandard)
			return err
		})
		if callErr != nil {
			return nil, &APICallError{
				Message: fmt.Sprintf("generating bullets for role %s", role.ID),
				Cause:   callErr,
			}
		}

		bullets, err := g.decode(role, job, raw, minBullets, maxBullets)
		if err == nil {
			return bullets, nil
		}

		lastErr = err
		strictReason = err.Error()
	}

	return nil, &SchemaError{
		Message:  fmt.Sprintf("bullets for role %s never matched the expected structure", role.ID),
		Attempts: attempts,
		Cause:    lastErr,
	}
}

// bulletRange clamps the requested count range to what the role can support.
func (g *Generator) bulletRange(achievements int) (int, int) {
	minBullets := g.MinBullets
	if minBullets <= 0 {
		minBullets = defaultMinBullets
	}
	maxBullets := g.MaxBullets
	if maxBullets < minBullets {
		maxBullets = defaultMaxBullets
	}
	if minBullets > achievements {
		minBullets = achievements
	}
	return minBullets, maxBullets
}

// decode validates raw model output against the embedded schema and converts
// it into CandidateBullets with IDs and boost scores assigned.
func (g *Generator) decode(role *types.RoleRecord, job *types.JobContext, raw string, minBullets, maxBullets int) ([]types.CandidateBullet, error) {
	cleaned := llm.CleanJSONBlock(raw)

	if err := schemas.Validate("candidate_bullets.json", cleaned); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var resp bulletResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(resp.Bullets) < minBullets || len(resp.Bullets) > maxBullets {
		return nil, fmt.Errorf("expected between %d and %d bullets, got %d", minBullets, maxBullets, len(resp.Bullets))
	}

	bullets := make([]types.CandidateBullet, 0, len(resp.Bullets))
	for i, b := range resp.Bullets {
		if b.SourceAchievementRef >= len(role.Achievements) {
			return nil, fmt.Errorf("bullet %d cites achievement %d, role has %d", i, b.SourceAchievementRef, len(role.Achievements))
		}

		bullet := types.CandidateBullet{
			ID:                   fmt.Sprintf("%s-b%02d", role.ID, i+1),
			RoleID:               role.ID,
			Text:                 strings.TrimSpace(b.Text),
			SourceAchievementRef: b.SourceAchievementRef,
			Metric:               strings.TrimSpace(b.Metric),
			MatchedKeyword:       strings.TrimSpace(b.MatchedKeyword),
			MatchedPainPoint:     strings.TrimSpace(b.MatchedPainPoint),
		}
		bullet.BoostScore = boostScore(&bullet, role, job)
		bullets = append(bullets, bullet)
	}

	return bullets, nil
}

// boostScore combines annotation boosts with competency weights for the
// matched keyword. It biases later selection, never content.
func boostScore(bullet *types.CandidateBullet, role *types.RoleRecord, job *types.JobContext) float64 {
	if job == nil {
		return 0
	}

	score := job.BoostFor(role.ID, bullet.SourceAchievementRef)
	if bullet.MatchedKeyword != "" {
		score += 1.0
		if w, ok := job.CompetencyWeights[strings.ToLower(bullet.MatchedKeyword)]; ok {
			score += w
		}
	}
	if bullet.MatchedPainPoint != "" {
		score += 0.5
	}
	return score
}
