package qa

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

// Rejection reasons. UNSUPPORTED_METRIC is the hallucination gate; the others
// enforce length and STAR-shape constraints.
const (
	ReasonUnsupportedMetric = "UNSUPPORTED_METRIC"
	ReasonInvalidSourceRef  = "INVALID_SOURCE_REF"
	ReasonEmptyText         = "EMPTY_TEXT"
	ReasonExceedsWordLimit  = "EXCEEDS_WORD_LIMIT"
	ReasonGenericOpening    = "GENERIC_OPENING"
)

// Review flags attached to accepted bullets for grader attention. Flags are
// soft: ambiguous qualitative claims go to the grader, not the reject pile.
const (
	FlagUnverifiedClaim = "UNVERIFIED_CLAIM"
	FlagWeakVerb        = "WEAK_VERB"
)

// Options tunes the validator. Zero values fall back to defaults.
type Options struct {
	MaxWords int // per-bullet word cap, default 35
}

const defaultMaxWords = 35

// genericOpeners are boilerplate openings that fail the STAR-shape check.
var genericOpeners = map[string]bool{
	"responsible": true, "worked": true, "helped": true, "involved": true,
	"assisted": true, "participated": true, "tasked": true, "duties": true,
	"various": true,
}

// strongVerbs is a heuristic list of action verbs; openings outside it that
// don't look like past-tense verbs get a soft WEAK_VERB flag.
var strongVerbs = map[string]bool{
	"achieved": true, "architected": true, "built": true, "created": true,
	"cut": true, "delivered": true, "designed": true, "developed": true,
	"drove": true, "engineered": true, "grew": true, "implemented": true,
	"improved": true, "increased": true, "launched": true, "led": true,
	"mentored": true, "optimized": true, "reduced": true, "scaled": true,
	"shipped": true, "transformed": true,
}

// ValidateBullets partitions candidates into accepted and rejected against
// their role record. The returned set's Accepted bullets are guaranteed to
// carry only metrics present in their cited source achievement.
func ValidateBullets(role *types.RoleRecord, candidates []types.CandidateBullet, opts Options) types.RoleBulletSet {
	maxWords := opts.MaxWords
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}

	set := types.RoleBulletSet{RoleID: role.ID}

	for _, bullet := range candidates {
		if reason := hardReject(role, &bullet, maxWords); reason != "" {
			set.Rejected = append(set.Rejected, types.RejectedBullet{Bullet: bullet, Reason: reason})
			continue
		}

		bullet.ReviewFlags = append(bullet.ReviewFlags, softFlags(role, &bullet)...)
		set.Accepted = append(set.Accepted, bullet)
	}

	return set
}

// hardReject returns a rejection reason, or "" if the bullet passes.
func hardReject(role *types.RoleRecord, bullet *types.CandidateBullet, maxWords int) string {
	text := strings.TrimSpace(bullet.Text)
	if text == "" {
		return ReasonEmptyText
	}

	source := role.Achievement(bullet.SourceAchievementRef)
	if source == "" {
		return ReasonInvalidSourceRef
	}

	for _, token := range ExtractMetrics(text) {
		if !Supports(source, token) {
			return fmt.Sprintf("%s: %q not found in source achievement", ReasonUnsupportedMetric, token)
		}
	}
	// The declared metric field must be grounded too, even if phrased
	// differently from the bullet text.
	if bullet.Metric != "" {
		for _, token := range ExtractMetrics(bullet.Metric) {
			if !Supports(source, token) {
				return fmt.Sprintf("%s: declared metric %q not found in source achievement", ReasonUnsupportedMetric, token)
			}
		}
	}

	if wordCount(text) > maxWords {
		return fmt.Sprintf("%s: %d words (max %d)", ReasonExceedsWordLimit, wordCount(text), maxWords)
	}

	if genericOpeners[openingWord(text)] {
		return ReasonGenericOpening
	}

	return ""
}

// softFlags collects grader-review flags for ambiguous qualitative claims.
func softFlags(role *types.RoleRecord, bullet *types.CandidateBullet) []string {
	var flags []string

	opening := openingWord(bullet.Text)
	if !strongVerbs[opening] && !(strings.HasSuffix(opening, "ed") && len(opening) > 3) {
		flags = append(flags, FlagWeakVerb)
	}

	source := strings.ToLower(role.Achievement(bullet.SourceAchievementRef))
	for _, claim := range scopeClaims(bullet.Text) {
		if !strings.Contains(source, strings.ToLower(claim)) {
			flags = append(flags, fmt.Sprintf("%s: %q", FlagUnverifiedClaim, claim))
		}
	}

	return flags
}

// scopeClaims extracts qualitative claims worth cross-checking: proper-noun
// technology names (capitalized mid-sentence tokens) and broad scope words.
func scopeClaims(text string) []string {
	var claims []string

	scopeWords := []string{"company-wide", "enterprise", "global", "mission-critical", "org-wide"}
	lower := strings.ToLower(text)
	for _, w := range scopeWords {
		if strings.Contains(lower, w) {
			claims = append(claims, w)
		}
	}

	words := strings.Fields(text)
	for i, w := range words {
		if i == 0 {
			continue // sentence-start capitalization is not a claim
		}
		w = strings.Trim(w, ".,;:()")
		if len(w) > 1 && w[0] >= 'A' && w[0] <= 'Z' {
			claims = append(claims, w)
		}
	}

	return claims
}

func openingWord(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?;:")
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
