// Package stitch merges validated per-role bullet sets into a single ordered
// document body, removing duplicates across roles and trimming to a global
// word budget. It is the synchronization barrier of the pipeline: every role's
// result must be collected before assembly begins.
package stitch

import (
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

// stopwords are dropped before comparing bullets, so rewordings that differ
// only in connective tissue collide on the same key.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "into": {}, "of": {}, "on": {}, "or": {}, "over": {},
	"the": {}, "to": {}, "with": {}, "across": {}, "through": {}, "via": {},
}

// Key computes the dedup signature of a bullet: lower-cased, punctuation
// stripped, stop words removed, whitespace collapsed.
func Key(text string) types.DedupKey {
	return types.DedupKey(strings.Join(keyTokens(text), " "))
}

func keyTokens(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '%' || r == '$' {
				return r
			}
			return -1
		}, field)
		if word == "" {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Similarity returns the token Jaccard index of two dedup keys, in [0,1].
// Identical keys score 1; keys with no shared tokens score 0.
func Similarity(a, b types.DedupKey) float64 {
	if a == b {
		return 1
	}

	setA := make(map[string]struct{})
	for _, tok := range strings.Fields(string(a)) {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, tok := range strings.Fields(string(b)) {
		setB[tok] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}
