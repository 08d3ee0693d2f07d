// Package qa validates candidate bullets against their declared source
// achievements. No bullet leaves this stage carrying a metric its source does
// not support.
package qa

import (
	"regexp"
	"strings"
)

// metricRe matches quantified tokens: numbers with optional currency prefix
// and percent/multiplier/magnitude suffix, e.g. "40%", "$1.2M", "3x", "1,200".
var metricRe = regexp.MustCompile(`(?i)[$€£]?\d+(?:[.,]\d+)*(?:\s*(?:%|(?:percent|million|billion|thousand|[xkmb])\b))?`)

// multiplierWords are verbal metric claims that carry a quantity without
// digits. They must be supported by the source like any other metric.
var multiplierWords = map[string]string{
	"doubled": "2x",
	"tripled": "3x",
	"halved":  "50%",
}

// ExtractMetrics returns the normalized quantified tokens found in text.
func ExtractMetrics(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})

	add := func(tok string) {
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, raw := range metricRe.FindAllString(text, -1) {
		add(NormalizeMetric(raw))
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?")
		if norm, ok := multiplierWords[word]; ok {
			add(norm)
		}
	}

	return tokens
}

// NormalizeMetric canonicalizes a quantified token so spelled-out and symbolic
// forms compare equal ("40 percent" == "40%", "$1.2 Million" == "$1.2m").
func NormalizeMetric(token string) string {
	s := strings.ToLower(strings.TrimSpace(token))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	replacements := []struct{ from, to string }{
		{"percent", "%"},
		{"million", "m"},
		{"billion", "b"},
		{"thousand", "k"},
	}
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}

	return s
}

// metricParts splits a normalized token into its unit class and numeric core.
// Magnitude suffixes (k/m/b) scale the number and stay in the core; percent,
// multiplier, and currency change what is being claimed and form the unit.
func metricParts(normalized string) (unit, core string) {
	core = normalized
	if trimmed := strings.TrimLeft(core, "$€£"); trimmed != core {
		unit = "$"
		core = trimmed
	}
	switch {
	case strings.HasSuffix(core, "%"):
		unit += "%"
		core = strings.TrimSuffix(core, "%")
	case strings.HasSuffix(core, "x"):
		unit += "x"
		core = strings.TrimSuffix(core, "x")
	}
	return unit, core
}

// Supports reports whether a normalized metric token from a bullet is present
// in the source achievement text. Tokens are equivalent when they match
// verbatim after normalization, or when a bare number cites its unit-ful
// source form ("30" from "30%"). Attaching a unit the source never stated is
// not equivalence: "3 engineers" does not support "3x", nor "$40" "40%".
func Supports(source, token string) bool {
	tokUnit, tokCore := metricParts(token)
	for _, st := range ExtractMetrics(source) {
		if st == token {
			return true
		}
		srcUnit, srcCore := metricParts(st)
		if srcCore == "" || srcCore != tokCore {
			continue
		}
		if tokUnit == "" || tokUnit == srcUnit {
			return true
		}
	}
	return false
}
