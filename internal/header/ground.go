package header

import (
	"strings"

	"github.com/jonathan/cv-pipeline/internal/qa"
	"github.com/jonathan/cv-pipeline/internal/stitch"
	"github.com/jonathan/cv-pipeline/internal/types"
)

// grounding holds the evidence the header may draw on: every accepted bullet
// plus every raw achievement. Claims outside this pool do not survive.
type grounding struct {
	tokens map[string]struct{}
	stems  map[string]struct{}
	text   string
}

func newGrounding(doc *types.StitchedDocument, roles []*types.RoleRecord) *grounding {
	var sb strings.Builder
	for _, b := range doc.Bullets() {
		sb.WriteString(b.Text)
		sb.WriteString("\n")
	}
	for _, role := range roles {
		sb.WriteString(role.Title)
		sb.WriteString("\n")
		for _, a := range role.Achievements {
			sb.WriteString(a)
			sb.WriteString("\n")
		}
	}

	text := sb.String()
	tokens := make(map[string]struct{})
	stems := make(map[string]struct{})
	for _, tok := range strings.Fields(string(stitch.Key(text))) {
		tokens[tok] = struct{}{}
		stems[stem(tok)] = struct{}{}
	}
	return &grounding{tokens: tokens, stems: stems, text: text}
}

// stem trims common inflection suffixes so "Mentoring" counts as a
// restatement of "mentored". Deliberately crude; evidence matching only needs
// to catch direct restatements, not general morphology.
func stem(tok string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(tok, suffix) && len(tok)-len(suffix) >= 3 {
			return tok[:len(tok)-len(suffix)]
		}
	}
	return tok
}

func (g *grounding) supportsToken(tok string) bool {
	if _, ok := g.tokens[tok]; ok {
		return true
	}
	_, ok := g.stems[stem(tok)]
	return ok
}

// filter strips unsupported skills and summary sentences from the model's
// header. The model is asked not to invent; this is the enforcement.
func (g *grounding) filter(h *types.HeaderSection) *types.HeaderSection {
	out := &types.HeaderSection{
		Summary: g.filterSummary(h.Summary),
	}
	for _, cat := range h.Skills {
		kept := types.SkillCategory{Category: cat.Category}
		for _, skill := range cat.Skills {
			if g.supportsSkill(skill) {
				kept.Skills = append(kept.Skills, skill)
			}
		}
		if len(kept.Skills) > 0 {
			out.Skills = append(out.Skills, kept)
		}
	}
	return out
}

// supportsSkill reports whether every content token of the skill appears in
// the evidence pool.
func (g *grounding) supportsSkill(skill string) bool {
	toks := strings.Fields(string(stitch.Key(skill)))
	if len(toks) == 0 {
		return false
	}
	for _, tok := range toks {
		if !g.supportsToken(tok) {
			return false
		}
	}
	return true
}

// filterSummary drops any sentence carrying an unsupported metric or an
// unsupported proper-noun claim. Surviving sentences are rejoined verbatim.
func (g *grounding) filterSummary(summary string) string {
	var kept []string
	for _, sentence := range splitSentences(summary) {
		if g.supportsSentence(sentence) {
			kept = append(kept, sentence)
		}
	}
	return strings.Join(kept, " ")
}

func (g *grounding) supportsSentence(sentence string) bool {
	for _, metric := range qa.ExtractMetrics(sentence) {
		if !qa.Supports(g.text, metric) {
			return false
		}
	}

	words := strings.Fields(sentence)
	for i, word := range words {
		if i == 0 || !startsUpper(word) {
			continue
		}
		toks := strings.Fields(string(stitch.Key(word)))
		if len(toks) != 1 {
			continue
		}
		if !g.supportsToken(toks[0]) {
			return false
		}
	}
	return true
}

func startsUpper(word string) bool {
	return len(word) > 0 && word[0] >= 'A' && word[0] <= 'Z'
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
