package pipeline

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

// Render produces the final plain-text CV: uppercase section headings, hyphen
// bullets, no markup of any kind.
func Render(hdr *types.HeaderSection, doc *types.StitchedDocument) string {
	var sb strings.Builder

	if hdr != nil && strings.TrimSpace(hdr.Summary) != "" {
		sb.WriteString("PROFILE\n")
		sb.WriteString(sanitize(hdr.Summary))
		sb.WriteString("\n\n")
	}

	if hdr != nil && len(hdr.Skills) > 0 {
		sb.WriteString("SKILLS\n")
		for _, cat := range hdr.Skills {
			fmt.Fprintf(&sb, "%s: %s\n", sanitize(cat.Category), sanitize(strings.Join(cat.Skills, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(doc.Sections) > 0 {
		sb.WriteString("EXPERIENCE\n")
		for i, sec := range doc.Sections {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s, %s (%s)\n", sanitize(sec.Title), sanitize(sec.Employer), sanitize(sec.Period))
			for _, b := range sec.Bullets {
				fmt.Fprintf(&sb, "- %s\n", sanitize(b.Text))
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// sanitize strips markdown and control characters the model may emit despite
// instructions. The output format is plain text.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '#', '`', '\r':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// renderedWordCount counts the words of the final document text, headings
// included, which is what the configured budget binds.
func renderedWordCount(text string) int {
	return len(strings.Fields(text))
}
