// Package observability provides formatted output utilities for verbose CLI
// mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

const (
	boxWidth       = 60
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRoleRecords summarizes the loaded achievement corpus.
func (p *Printer) PrintRoleRecords(roles []*types.RoleRecord) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Roles loaded: %d\n", len(roles)))
	for _, role := range roles {
		sb.WriteString(fmt.Sprintf("  %s — %s, %s (%d achievements)\n",
			role.ID, role.Title, role.Employer, len(role.Achievements)))
	}
	p.printBox("ACHIEVEMENT CORPUS", sb.String())
}

// PrintBulletSet summarizes one role's QA outcome.
func (p *Printer) PrintBulletSet(set *types.RoleBulletSet) {
	if set == nil {
		return
	}

	var sb strings.Builder
	if set.Error != "" {
		sb.WriteString(fmt.Sprintf("SKIPPED: %s\n", set.Error))
	}
	sb.WriteString(fmt.Sprintf("Accepted: %d\n", len(set.Accepted)))
	count := min(len(set.Accepted), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", set.Accepted[i].Text))
	}
	if len(set.Accepted) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(set.Accepted)-maxItemsToShow))
	}

	if len(set.Rejected) > 0 {
		sb.WriteString(fmt.Sprintf("Rejected: %d\n", len(set.Rejected)))
		for i := 0; i < min(len(set.Rejected), maxItemsToShow); i++ {
			r := set.Rejected[i]
			sb.WriteString(fmt.Sprintf("  ✗ [%s] %s\n", r.Reason, r.Bullet.Text))
		}
	}

	p.printBox(fmt.Sprintf("BULLETS — %s", set.RoleID), sb.String())
}

// PrintDocument summarizes the assembled body.
func (p *Printer) PrintDocument(doc *types.StitchedDocument) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sections: %d, words: %d\n", len(doc.Sections), doc.WordCount))
	for _, sec := range doc.Sections {
		sb.WriteString(fmt.Sprintf("  %s (%d bullets)\n", sec.RoleID, len(sec.Bullets)))
	}
	p.printBox("STITCHED DOCUMENT", sb.String())
}

// PrintGrade summarizes a grading pass.
func (p *Printer) PrintGrade(grade *types.GradeResult) {
	if grade == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall: %.2f (rubric %s)\n", grade.Overall, grade.RubricVersion))
	for _, d := range grade.Dimensions {
		sb.WriteString(fmt.Sprintf("  %-18s %.2f\n", d.Dimension, d.Score))
	}
	if len(grade.Flags) > 0 {
		sb.WriteString(fmt.Sprintf("Flags: %d\n", len(grade.Flags)))
		for i := 0; i < min(len(grade.Flags), maxItemsToShow); i++ {
			f := grade.Flags[i]
			sb.WriteString(fmt.Sprintf("  ⚑ %s: %s\n", f.Section, f.Reason))
		}
	}
	p.printBox("GRADE", sb.String())
}

// PrintWarnings lists guarantees the run could not meet.
func (p *Printer) PrintWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}

	var sb strings.Builder
	for _, w := range warnings {
		sb.WriteString(fmt.Sprintf("  ! %s\n", w))
	}
	p.printBox("WARNINGS", sb.String())
}
