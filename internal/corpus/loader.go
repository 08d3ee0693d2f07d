package corpus

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

// Record file format: optional "Employer:", "Title:", "Period:" header lines,
// then one achievement statement per non-empty line. Leading list markers
// ("-", "*", "•") are stripped.

// Load reads every role record from the store and returns the normalized
// working set, ordered most recent first with Recency assigned.
//
// Fails with LoadError if the store is empty or any record has zero
// achievement statements.
func Load(ctx context.Context, store Store) ([]types.RoleRecord, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, &LoadError{Message: "listing role records", Cause: err}
	}
	if len(ids) == 0 {
		return nil, &LoadError{Message: "empty corpus", Cause: ErrNoRoleRecords}
	}

	records := make([]types.RoleRecord, 0, len(ids))
	for _, id := range ids {
		text, err := store.Read(ctx, id)
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("reading role record %s", id), Cause: err}
		}

		record := ParseRecord(id, text)
		if len(record.Achievements) == 0 {
			return nil, &LoadError{Message: fmt.Sprintf("role record %s has no achievement statements", id)}
		}
		records = append(records, record)
	}

	sortByRecency(records)
	return records, nil
}

// ParseRecord parses one role record's raw text.
func ParseRecord(id, text string) types.RoleRecord {
	record := types.RoleRecord{ID: id}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Employer:"):
			record.Employer = strings.TrimSpace(strings.TrimPrefix(line, "Employer:"))
		case strings.HasPrefix(line, "Title:"):
			record.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Period:"):
			record.Period = strings.TrimSpace(strings.TrimPrefix(line, "Period:"))
			record.EndYear = parseEndYear(record.Period)
		default:
			record.Achievements = append(record.Achievements, normalizeStatement(line))
		}
	}

	// Drop exact duplicate statements while preserving order
	seen := make(map[string]struct{}, len(record.Achievements))
	deduped := record.Achievements[:0]
	for _, a := range record.Achievements {
		if _, exists := seen[a]; exists {
			continue
		}
		seen[a] = struct{}{}
		deduped = append(deduped, a)
	}
	record.Achievements = deduped

	return record
}

var (
	listMarkerRe = regexp.MustCompile(`^[-*•]\s+`)
	spaceRe      = regexp.MustCompile(`\s+`)
	yearRe       = regexp.MustCompile(`(19|20)\d{2}`)
)

// normalizeStatement strips list markers and collapses whitespace.
func normalizeStatement(line string) string {
	line = listMarkerRe.ReplaceAllString(line, "")
	return spaceRe.ReplaceAllString(strings.TrimSpace(line), " ")
}

// parseEndYear extracts the last year mentioned in a period string, treating
// open-ended periods ("2021 - present") as the far future.
func parseEndYear(period string) int {
	lower := strings.ToLower(period)
	if strings.Contains(lower, "present") || strings.Contains(lower, "current") || strings.Contains(lower, "now") {
		return presentYear
	}

	years := yearRe.FindAllString(period, -1)
	if len(years) == 0 {
		return 0
	}
	year, err := strconv.Atoi(years[len(years)-1])
	if err != nil {
		return 0
	}
	return year
}

// presentYear sorts open-ended roles ahead of any dated one.
const presentYear = 9999

// sortByRecency orders records most recent first and assigns Recency ranks.
// Ties fall back to record ID so the order is deterministic.
func sortByRecency(records []types.RoleRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].EndYear != records[j].EndYear {
			return records[i].EndYear > records[j].EndYear
		}
		return records[i].ID < records[j].ID
	})
	for i := range records {
		records[i].Recency = i
	}
}
