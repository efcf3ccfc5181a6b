package lead

import (
	"fmt"
	"strings"
	"time"
)

// StageFilter selects leads by stage or starred flag.
type StageFilter string

const (
	FilterAll     StageFilter = "all"
	FilterStarred StageFilter = "starred"
)

// ParseFilter parses a filter name: "all", "starred" or a stage name.
// Empty input yields FilterAll.
func ParseFilter(s string) (StageFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", string(FilterAll):
		return FilterAll, nil
	case string(FilterStarred):
		return FilterStarred, nil
	}
	if Stage(s).Valid() {
		return StageFilter(s), nil
	}
	return "", fmt.Errorf("unknown filter %q (want all, starred, or a stage)", s)
}

// Filters returns every filter in display order.
func Filters() []StageFilter {
	filters := []StageFilter{FilterAll, FilterStarred}
	for _, s := range Stages() {
		filters = append(filters, StageFilter(s))
	}
	return filters
}

// Label returns the display label for the filter.
func (f StageFilter) Label() string {
	switch f {
	case FilterAll, "":
		return "All"
	case FilterStarred:
		return "Starred"
	default:
		return Stage(f).Label()
	}
}

// matchesStage reports whether l passes the stage filter.
func (f StageFilter) matchesStage(l Lead) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterStarred:
		return l.Starred
	default:
		return l.Stage == Stage(f)
	}
}

// Matches reports whether l passes both the stage filter and the search term.
// search must already be trimmed and lowercased.
func Matches(l Lead, f StageFilter, search string) bool {
	if !f.matchesStage(l) {
		return false
	}
	if search == "" {
		return true
	}
	haystack := strings.ToLower(l.Name + " " + l.URL + " " + strings.Join(l.Tags, " "))
	return strings.Contains(haystack, search)
}

// Filter returns the leads that pass the stage filter and contain the search
// term (case-insensitive) in their name, url or tags. Order is preserved.
func Filter(leads []Lead, f StageFilter, search string) []Lead {
	search = strings.ToLower(strings.TrimSpace(search))
	result := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if Matches(l, f, search) {
			result = append(result, l)
		}
	}
	return result
}

// Week is the trailing window used by Metrics.LastWeekCount.
const Week = 7 * 24 * time.Hour

// Metrics summarizes a collection.
type Metrics struct {
	Total         int `json:"total"`
	StarredCount  int `json:"starred_count"`
	LastWeekCount int `json:"last_week_count"`
}

// ComputeMetrics counts leads, starred leads, and leads created within the
// trailing week ending at now.
func ComputeMetrics(leads []Lead, now time.Time) Metrics {
	threshold := now.Add(-Week).UnixMilli()
	m := Metrics{Total: len(leads)}
	for _, l := range leads {
		if l.Starred {
			m.StarredCount++
		}
		if l.CreatedAt >= threshold {
			m.LastWeekCount++
		}
	}
	return m
}
