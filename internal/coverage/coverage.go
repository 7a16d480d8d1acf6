// Package coverage detects gaps between a requested date range and the
// dates for which data was actually observed.
package coverage

import (
	"sort"
	"time"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

// FindMissingDates computes the calendar days of rng absent from observed
// (a set of day-form period keys) and groups consecutive runs. Grouping is
// always at calendar-day resolution no matter what granularity the report
// itself was bucketed at.
func FindMissingDates(rng entity.DateRange, observed map[string]struct{}) []entity.MissingDateGroup {
	var missing []time.Time
	for _, day := range entity.ExpandDays(rng.Start, rng.End) {
		if _, ok := observed[day.Format(entity.DateLayout)]; !ok {
			missing = append(missing, day)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })

	var groups []entity.MissingDateGroup
	for _, day := range missing {
		if n := len(groups); n > 0 && day.Sub(groups[n-1].End) == 24*time.Hour {
			groups[n-1].End = day
			groups[n-1].Days++
			continue
		}
		groups = append(groups, entity.MissingDateGroup{Start: day, End: day, Days: 1})
	}
	return groups
}

// FindMissingByPlatform runs the gap check once per platform identifier
// and keeps the results separate, so a caller can report each platform's
// missing ranges distinctly.
func FindMissingByPlatform(rng entity.DateRange, observedByPlatform map[string]map[string]struct{}) map[string][]entity.MissingDateGroup {
	result := make(map[string][]entity.MissingDateGroup, len(observedByPlatform))
	for platform, observed := range observedByPlatform {
		result[platform] = FindMissingDates(rng, observed)
	}
	return result
}

// Union flattens per-platform groups into one deduplicated, sorted date
// list for a single at-a-glance indicator.
func Union(byPlatform map[string][]entity.MissingDateGroup) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, groups := range byPlatform {
		for _, g := range groups {
			for _, d := range g.Dates() {
				seen[d] = struct{}{}
			}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
