package entity

import "time"

// DateLayout is the canonical calendar-day form used for period keys and
// upstream day parameters.
const DateLayout = "2006-01-02"

// MonthLayout is the canonical month-bucket form.
const MonthLayout = "2006-01"

// Granularity controls the time bucket size of a series.
type Granularity int

const (
	GranularityDay Granularity = iota + 1
	GranularityWeek
	GranularityMonth
)

// GranularityFromGroupBy maps the reporting surface's groupBy parameter to
// a bucket granularity. "total" reports still bucket by day so coverage
// checks keep calendar-day resolution.
func GranularityFromGroupBy(groupBy string) Granularity {
	switch groupBy {
	case "week":
		return GranularityWeek
	case "month":
		return GranularityMonth
	default:
		return GranularityDay
	}
}

// DateRange is an inclusive start/end calendar range with the channel and
// restaurant scope of one report request.
type DateRange struct {
	Start         time.Time
	End           time.Time
	Channels      []Channel
	RestaurantIDs []string
}

// MissingDateGroup is a maximal run of consecutive calendar dates inside a
// requested range for which no data was observed.
type MissingDateGroup struct {
	Start time.Time
	End   time.Time
	Days  int
}

// Dates expands the group back into its individual calendar days.
func (g MissingDateGroup) Dates() []time.Time {
	dates := make([]time.Time, 0, g.Days)
	for d := g.Start; !d.After(g.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Midnight truncates t to its UTC calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExpandDays expands an inclusive [start, end] range into its explicit
// UTC-normalized day list. The list is empty iff start is after end.
func ExpandDays(start, end time.Time) []time.Time {
	start = Midnight(start)
	end = Midnight(end)
	if start.After(end) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// WeekStart returns the Monday-aligned first day of t's ISO week. The
// upstream buckets weeks the same way, so locally derived keys and
// upstream-supplied ones agree.
func WeekStart(t time.Time) time.Time {
	t = Midnight(t)
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return t.AddDate(0, 0, 1-wd)
}

// PeriodKey maps a summary's day (and its upstream week start) to the
// bucket key for the requested granularity. Lexicographic order of the
// returned keys equals chronological order for every granularity.
func PeriodKey(day, weekStart time.Time, g Granularity) string {
	switch g {
	case GranularityWeek:
		if weekStart.IsZero() {
			weekStart = WeekStart(day)
		}
		return weekStart.Format(DateLayout)
	case GranularityMonth:
		return day.Format(MonthLayout)
	default:
		return day.Format(DateLayout)
	}
}
