package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseRelativeDate implements the shared relative-date parser (spec §4.7):
// it accepts ISO dates and natural expressions ("N days|weeks ago",
// "yesterday", "last|this week|month|quarter", "last|this sprint",
// "since <month>|monday") and returns a canonical UTC date, or
// (time.Time{}, false) for malformed input (P8).
//
// now is passed explicitly so callers (and tests) control the reference
// instant instead of relying on the wall clock.
func ParseRelativeDate(input string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, false
	}
	now = now.UTC()

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t.UTC(), true
	}

	if s == "yesterday" {
		return dayStart(now.AddDate(0, 0, -1)), true
	}

	if m := nDaysAgoRE.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return dayStart(now.AddDate(0, 0, -n)), true
	}
	if m := nWeeksAgoRE.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return dayStart(now.AddDate(0, 0, -7*n)), true
	}

	if rest, ok := cutPrefix(s, "last "); ok {
		return lastOrThisPeriod(rest, now, true)
	}
	if rest, ok := cutPrefix(s, "this "); ok {
		return lastOrThisPeriod(rest, now, false)
	}

	if rest, ok := cutPrefix(s, "since "); ok {
		return sinceExpression(rest, now)
	}

	return time.Time{}, false
}

var (
	nDaysAgoRE  = regexp.MustCompile(`^(\d+)\s+days?\s+ago$`)
	nWeeksAgoRE = regexp.MustCompile(`^(\d+)\s+weeks?\s+ago$`)
)

const sprintLength = 14 // days; "sprint" has no calendar definition, spec fixes it at two weeks.

func lastOrThisPeriod(period string, now time.Time, last bool) (time.Time, bool) {
	switch period {
	case "week":
		start := startOfWeek(now)
		if last {
			start = start.AddDate(0, 0, -7)
		}
		return start, true
	case "month":
		start := startOfMonth(now)
		if last {
			start = start.AddDate(0, -1, 0)
		}
		return start, true
	case "quarter":
		start := startOfQuarter(now)
		if last {
			start = start.AddDate(0, -3, 0)
		}
		return start, true
	case "sprint":
		start := dayStart(now)
		if last {
			start = start.AddDate(0, 0, -2*sprintLength)
		} else {
			start = start.AddDate(0, 0, -sprintLength)
		}
		return start, true
	default:
		return time.Time{}, false
	}
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// sinceExpression handles "since <month>" (most recent occurrence of that
// month's 1st, going back up to a year) and "since <weekday>" (most recent
// occurrence of that weekday, including today).
func sinceExpression(rest string, now time.Time) (time.Time, bool) {
	if month, ok := monthNames[rest]; ok {
		candidate := time.Date(now.Year(), month, 1, 0, 0, 0, 0, time.UTC)
		if candidate.After(now) {
			candidate = candidate.AddDate(-1, 0, 0)
		}
		return candidate, true
	}
	if weekday, ok := weekdayNames[rest]; ok {
		d := dayStart(now)
		for d.Weekday() != weekday {
			d = d.AddDate(0, 0, -1)
		}
		return d, true
	}
	return time.Time{}, false
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return strings.TrimSpace(s[len(prefix):]), true
	}
	return "", false
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfWeek(t time.Time) time.Time {
	d := dayStart(t)
	offset := int(d.Weekday()) // Sunday = 0
	return d.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfQuarter(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	startMonth := time.Month(q*3 + 1)
	return time.Date(t.Year(), startMonth, 1, 0, 0, 0, 0, time.UTC)
}

// MustParseRelativeDate is a convenience wrapper for callers (CLI flag
// parsing) that want an error rather than an ok bool.
func MustParseRelativeDate(input string, now time.Time) (time.Time, error) {
	t, ok := ParseRelativeDate(input, now)
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized date expression %q", input)
	}
	return t, nil
}
