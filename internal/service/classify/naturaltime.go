package classify

import (
	"regexp"
	"strings"
	"time"
)

var relativeDurationPattern = regexp.MustCompile(`in (\d+) (minute|minutes|hour|hours|day|days|week|weeks)`)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseNaturalTime resolves expressions like "tomorrow", "next week",
// "in 2 hours" or "next monday" relative to now. The second return is false
// when the text is not a recognized time expression.
func ParseNaturalTime(now time.Time, text string) (time.Time, bool) {
	text = strings.ToLower(strings.TrimSpace(text))

	switch {
	case strings.Contains(text, "tomorrow"):
		t := now.AddDate(0, 0, 1)
		return time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, t.Location()), true
	case strings.Contains(text, "next week"):
		return now.AddDate(0, 0, 7), true
	case strings.Contains(text, "tonight"):
		return time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location()), true
	}

	if m := relativeDurationPattern.FindStringSubmatch(text); m != nil {
		n := atoiSafe(m[1])
		switch {
		case strings.HasPrefix(m[2], "minute"):
			return now.Add(time.Duration(n) * time.Minute), true
		case strings.HasPrefix(m[2], "hour"):
			return now.Add(time.Duration(n) * time.Hour), true
		case strings.HasPrefix(m[2], "day"):
			return now.AddDate(0, 0, n), true
		case strings.HasPrefix(m[2], "week"):
			return now.AddDate(0, 0, n*7), true
		}
	}

	for name, wd := range weekdayNames {
		if strings.Contains(text, "next "+name) {
			return nextWeekday(now, wd, true), true
		}
		if strings.Contains(text, "this "+name) {
			return nextWeekday(now, wd, false), true
		}
	}

	return time.Time{}, false
}

// nextWeekday returns 9am on the next occurrence of wd. With skipToday set,
// a match on the current day rolls a full week forward.
func nextWeekday(now time.Time, wd time.Weekday, skipToday bool) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 && skipToday {
		days = 7
	}
	t := now.AddDate(0, 0, days)
	return time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, t.Location())
}
