package planner

import (
	"regexp"
	"sort"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

var socPattern = regexp.MustCompile(`(\d+)\s*%`)

var eventTimeFormats = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseEventTime(s string, loc *time.Location) (time.Time, bool) {
	for _, f := range eventTimeFormats {
		if t, err := time.ParseInLocation(f, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// nextCalendarEvent returns the first upcoming calendar event up to the end
// of tomorrow, along with a target SoC if the event text contains a
// percentage between 10 and 100. Entries with unparseable start times are
// skipped individually.
func nextCalendarEvent(events []model.CalendarEvent, now time.Time) (start time.Time, targetSoC *float64, ok bool) {
	if len(events) == 0 {
		return time.Time{}, nil, false
	}
	horizon := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location()).AddDate(0, 0, 1)

	sorted := make([]model.CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for _, ev := range sorted {
		evStart, parsed := parseEventTime(ev.Start, now.Location())
		if !parsed {
			continue
		}
		if evStart.Before(now) {
			continue
		}
		if evStart.After(horizon) {
			break
		}
		text := ev.Summary + " " + ev.Description
		if m := socPattern.FindStringSubmatch(text); m != nil {
			if pct := parseInt(m[1]); pct >= 10 && pct <= 100 {
				f := float64(pct)
				targetSoC = &f
			}
		}
		return evStart, targetSoC, true
	}
	return time.Time{}, nil, false
}

func parseInt(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
