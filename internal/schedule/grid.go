package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// SlotMinutes is the fixed appointment granularity.
const SlotMinutes = 15

var ErrInvalidTime = errors.New("invalid time of day")

var timeLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}

// NormalizeTime parses a user-supplied time of day ("9:00", "09:00",
// "2:30 PM") and returns the canonical 24-hour "HH:MM" form.
func NormalizeTime(raw string) (string, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTime, raw)
}

// Slots expands one day's intervals into the ordered slot grid: every
// "HH:MM" start whose full slot fits inside an interval, so an interval
// end that is off the 15-minute grid truncates rather than producing a
// partial trailing slot. Overlapping or unsorted intervals are tolerated;
// the result is de-duplicated and ascending.
func Slots(day DaySchedule) []string {
	if !day.Available || len(day.Intervals) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	for _, iv := range day.Intervals {
		start, err := minuteOfDay(iv.Start)
		if err != nil {
			continue
		}
		end, err := minuteOfDay(iv.End)
		if err != nil {
			continue
		}

		for m := start; m+SlotMinutes <= end; m += SlotMinutes {
			seen[formatMinute(m)] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SlotsFor is Slots applied to the template day matching the given date.
func (t WeeklyTemplate) SlotsFor(date time.Time) []string {
	return Slots(t[date.Weekday()])
}

func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
