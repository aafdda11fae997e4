package schedule

import "time"

// Interval is one open stretch of a working day, "HH:MM" 24-hour bounds.
// The start is inclusive, the end exclusive.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule describes one weekday of a doctor's template. Intervals may
// arrive unsorted or overlapping; grid generation normalizes that.
type DaySchedule struct {
	Available bool       `json:"available"`
	Intervals []Interval `json:"intervals"`
}

// WeeklyTemplate maps weekdays to day schedules. Days absent from the map
// are treated as closed.
type WeeklyTemplate map[time.Weekday]DaySchedule

// DefaultTemplate is the fallback schedule used when a doctor has no
// template of their own: weekday mornings and afternoons with a lunch
// break, Saturday mornings, Sunday closed. Deployments can override it
// through the resolver.
func DefaultTemplate() WeeklyTemplate {
	weekday := DaySchedule{
		Available: true,
		Intervals: []Interval{
			{Start: "09:00", End: "13:00"},
			{Start: "14:00", End: "17:00"},
		},
	}
	saturday := DaySchedule{
		Available: true,
		Intervals: []Interval{
			{Start: "09:00", End: "13:00"},
		},
	}

	return WeeklyTemplate{
		time.Monday:    weekday,
		time.Tuesday:   weekday,
		time.Wednesday: weekday,
		time.Thursday:  weekday,
		time.Friday:    weekday,
		time.Saturday:  saturday,
		time.Sunday:    {Available: false},
	}
}
