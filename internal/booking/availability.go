package booking

import (
	"time"

	"github.com/careslot/booking-engine/internal/blockeddate"
	"github.com/careslot/booking-engine/internal/schedule"
)

// FreeSlots narrows a candidate slot grid to the slots still bookable on
// date: not inside any slot-holding appointment's occupancy window, not
// on a blocked date, and not already past when date is today. It never
// fails; bad rows are skipped.
func FreeSlots(candidates []string, appts []Appointment, blocked []blockeddate.BlockedDate, date string, now time.Time) []string {
	for _, bd := range blocked {
		if bd.Date == date {
			return nil
		}
	}

	// An appointment at minute T occupies [T, T+SlotMinutes).
	type window struct{ from, to int }
	var occupied []window
	for _, a := range appts {
		if !a.HoldsSlot() || a.Date != date {
			continue
		}
		m, err := minuteOf(a.Time)
		if err != nil {
			continue
		}
		occupied = append(occupied, window{from: m, to: m + schedule.SlotMinutes})
	}

	today := now.Format(blockeddate.DateLayout) == date
	nowMinute := now.Hour()*60 + now.Minute()

	var free []string
	for _, c := range candidates {
		m, err := minuteOf(c)
		if err != nil {
			continue
		}
		if today && m < nowMinute {
			continue
		}
		taken := false
		for _, w := range occupied {
			if m >= w.from && m < w.to {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, c)
		}
	}
	return free
}

func minuteOf(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
