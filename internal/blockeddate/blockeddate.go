// Package blockeddate normalizes doctor-level date exclusions. Stored
// blocked dates arrive in several historical shapes (plain string, object
// with a date field, epoch-seconds record); everything past this boundary
// sees canonical "YYYY-MM-DD" only.
package blockeddate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// BlockedDate is a canonical exclusion: no slots exist on Date regardless
// of the weekly template.
type BlockedDate struct {
	Date   string
	Reason string
}

// Source supplies a doctor's blocked dates, already normalized.
type Source interface {
	BlockedDates(ctx context.Context, doctorID uuid.UUID) ([]BlockedDate, error)
}

// Normalize converts one stored blocked-date record into canonical form.
// Accepted shapes: "2025-03-01", map with a "date" (and optional "reason")
// field, numeric epoch seconds, or a map with a "seconds" field. Returns
// false for anything unrecognizable.
func Normalize(v any) (BlockedDate, bool) {
	switch d := v.(type) {
	case string:
		return parseDate(d, "")
	case int64:
		return epoch(d, "")
	case float64:
		return epoch(int64(d), "")
	case map[string]any:
		reason, _ := d["reason"].(string)
		if s, ok := d["date"].(string); ok {
			return parseDate(s, reason)
		}
		switch sec := d["seconds"].(type) {
		case int64:
			return epoch(sec, reason)
		case float64:
			return epoch(int64(sec), reason)
		}
	}
	return BlockedDate{}, false
}

// NormalizeAll maps Normalize over a stored list, dropping records that
// fail to normalize.
func NormalizeAll(vs []any) []BlockedDate {
	out := make([]BlockedDate, 0, len(vs))
	for _, v := range vs {
		if bd, ok := Normalize(v); ok {
			out = append(out, bd)
		}
	}
	return out
}

func parseDate(s, reason string) (BlockedDate, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return BlockedDate{}, false
	}
	return BlockedDate{Date: t.Format(DateLayout), Reason: reason}, true
}

func epoch(sec int64, reason string) (BlockedDate, bool) {
	if sec <= 0 {
		return BlockedDate{}, false
	}
	return BlockedDate{Date: time.Unix(sec, 0).UTC().Format(DateLayout), Reason: reason}, true
}

// StaticSource is an in-memory Source for tests and single-process use.
type StaticSource struct {
	Dates map[uuid.UUID][]BlockedDate
}

func NewStaticSource() *StaticSource {
	return &StaticSource{Dates: make(map[uuid.UUID][]BlockedDate)}
}

func (s *StaticSource) Block(doctorID uuid.UUID, date, reason string) {
	s.Dates[doctorID] = append(s.Dates[doctorID], BlockedDate{Date: date, Reason: reason})
}

func (s *StaticSource) BlockedDates(_ context.Context, doctorID uuid.UUID) ([]BlockedDate, error) {
	return s.Dates[doctorID], nil
}
