// Package notify is the outbound notification boundary. Delivery
// (WhatsApp, SMS, email) lives outside this engine; the service only
// dispatches fire-and-forget events after a booking commits.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/careslot/booking-engine/internal/booking"
)

// LogNotifier records events instead of delivering them. Default when no
// delivery integration is wired.
type LogNotifier struct {
	Log zerolog.Logger
}

var _ booking.Notifier = LogNotifier{}

func (n LogNotifier) AppointmentBooked(_ context.Context, appt *booking.Appointment) error {
	n.Log.Info().
		Stringer("appointment_id", appt.ID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment booked")
	return nil
}

func (n LogNotifier) AppointmentRescheduled(_ context.Context, appt *booking.Appointment, oldDate, oldTime string) error {
	n.Log.Info().
		Stringer("appointment_id", appt.ID).
		Str("from", oldDate+" "+oldTime).
		Str("to", appt.Date+" "+appt.Time).
		Msg("appointment rescheduled")
	return nil
}

func (n LogNotifier) AppointmentCancelled(_ context.Context, appt *booking.Appointment) error {
	n.Log.Info().
		Stringer("appointment_id", appt.ID).
		Msg("appointment cancelled")
	return nil
}
