package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/booking-engine/internal/blockeddate"
	"github.com/careslot/booking-engine/internal/ledger"
	"github.com/careslot/booking-engine/internal/schedule"
)

type nopNotifier struct{}

func (nopNotifier) AppointmentBooked(context.Context, *Appointment) error { return nil }
func (nopNotifier) AppointmentRescheduled(context.Context, *Appointment, string, string) error {
	return nil
}
func (nopNotifier) AppointmentCancelled(context.Context, *Appointment) error { return nil }

// 2025-03-03 is a Monday.
const monday = "2025-03-03"

type fixture struct {
	svc     *Service
	store   *LedgerStore
	ledger  *ledger.Memory
	blocked *blockeddate.StaticSource
	tenant  uuid.UUID
	doctor  uuid.UUID
	patient uuid.UUID
}

// newFixture wires the service over the in-memory store with a doctor
// who works Mondays 09:00-10:00 only.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	led := ledger.NewMemory()
	store := NewLedgerStore(led, NewMemoryRepository())

	doctor := uuid.New()
	resolver := schedule.NewStaticResolver(nil)
	resolver.SetDoctor(doctor, schedule.WeeklyTemplate{
		time.Monday: {Available: true, Intervals: []schedule.Interval{{Start: "09:00", End: "10:00"}}},
	})

	blocked := blockeddate.NewStaticSource()

	svc := NewService(store, resolver, blocked, nopNotifier{}, zerolog.Nop())
	svc.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	return &fixture{
		svc:     svc,
		store:   store,
		ledger:  led,
		blocked: blocked,
		tenant:  uuid.New(),
		doctor:  doctor,
		patient: uuid.New(),
	}
}

func (f *fixture) request() BookingRequest {
	return BookingRequest{
		TenantID:       f.tenant,
		DoctorID:       f.doctor,
		PatientID:      f.patient,
		Date:           monday,
		Time:           "09:00",
		ChiefComplaint: "persistent cough",
	}
}

func (f *fixture) requester() RequesterContext {
	return RequesterContext{PatientID: f.patient, TenantID: f.tenant}
}

func TestBookAppointment_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.Time = "9:00" // un-normalized input
	appt, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "09:00", appt.Time)
	assert.Equal(t, "9:00", appt.RequestedTime)
	assert.Equal(t, StatusConfirmed, appt.Status)

	slots, err := f.svc.ListAvailableSlots(ctx, f.doctor, monday, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:15", "09:30", "09:45"}, slots)

	// A second patient racing for the same slot loses cleanly.
	second := f.request()
	second.PatientID = uuid.New()
	_, err = f.svc.BookAppointment(ctx, second)
	assert.ErrorIs(t, err, ledger.ErrSlotTaken)
}

func TestBookAppointment_AmPmNormalization(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.Time = "9:30 AM"
	appt, err := f.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "09:30", appt.Time)
}

func TestBookAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var verr *ValidationError

	req := f.request()
	req.PatientID = uuid.Nil
	_, err := f.svc.BookAppointment(ctx, req)
	require.ErrorAs(t, err, &verr)

	req = f.request()
	req.Date = "03/03/2025"
	_, err = f.svc.BookAppointment(ctx, req)
	require.ErrorAs(t, err, &verr)

	req = f.request()
	req.Time = "sometime in the morning"
	_, err = f.svc.BookAppointment(ctx, req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "time", verr.Field)
}

func TestBookAppointment_OutsideSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.Time = "20:00"
	_, err := f.svc.BookAppointment(ctx, req)
	assert.ErrorIs(t, err, ErrSlotNotInSchedule)

	// Tuesday is closed for this doctor.
	req = f.request()
	req.Date = "2025-03-04"
	_, err = f.svc.BookAppointment(ctx, req)
	assert.ErrorIs(t, err, ErrSlotNotInSchedule)
}

func TestBookAppointment_BlockedDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.blocked.Block(f.doctor, monday, "surgery day")

	_, err := f.svc.BookAppointment(ctx, f.request())
	assert.ErrorIs(t, err, ErrDateBlocked)

	// The weekday is open in the template, yet no slots exist.
	slots, err := f.svc.ListAvailableSlots(ctx, f.doctor, monday, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookAppointment_IdempotentRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.IdempotencyKey = "retry-abc123"

	first, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)

	// Retry after an apparent timeout: same payload, same key. The
	// original success comes back instead of a false conflict.
	again, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// A different patient with their own key still conflicts.
	other := f.request()
	other.PatientID = uuid.New()
	other.IdempotencyKey = "retry-xyz789"
	_, err = f.svc.BookAppointment(ctx, other)
	assert.ErrorIs(t, err, ledger.ErrSlotTaken)
}

func TestReschedule_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	moved, err := f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30", f.requester())
	require.NoError(t, err)
	assert.Equal(t, "09:30", moved.Time)

	// Old slot freed, new slot taken.
	slots, err := f.svc.ListAvailableSlots(ctx, f.doctor, monday, nil)
	require.NoError(t, err)
	assert.Contains(t, slots, "09:00")
	assert.NotContains(t, slots, "09:30")

	// Exactly one claim, at the new key, owned by this appointment.
	oldClaim, err := f.ledger.Get(ctx, ledger.SlotKey{DoctorID: f.doctor, Date: monday, Time: "09:00"})
	require.NoError(t, err)
	assert.Nil(t, oldClaim)

	newClaim, err := f.ledger.Get(ctx, ledger.SlotKey{DoctorID: f.doctor, Date: monday, Time: "09:30"})
	require.NoError(t, err)
	require.NotNil(t, newClaim)
	assert.Equal(t, appt.ID, newClaim.AppointmentID)
}

func TestReschedule_ConflictLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	blocker := f.request()
	blocker.PatientID = uuid.New()
	blocker.Time = "09:30"
	_, err = f.svc.BookAppointment(ctx, blocker)
	require.NoError(t, err)

	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30", f.requester())
	assert.ErrorIs(t, err, ledger.ErrSlotTaken)

	// The appointment still holds its original slot.
	reread, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", reread.Time)

	claim, err := f.ledger.Get(ctx, ledger.SlotKey{DoctorID: f.doctor, Date: monday, Time: "09:00"})
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, appt.ID, claim.AppointmentID)
}

func TestReschedule_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	// Another patient in the same tenant.
	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30",
		RequesterContext{PatientID: uuid.New(), TenantID: f.tenant})
	assert.ErrorIs(t, err, ErrNotAllowed)

	// Staff from another tenant.
	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30",
		RequesterContext{TenantID: uuid.New(), Staff: true})
	assert.ErrorIs(t, err, ErrNotAllowed)

	// Staff within the tenant may act for any patient.
	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30",
		RequesterContext{TenantID: f.tenant, Staff: true})
	assert.NoError(t, err)
}

func TestReschedule_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RescheduleAppointment(context.Background(), uuid.New(), monday, "09:30", f.requester())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestReschedule_SameSlotIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	same, err := f.svc.RescheduleAppointment(ctx, appt.ID, monday, "9:00 AM", f.requester())
	require.NoError(t, err)
	assert.Equal(t, appt.ID, same.ID)
	assert.Equal(t, "09:00", same.Time)
}

func TestCancel_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	slots, err := f.svc.ListAvailableSlots(ctx, f.doctor, monday, nil)
	require.NoError(t, err)
	assert.NotContains(t, slots, "09:00")

	cancelled, err := f.svc.CancelAppointment(ctx, appt.ID, f.requester())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	slots, err = f.svc.ListAvailableSlots(ctx, f.doctor, monday, nil)
	require.NoError(t, err)
	assert.Contains(t, slots, "09:00")

	claim, err := f.ledger.Get(ctx, ledger.SlotKey{DoctorID: f.doctor, Date: monday, Time: "09:00"})
	require.NoError(t, err)
	assert.Nil(t, claim)

	// Cancelling twice is a no-op.
	_, err = f.svc.CancelAppointment(ctx, appt.ID, f.requester())
	assert.NoError(t, err)

	// The freed slot can be booked again.
	rebook := f.request()
	rebook.PatientID = uuid.New()
	_, err = f.svc.BookAppointment(ctx, rebook)
	assert.NoError(t, err)
}

func TestCancelledAppointment_CannotBeRescheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, f.requester())
	require.NoError(t, err)

	var verr *ValidationError
	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, monday, "09:30", f.requester())
	assert.ErrorAs(t, err, &verr)
}

// Concurrent bookings through the full service path: one winner per
// slot, losers see a conflict, and the winner count matches the claims.
func TestBookAppointment_ConcurrentRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const contenders = 40

	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			req := f.request()
			req.PatientID = uuid.New()
			_, err := f.svc.BookAppointment(ctx, req)
			results <- err
		}()
	}

	wins, conflicts := 0, 0
	for i := 0; i < contenders; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ledger.ErrSlotTaken):
			conflicts++
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, conflicts)
}
