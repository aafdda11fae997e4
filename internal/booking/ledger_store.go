package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking-engine/internal/ledger"
)

// AppointmentStore is the record backend LedgerStore composes with a
// claim ledger: plain CRUD, no claim awareness.
type AppointmentStore interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForDay(ctx context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]Appointment, error)
	PutAppointment(ctx context.Context, appt *Appointment) error
}

// LedgerStore implements Store for backends without multi-row
// transactions by pairing an atomic claim ledger with a record store.
// The claim is taken first; if the record write then fails, the claim is
// released (or moved back) so no partial state survives the call.
type LedgerStore struct {
	Ledger       ledger.Ledger
	Appointments AppointmentStore
}

func NewLedgerStore(l ledger.Ledger, appts AppointmentStore) *LedgerStore {
	return &LedgerStore{Ledger: l, Appointments: appts}
}

func (s *LedgerStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.Appointments.GetAppointmentByID(ctx, id)
}

func (s *LedgerStore) ListForDay(ctx context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]Appointment, error) {
	return s.Appointments.ListForDay(ctx, doctorID, date, branchID)
}

func (s *LedgerStore) ClaimAt(ctx context.Context, key ledger.SlotKey) (*ledger.SlotClaim, error) {
	return s.Ledger.Get(ctx, key)
}

func (s *LedgerStore) Book(ctx context.Context, appt *Appointment) error {
	if err := s.Ledger.TryClaim(ctx, appt.SlotKey(), appt.Ref()); err != nil {
		return err
	}

	if err := s.Appointments.PutAppointment(ctx, appt); err != nil {
		if relErr := s.Ledger.Release(ctx, appt.SlotKey(), appt.Ref()); relErr != nil {
			return fmt.Errorf("persist appointment: %v (release claim: %w)", err, relErr)
		}
		return fmt.Errorf("persist appointment: %w", err)
	}
	return nil
}

func (s *LedgerStore) Move(ctx context.Context, appt *Appointment, newDate, newTime string) error {
	oldKey := appt.SlotKey()
	newKey := ledger.SlotKey{DoctorID: appt.DoctorID, Date: newDate, Time: newTime}

	if err := s.Ledger.MoveClaim(ctx, oldKey, newKey, appt.Ref()); err != nil {
		return err
	}

	updated := *appt
	updated.Date = newDate
	updated.Time = newTime
	updated.UpdatedAt = time.Now()

	if err := s.Appointments.PutAppointment(ctx, &updated); err != nil {
		// The restore can itself conflict when another booker claimed
		// the freed old key between the forward move and here. The new
		// key is then released instead, so no orphan claim survives.
		if backErr := s.Ledger.MoveClaim(ctx, newKey, oldKey, appt.Ref()); backErr != nil {
			if relErr := s.Ledger.Release(ctx, newKey, appt.Ref()); relErr != nil {
				return fmt.Errorf("persist reschedule: %v (restore claim: %v, release new claim: %w)", err, backErr, relErr)
			}
			return fmt.Errorf("persist reschedule: %v (restore claim: %w)", err, backErr)
		}
		return fmt.Errorf("persist reschedule: %w", err)
	}

	*appt = updated
	return nil
}

func (s *LedgerStore) Cancel(ctx context.Context, appt *Appointment) error {
	original := *appt
	updated := *appt
	updated.Status = StatusCancelled
	updated.UpdatedAt = time.Now()

	if err := s.Appointments.PutAppointment(ctx, &updated); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	if err := s.Ledger.Release(ctx, appt.SlotKey(), appt.Ref()); err != nil {
		// Put the original record back so the appointment does not read
		// as cancelled while its claim is still held.
		if restoreErr := s.Appointments.PutAppointment(ctx, &original); restoreErr != nil {
			return fmt.Errorf("release claim: %v (restore record: %w)", err, restoreErr)
		}
		return fmt.Errorf("release claim: %w", err)
	}

	*appt = updated
	return nil
}
