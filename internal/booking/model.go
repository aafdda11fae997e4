package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking-engine/internal/ledger"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment is the persisted booking record. Date is "YYYY-MM-DD" and
// Time the normalized 24-hour "HH:MM"; RequestedTime preserves the raw
// form the caller sent. ChiefComplaint and History are opaque intake
// fields carried through untouched.
type Appointment struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	BranchID       *uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	Date           string
	Time           string
	RequestedTime  string
	ChiefComplaint string
	History        string
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HoldsSlot reports whether the appointment currently owns its slot
// claim. Cancellation is the only status that releases a claim.
func (a *Appointment) HoldsSlot() bool {
	return a.Status != StatusCancelled
}

// SlotKey is the appointment's current position in the claim ledger.
func (a *Appointment) SlotKey() ledger.SlotKey {
	return ledger.SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// Ref identifies the appointment as a claim owner.
func (a *Appointment) Ref() ledger.Ref {
	return ledger.Ref{AppointmentID: a.ID, TenantID: a.TenantID}
}
