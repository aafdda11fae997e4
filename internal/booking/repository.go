package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/careslot/booking-engine/internal/ledger"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository covers the read side: appointment lookups and claim
// inspection. Reads carry no ordering guarantee relative to concurrent
// writes; the ledger, not the listing, is authoritative for exclusivity.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListForDay returns the doctor's appointments on a "YYYY-MM-DD"
	// date, optionally narrowed to one branch.
	ListForDay(ctx context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]Appointment, error)

	// ClaimAt returns the ledger claim for a key, nil when free.
	ClaimAt(ctx context.Context, key ledger.SlotKey) (*ledger.SlotClaim, error)
}

// Store adds the compound write operations. Each one is atomic: the
// appointment record and its slot claim always change together, so no
// reader ever observes the pair disagreeing.
type Store interface {
	Repository

	// Book claims appt's SlotKey and persists the record in one
	// transaction. ledger.ErrSlotTaken means nothing was written.
	Book(ctx context.Context, appt *Appointment) error

	// Move re-keys appt's claim to (newDate, newTime) and updates the
	// record in one transaction, mutating appt's slot fields on success.
	// ledger.ErrSlotTaken means the old claim and record are untouched.
	Move(ctx context.Context, appt *Appointment, newDate, newTime string) error

	// Cancel marks appt cancelled and releases its claim in one
	// transaction.
	Cancel(ctx context.Context, appt *Appointment) error
}
