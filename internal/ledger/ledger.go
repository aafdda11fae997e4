// Package ledger enforces slot exclusivity: one claim per
// doctor+date+time, under any amount of concurrency. A key with no claim
// is free. Claims have no TTL; they live exactly as long as the owning
// appointment holds the slot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotTaken is the expected, retryable conflict outcome: someone
	// else holds the key. Callers surface it as "pick another slot",
	// never as a system error.
	ErrSlotTaken = errors.New("slot already claimed")
)

// SlotKey identifies one bookable slot. Date is "YYYY-MM-DD", Time is
// 24-hour "HH:MM" (already normalized).
type SlotKey struct {
	DoctorID uuid.UUID
	Date     string
	Time     string
}

// String is the composite key form used for redis keys and unique
// indexes.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date, k.Time)
}

// Ref identifies the would-be owner of a claim.
type Ref struct {
	AppointmentID uuid.UUID
	TenantID      uuid.UUID
}

// SlotClaim is the ledger entry for a claimed key.
type SlotClaim struct {
	Key           SlotKey
	AppointmentID uuid.UUID
	TenantID      uuid.UUID
	CreatedAt     time.Time
}

// Ledger is the single source of truth for slot occupancy. Every
// operation is atomic with respect to the others; a conflicting TryClaim
// or MoveClaim leaves the ledger untouched.
type Ledger interface {
	// TryClaim creates a claim at key for ref, or returns ErrSlotTaken
	// without side effects if the key is already claimed.
	TryClaim(ctx context.Context, key SlotKey, ref Ref) error

	// MoveClaim atomically verifies newKey is free, removes ref's claim
	// at oldKey, and claims newKey. On ErrSlotTaken nothing changes.
	MoveClaim(ctx context.Context, oldKey, newKey SlotKey, ref Ref) error

	// Release removes the claim at key iff it belongs to ref; otherwise
	// it is a no-op.
	Release(ctx context.Context, key SlotKey, ref Ref) error

	// Get returns the claim at key, or nil when the key is free.
	Get(ctx context.Context, key SlotKey) (*SlotClaim, error)
}
