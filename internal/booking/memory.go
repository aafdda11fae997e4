package booking

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in a mutex-guarded map. It backs
// LedgerStore in tests and single-process deployments.
type MemoryRepository struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appts: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a
	return &out, nil
}

func (r *MemoryRepository) ListForDay(_ context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.DoctorID != doctorID || a.Date != date {
			continue
		}
		if branchID != nil && (a.BranchID == nil || *a.BranchID != *branchID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepository) PutAppointment(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appts[appt.ID] = *appt
	return nil
}
