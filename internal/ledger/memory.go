package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process ledger. It carries the full
// exclusivity guarantee for single-process deployments and tests.
type Memory struct {
	mu     sync.Mutex
	claims map[string]SlotClaim
}

func NewMemory() *Memory {
	return &Memory{claims: make(map[string]SlotClaim)}
}

func (m *Memory) TryClaim(_ context.Context, key SlotKey, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if _, taken := m.claims[k]; taken {
		return ErrSlotTaken
	}
	m.claims[k] = SlotClaim{
		Key:           key,
		AppointmentID: ref.AppointmentID,
		TenantID:      ref.TenantID,
		CreatedAt:     time.Now(),
	}
	return nil
}

func (m *Memory) MoveClaim(_ context.Context, oldKey, newKey SlotKey, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nk := newKey.String()
	if _, taken := m.claims[nk]; taken {
		return ErrSlotTaken
	}

	ok := oldKey.String()
	if cur, held := m.claims[ok]; held && cur.AppointmentID == ref.AppointmentID {
		delete(m.claims, ok)
	}
	m.claims[nk] = SlotClaim{
		Key:           newKey,
		AppointmentID: ref.AppointmentID,
		TenantID:      ref.TenantID,
		CreatedAt:     time.Now(),
	}
	return nil
}

func (m *Memory) Release(_ context.Context, key SlotKey, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if cur, held := m.claims[k]; held && cur.AppointmentID == ref.AppointmentID {
		delete(m.claims, k)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key SlotKey) (*SlotClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, held := m.claims[key.String()]; held {
		claim := c
		return &claim, nil
	}
	return nil, nil
}
