package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/booking-engine/internal/ledger"
)

// PgStore implements Store on Postgres. Every compound operation runs in
// one transaction, and the slot_claims unique index on
// (doctor_id, slot_date, slot_time) enforces exclusivity structurally —
// a unique violation surfaces as ledger.ErrSlotTaken, never as a system
// fault.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const appointmentColumns = `
	id, tenant_id, branch_id, doctor_id, patient_id,
	to_char(slot_date, 'YYYY-MM-DD'), slot_time, requested_time,
	chief_complaint, history, status, idempotency_key, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var branchID *uuid.UUID
	var idemKey *string

	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&branchID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.Time,
		&a.RequestedTime,
		&a.ChiefComplaint,
		&a.History,
		&a.Status,
		&idemKey,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.BranchID = branchID
	if idemKey != nil {
		a.IdempotencyKey = *idemKey
	}
	return &a, nil
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) ListForDay(ctx context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_date = $2::date
		  AND ($3::uuid IS NULL OR branch_id = $3)
		ORDER BY slot_time
	`, doctorID, date, branchID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *PgStore) ClaimAt(ctx context.Context, key ledger.SlotKey) (*ledger.SlotClaim, error) {
	var c ledger.SlotClaim
	c.Key = key

	err := s.pool.QueryRow(ctx, `
		SELECT appointment_id, tenant_id, created_at
		FROM slot_claims
		WHERE doctor_id = $1 AND slot_date = $2::date AND slot_time = $3
	`, key.DoctorID, key.Date, key.Time).Scan(&c.AppointmentID, &c.TenantID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load slot claim: %w", err)
	}
	return &c, nil
}

func (s *PgStore) Book(ctx context.Context, appt *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertClaim(ctx, tx, appt.SlotKey(), appt.Ref()); err != nil {
		return err
	}

	var idemKey *string
	if appt.IdempotencyKey != "" {
		idemKey = &appt.IdempotencyKey
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			id, tenant_id, branch_id, doctor_id, patient_id,
			slot_date, slot_time, requested_time,
			chief_complaint, history, status, idempotency_key,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10, $11, $12, $13, $14)
	`, appt.ID, appt.TenantID, appt.BranchID, appt.DoctorID, appt.PatientID,
		appt.Date, appt.Time, appt.RequestedTime,
		appt.ChiefComplaint, appt.History, appt.Status, idemKey,
		appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgStore) Move(ctx context.Context, appt *Appointment, newDate, newTime string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	oldKey := appt.SlotKey()
	newKey := ledger.SlotKey{DoctorID: appt.DoctorID, Date: newDate, Time: newTime}

	if err := insertClaim(ctx, tx, newKey, appt.Ref()); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM slot_claims
		WHERE doctor_id = $1 AND slot_date = $2::date AND slot_time = $3
		  AND appointment_id = $4
	`, oldKey.DoctorID, oldKey.Date, oldKey.Time, appt.ID)
	if err != nil {
		return fmt.Errorf("release old claim: %w", err)
	}

	now := time.Now()
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET slot_date = $2::date, slot_time = $3, updated_at = $4
		WHERE id = $1
	`, appt.ID, newDate, newTime, now)
	if err != nil {
		return fmt.Errorf("update appointment slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}

	appt.Date = newDate
	appt.Time = newTime
	appt.UpdatedAt = now
	return nil
}

func (s *PgStore) Cancel(ctx context.Context, appt *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, appt.ID, StatusCancelled, now)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM slot_claims
		WHERE appointment_id = $1
	`, appt.ID)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}

	appt.Status = StatusCancelled
	appt.UpdatedAt = now
	return nil
}

func insertClaim(ctx context.Context, tx pgx.Tx, key ledger.SlotKey, ref ledger.Ref) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO slot_claims (doctor_id, slot_date, slot_time, appointment_id, tenant_id, created_at)
		VALUES ($1, $2::date, $3, $4, $5, now())
	`, key.DoctorID, key.Date, key.Time, ref.AppointmentID, ref.TenantID)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrSlotTaken
		}
		return fmt.Errorf("insert slot claim: %w", err)
	}
	return nil
}
