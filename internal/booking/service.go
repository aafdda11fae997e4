package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/booking-engine/internal/blockeddate"
	"github.com/careslot/booking-engine/internal/ledger"
	"github.com/careslot/booking-engine/internal/schedule"
)

var (
	ErrDateBlocked       = errors.New("date is blocked for booking")
	ErrSlotNotInSchedule = errors.New("slot is outside the doctor's schedule")
	ErrNotAllowed        = errors.New("requester may not modify this appointment")
)

// ValidationError reports a rejected request field. It is user-facing
// and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Notifier receives post-commit booking events. Dispatch is
// fire-and-forget: a notifier failure never surfaces as a booking
// failure.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment) error
	AppointmentRescheduled(ctx context.Context, appt *Appointment, oldDate, oldTime string) error
	AppointmentCancelled(ctx context.Context, appt *Appointment) error
}

// BookingRequest is the inbound create payload. Time may arrive in any
// accepted form ("9:00", "2:30 PM"); it is normalized before anything
// touches the ledger.
type BookingRequest struct {
	TenantID       uuid.UUID `validate:"required"`
	BranchID       *uuid.UUID
	DoctorID       uuid.UUID `validate:"required"`
	PatientID      uuid.UUID `validate:"required"`
	Date           string    `validate:"required,datetime=2006-01-02"`
	Time           string    `validate:"required"`
	ChiefComplaint string
	History        string
	IdempotencyKey string
}

// RequesterContext carries the identity invariants the orchestrator
// enforces before mutating: tenant must always match, patient must match
// unless the requester is tenant staff. Full authorization lives outside
// this engine.
type RequesterContext struct {
	PatientID uuid.UUID
	TenantID  uuid.UUID
	Staff     bool
}

func (rc RequesterContext) mayModify(appt *Appointment) bool {
	if appt.TenantID != rc.TenantID {
		return false
	}
	return rc.Staff || appt.PatientID == rc.PatientID
}

// Service is the booking orchestrator: it derives candidate slots,
// checks blocked dates, and drives the atomic claim-and-persist
// operations of the Store. A slot conflict aborts the whole operation
// with nothing written.
type Service struct {
	store     Store
	schedules schedule.Resolver
	blocked   blockeddate.Source
	notifier  Notifier
	log       zerolog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(store Store, schedules schedule.Resolver, blocked blockeddate.Source, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		schedules: schedules,
		blocked:   blocked,
		notifier:  notifier,
		log:       log.With().Str("component", "booking").Logger(),
		validate:  validator.New(),
		now:       time.Now,
	}
}

// ListAvailableSlots composes the grid calculator and the availability
// filter for one doctor and date.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string, branchID *uuid.UUID) ([]string, error) {
	day, err := time.Parse(blockeddate.DateLayout, date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	tmpl, err := s.schedules.EffectiveSchedule(ctx, doctorID, branchID)
	if err != nil {
		// The resolver contract is fail-soft; a broken resolver still
		// must not break listing.
		s.log.Warn().Err(err).Stringer("doctor_id", doctorID).Msg("schedule resolver failed, using default template")
		tmpl = schedule.DefaultTemplate()
	}
	candidates := tmpl.SlotsFor(day)
	if len(candidates) == 0 {
		return nil, nil
	}

	blocked, err := s.blocked.BlockedDates(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load blocked dates: %w", err)
	}

	appts, err := s.store.ListForDay(ctx, doctorID, date, branchID)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	return FreeSlots(candidates, appts, blocked, date, s.now()), nil
}

// BookAppointment runs the create flow: validate, normalize, check
// blocked date and schedule membership, then claim and persist in one
// atomic store operation. ledger.ErrSlotTaken means nothing was written.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, requestError(err)
	}

	normalized, err := schedule.NormalizeTime(req.Time)
	if err != nil {
		return nil, &ValidationError{Field: "time", Reason: "unrecognized time of day"}
	}

	if err := s.checkBookable(ctx, req.DoctorID, req.BranchID, req.Date, normalized); err != nil {
		return nil, err
	}

	now := s.now()
	appt := &Appointment{
		ID:             uuid.New(),
		TenantID:       req.TenantID,
		BranchID:       req.BranchID,
		DoctorID:       req.DoctorID,
		PatientID:      req.PatientID,
		Date:           req.Date,
		Time:           normalized,
		RequestedTime:  req.Time,
		ChiefComplaint: req.ChiefComplaint,
		History:        req.History,
		Status:         StatusConfirmed,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Book(ctx, appt); err != nil {
		if errors.Is(err, ledger.ErrSlotTaken) {
			if prior := s.priorAttempt(ctx, appt.SlotKey(), req); prior != nil {
				return prior, nil
			}
			s.log.Debug().
				Stringer("doctor_id", req.DoctorID).
				Str("date", req.Date).
				Str("time", normalized).
				Msg("slot conflict")
			return nil, ledger.ErrSlotTaken
		}
		s.log.Error().Err(err).Msg("booking failed")
		return nil, err
	}

	s.dispatch(func(ctx context.Context) error {
		return s.notifier.AppointmentBooked(ctx, appt)
	})
	return appt, nil
}

// RescheduleAppointment moves an existing appointment to a new slot. The
// old claim release, new claim, and record update commit together; on
// conflict everything stays as it was.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate, newTime string, rc RequesterContext) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rc.mayModify(appt) {
		return nil, ErrNotAllowed
	}
	if !appt.HoldsSlot() {
		return nil, &ValidationError{Field: "appointment", Reason: "cancelled appointments cannot be rescheduled"}
	}

	if _, err := time.Parse(blockeddate.DateLayout, newDate); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	normalized, err := schedule.NormalizeTime(newTime)
	if err != nil {
		return nil, &ValidationError{Field: "time", Reason: "unrecognized time of day"}
	}

	if appt.Date == newDate && appt.Time == normalized {
		return appt, nil
	}

	if err := s.checkBookable(ctx, appt.DoctorID, appt.BranchID, newDate, normalized); err != nil {
		return nil, err
	}

	oldDate, oldTime := appt.Date, appt.Time
	if err := s.store.Move(ctx, appt, newDate, normalized); err != nil {
		if errors.Is(err, ledger.ErrSlotTaken) {
			return nil, err
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		s.log.Error().Err(err).Stringer("appointment_id", id).Msg("reschedule failed")
		return nil, err
	}

	s.dispatch(func(ctx context.Context) error {
		return s.notifier.AppointmentRescheduled(ctx, appt, oldDate, oldTime)
	})
	return appt, nil
}

// CancelAppointment releases the slot. Cancelling twice is a no-op.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, rc RequesterContext) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rc.mayModify(appt) {
		return nil, ErrNotAllowed
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}

	if err := s.store.Cancel(ctx, appt); err != nil {
		s.log.Error().Err(err).Stringer("appointment_id", id).Msg("cancel failed")
		return nil, err
	}

	s.dispatch(func(ctx context.Context) error {
		return s.notifier.AppointmentCancelled(ctx, appt)
	})
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetAppointmentByID(ctx, id)
}

// checkBookable rejects blocked dates and slots outside the doctor's
// effective grid for that weekday.
func (s *Service) checkBookable(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date, normalizedTime string) error {
	day, err := time.Parse(blockeddate.DateLayout, date)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	blocked, err := s.blocked.BlockedDates(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load blocked dates: %w", err)
	}
	for _, bd := range blocked {
		if bd.Date == date {
			return ErrDateBlocked
		}
	}

	tmpl, err := s.schedules.EffectiveSchedule(ctx, doctorID, branchID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("doctor_id", doctorID).Msg("schedule resolver failed, using default template")
		tmpl = schedule.DefaultTemplate()
	}
	for _, slot := range tmpl.SlotsFor(day) {
		if slot == normalizedTime {
			return nil
		}
	}
	return ErrSlotNotInSchedule
}

// priorAttempt resolves the retry-after-conflict ambiguity: when the
// conflicting claim belongs to an appointment created by an earlier
// attempt with the same idempotency key and patient, the original
// success is returned instead of a false conflict.
func (s *Service) priorAttempt(ctx context.Context, key ledger.SlotKey, req BookingRequest) *Appointment {
	if req.IdempotencyKey == "" {
		return nil
	}

	claim, err := s.store.ClaimAt(ctx, key)
	if err != nil || claim == nil {
		return nil
	}
	prior, err := s.store.GetAppointmentByID(ctx, claim.AppointmentID)
	if err != nil {
		return nil
	}
	if prior.IdempotencyKey == req.IdempotencyKey && prior.PatientID == req.PatientID {
		return prior
	}
	return nil
}

// dispatch runs a post-commit side effect detached from the request:
// its failure is logged and never reported to the caller.
func (s *Service) dispatch(fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Msg("notification dispatch failed")
		}
	}()
}

func requestError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return &ValidationError{Field: f.Field(), Reason: "failed " + f.Tag() + " check"}
	}
	return &ValidationError{Field: "request", Reason: err.Error()}
}
