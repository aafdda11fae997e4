package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/booking-engine/internal/booking"
	"github.com/careslot/booking-engine/internal/ledger"
)

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_tenant_id", "tenant_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		branchID, ok := parseOptionalUUID(req.BranchID)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), booking.BookingRequest{
			TenantID:       tenantID,
			BranchID:       branchID,
			DoctorID:       doctorID,
			PatientID:      patientID,
			Date:           req.Date,
			Time:           req.Time,
			ChiefComplaint: req.ChiefComplaint,
			History:        req.History,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rc, ok := requesterFromHeaders(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_requester", "X-Tenant-ID and X-Patient-ID must be valid UUIDs")
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, req.Date, req.Time, rc)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		rc, ok := requesterFromHeaders(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_requester", "X-Tenant-ID and X-Patient-ID must be valid UUIDs")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, rc)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func listSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		branchID, ok := parseOptionalUUID(r.URL.Query().Get("branch_id"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, date, branchID)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		if slots == nil {
			slots = []string{}
		}

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			DoctorID: doctorID,
			Date:     date,
			Slots:    slots,
		})
	}
}

// handleBookingError maps the service error taxonomy onto HTTP codes.
// Conflicts are expected outcomes, not faults: the caller should re-fetch
// available slots and pick again.
func handleBookingError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_request", verr.Error())
	case errors.Is(err, booking.ErrDateBlocked):
		writeError(w, http.StatusBadRequest, "date_blocked", "the doctor is not taking appointments on this date")
	case errors.Is(err, booking.ErrSlotNotInSchedule):
		writeError(w, http.StatusBadRequest, "slot_not_in_schedule", "the requested time is outside the doctor's schedule")
	case errors.Is(err, ledger.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", "this slot was just taken, please pick another")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "this appointment no longer exists")
	case errors.Is(err, booking.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "not_allowed", "you may not modify this appointment")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// requesterFromHeaders reads the identity the auth gateway injected.
// Authentication itself happens upstream of this service.
func requesterFromHeaders(r *http.Request) (booking.RequesterContext, bool) {
	tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
	if err != nil {
		return booking.RequesterContext{}, false
	}

	rc := booking.RequesterContext{
		TenantID: tenantID,
		Staff:    r.Header.Get("X-Staff") == "true",
	}

	if raw := r.Header.Get("X-Patient-ID"); raw != "" {
		patientID, err := uuid.Parse(raw)
		if err != nil {
			return booking.RequesterContext{}, false
		}
		rc.PatientID = patientID
	} else if !rc.Staff {
		return booking.RequesterContext{}, false
	}

	return rc, true
}

func parseOptionalUUID(raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func toResponse(appt *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        appt.ID,
		TenantID:  appt.TenantID,
		BranchID:  appt.BranchID,
		DoctorID:  appt.DoctorID,
		PatientID: appt.PatientID,
		Date:      appt.Date,
		Time:      appt.Time,
		Status:    string(appt.Status),
		CreatedAt: appt.CreatedAt,
		UpdatedAt: appt.UpdatedAt,
	}
}
