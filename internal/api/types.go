package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	TenantID       string `json:"tenant_id"`
	BranchID       string `json:"branch_id,omitempty"`
	DoctorID       string `json:"doctor_id"`
	PatientID      string `json:"patient_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`
	History        string `json:"history,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	BranchID  *uuid.UUID `json:"branch_id,omitempty"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type AvailableSlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
