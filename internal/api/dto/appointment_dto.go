package dto

import (
	"time"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// BookAppointmentRequest payload.
type BookAppointmentRequest struct {
	ServiceCode string  `json:"service_code" validate:"required"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot    string  `json:"time_slot" validate:"required,datetime=15:04"`
	ClientName  string  `json:"client_name" validate:"required,max=120"`
	ClientPhone *string `json:"client_phone" validate:"omitempty,e164"`
}

// AppointmentResponse is the client-facing appointment representation.
type AppointmentResponse struct {
	ID               string                   `json:"id"`
	AgencyID         string                   `json:"agency_id"`
	ServiceCode      string                   `json:"service_code"`
	Date             string                   `json:"date"`
	TimeSlot         string                   `json:"time_slot"`
	Status           domain.AppointmentStatus `json:"status"`
	ConfirmationCode string                   `json:"confirmation_code"`
	ClientName       string                   `json:"client_name"`
	CancelReason     string                   `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	ConfirmedAt      *time.Time               `json:"confirmed_at,omitempty"`
	CheckedInAt      *time.Time               `json:"checked_in_at,omitempty"`
	CancelledAt      *time.Time               `json:"cancelled_at,omitempty"`
}

// SlotResponse describes a bookable time slot.
type SlotResponse struct {
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	BookedCount int    `json:"booked_count"`
	Available   bool   `json:"available"`
}

// CancelAppointmentRequest payload.
type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CheckInRequest payload.
type CheckInRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// CheckInResponse pairs the appointment with its issued ticket.
type CheckInResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Ticket      TicketResponse      `json:"ticket"`
}
