package events

import (
	"time"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketCalled         EventType = "ticket_called"
	EventTicketCompleted      EventType = "ticket_completed"
	EventTicketTransferred    EventType = "ticket_transferred"
	EventAppointmentBooked    EventType = "appointment_booked"
	EventAppointmentConfirmed EventType = "appointment_confirmed"
	EventAppointmentCheckedIn EventType = "appointment_checked_in"
	EventAppointmentCancelled EventType = "appointment_cancelled"
)

// Actor encapsulates actor metadata for an event. Kiosk and public booking
// flows have no staff actor.
type Actor struct {
	StaffID *string `json:"staff_id,omitempty"`
	Kiosk   bool    `json:"kiosk,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AgencyID  string      `json:"agency_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID    string                `json:"ticket_id"`
	Number      string                `json:"number"`
	ServiceCode string                `json:"service_code"`
	Priority    domain.TicketPriority `json:"priority"`
	Source      domain.TicketSource   `json:"source"`
}

// TicketCalledPayload payload.
type TicketCalledPayload struct {
	TicketID     string `json:"ticket_id"`
	Number       string `json:"number"`
	CounterID    string `json:"counter_id"`
	CounterLabel string `json:"counter_label"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	TicketID string              `json:"ticket_id"`
	Number   string              `json:"number"`
	Status   domain.TicketStatus `json:"status"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	TicketID    string `json:"ticket_id"`
	Number      string `json:"number"`
	FromService string `json:"from_service"`
	ToService   string `json:"to_service"`
}

// AppointmentBookedPayload payload.
type AppointmentBookedPayload struct {
	AppointmentID    string `json:"appointment_id"`
	ConfirmationCode string `json:"confirmation_code"`
	ServiceCode      string `json:"service_code"`
	Date             string `json:"date"`
	TimeSlot         string `json:"time_slot"`
	ClientPhone      string `json:"client_phone,omitempty"`
}

// AppointmentCheckedInPayload payload.
type AppointmentCheckedInPayload struct {
	AppointmentID string `json:"appointment_id"`
	TicketID      string `json:"ticket_id"`
	TicketNumber  string `json:"ticket_number"`
}

// AppointmentCancelledPayload payload.
type AppointmentCancelledPayload struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}
