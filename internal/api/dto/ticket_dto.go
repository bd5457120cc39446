package dto

import (
	"time"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// CreateTicketRequest payload for kiosk ticket issuance.
type CreateTicketRequest struct {
	ServiceCode string                `json:"service_code" validate:"required"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=normal high"`
	ClientName  *string               `json:"client_name" validate:"omitempty,max=120"`
	Notes       string                `json:"notes" validate:"max=500"`
}

// TicketResponse is the client-facing ticket representation. Position is
// 1-based among waiting tickets and omitted once the ticket leaves the
// waiting state.
type TicketResponse struct {
	ID          string                `json:"id"`
	Number      string                `json:"number"`
	AgencyID    string                `json:"agency_id"`
	ServiceCode string                `json:"service_code"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	Source      domain.TicketSource   `json:"source"`
	Position    int                   `json:"position,omitempty"`
	CounterID   *string               `json:"counter_id,omitempty"`
	ClientName  *string               `json:"client_name,omitempty"`
	Notes       string                `json:"notes,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CalledAt    *time.Time            `json:"called_at,omitempty"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// BoardResponse is the queue monitor view.
type BoardResponse struct {
	Waiting []TicketResponse `json:"waiting"`
	Called  []TicketResponse `json:"called"`
}

// StartServingRequest payload. The counter must match the one the ticket
// was called to.
type StartServingRequest struct {
	CounterID string `json:"counter_id" validate:"required"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	CounterID string `json:"counter_id" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

// NoShowTicketRequest payload.
type NoShowTicketRequest struct {
	CounterID string `json:"counter_id" validate:"required"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// TransferTicketRequest payload.
type TransferTicketRequest struct {
	TargetService string `json:"target_service" validate:"required"`
}
