package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/events"
	"github.com/spec-kit/agency-queue/internal/repository"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// QueueService coordinates ticket issuance and queue views.
type QueueService struct {
	tickets    repository.TicketRepository
	sequences  repository.SequenceRepository
	agencies   repository.AgencyRepository
	dispatcher events.Dispatcher
}

// QueueDependencies bundles repositories for the queue service.
type QueueDependencies struct {
	TicketRepo   repository.TicketRepository
	SequenceRepo repository.SequenceRepository
	AgencyRepo   repository.AgencyRepository
	Dispatcher   events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	AgencyID      string
	ServiceCode   string
	Priority      domain.TicketPriority
	Source        domain.TicketSource
	ClientName    *string
	Notes         string
	AppointmentID *string
}

// TicketView pairs a ticket with its live queue position. Position is
// 1-based and zero for tickets no longer waiting.
type TicketView struct {
	Ticket   *domain.Ticket
	Position int
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	return &QueueService{
		tickets:    deps.TicketRepo,
		sequences:  deps.SequenceRepo,
		agencies:   deps.AgencyRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket issues the next ticket number for the agency's service queue.
// Numbers come from the per-day sequence row, so they are dense even when
// two kiosks print at the same instant.
func (s *QueueService) CreateTicket(ctx context.Context, input TicketCreateInput) (*TicketView, error) {
	input.ServiceCode = strings.ToLower(strings.TrimSpace(input.ServiceCode))
	if input.ServiceCode == "" {
		return nil, apperrors.NewValidationError("service_code is required", nil)
	}
	switch input.Priority {
	case "":
		input.Priority = domain.TicketPriorityNormal
	case domain.TicketPriorityNormal, domain.TicketPriorityHigh:
	default:
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	if input.Source == "" {
		input.Source = domain.TicketSourceKiosk
	}

	agency, err := s.agencies.GetByID(ctx, input.AgencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agency", map[string]any{"agency_id": input.AgencyID})
		}
		return nil, err
	}
	if !agency.IsActive {
		return nil, apperrors.NewStateError("agency is closed", map[string]any{"agency_id": agency.ID})
	}

	now := time.Now()
	day := agency.LocalDay(now)

	number, err := s.sequences.NextNumber(ctx, agency.ID, input.ServiceCode, day)
	if err != nil {
		return nil, apperrors.NewSequenceError(err)
	}

	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		AgencyID:      agency.ID,
		ServiceCode:   input.ServiceCode,
		Number:        number,
		Priority:      input.Priority,
		Status:        domain.TicketStatusWaiting,
		Source:        input.Source,
		AppointmentID: input.AppointmentID,
		ClientName:    input.ClientName,
		Notes:         input.Notes,
		Day:           day,
		CreatedAt:     now,
		Version:       1,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	position, err := s.tickets.WaitingBefore(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		AgencyID: agency.ID,
		Actor:    events.Actor{Kiosk: input.Source == domain.TicketSourceKiosk},
		Payload: events.TicketCreatedPayload{
			TicketID:    ticket.ID,
			Number:      ticket.DisplayNumber(),
			ServiceCode: ticket.ServiceCode,
			Priority:    ticket.Priority,
			Source:      ticket.Source,
		},
	})
	return &TicketView{Ticket: ticket, Position: position + 1}, nil
}

// GetTicket returns a ticket with its current position for status polling.
func (s *QueueService) GetTicket(ctx context.Context, ticketID string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	view := &TicketView{Ticket: ticket}
	if ticket.Status == domain.TicketStatusWaiting {
		ahead, err := s.tickets.WaitingBefore(ctx, ticket)
		if err != nil {
			return nil, err
		}
		view.Position = ahead + 1
	}
	return view, nil
}

// Board returns the monitor view of today's queue for an agency.
func (s *QueueService) Board(ctx context.Context, agencyID string) (*repository.Board, error) {
	agency, err := s.agencies.GetByID(ctx, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agency", map[string]any{"agency_id": agencyID})
		}
		return nil, err
	}
	return s.tickets.Board(ctx, agency.ID, agency.LocalDay(time.Now()))
}

func (s *QueueService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}
