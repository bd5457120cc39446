package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/events"
	"github.com/spec-kit/agency-queue/internal/repository"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// AssignmentService moves tickets between counters and lifecycle states.
type AssignmentService struct {
	tickets    repository.TicketRepository
	counters   repository.CounterRepository
	agencies   repository.AgencyRepository
	dispatcher events.Dispatcher
	retryLimit int
}

// AssignmentDependencies bundles repositories for the assignment service.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	CounterRepo repository.CounterRepository
	AgencyRepo  repository.AgencyRepository
	Dispatcher  events.Dispatcher
}

// NewAssignmentService constructs the service.
func NewAssignmentService(cfg config.QueueConfig, deps AssignmentDependencies) *AssignmentService {
	retryLimit := cfg.ClaimRetryLimit
	if retryLimit <= 0 {
		retryLimit = 10
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		counters:   deps.CounterRepo,
		agencies:   deps.AgencyRepo,
		dispatcher: deps.Dispatcher,
		retryLimit: retryLimit,
	}
}

// CallNext claims the best waiting ticket for a counter. Candidates are
// ordered by priority then age; a claim lost to a concurrent counter is
// retried against the next candidate up to the configured limit, so two
// counters calling at once never receive the same ticket.
func (s *AssignmentService) CallNext(ctx context.Context, staff *domain.StaffMember, counterID string) (*domain.Ticket, error) {
	counter, err := s.counters.GetByID(ctx, counterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("counter", map[string]any{"counter_id": counterID})
		}
		return nil, err
	}
	if !counter.IsActive {
		return nil, apperrors.NewStateError("counter is inactive", map[string]any{"counter_id": counter.ID})
	}
	if counter.ActiveTicketID != nil {
		return nil, apperrors.NewStateError("counter already has an active ticket", map[string]any{
			"counter_id": counter.ID,
			"ticket_id":  *counter.ActiveTicketID,
		})
	}
	if err := s.checkAgencyScope(staff, counter.AgencyID); err != nil {
		return nil, err
	}

	agency, err := s.agencies.GetByID(ctx, counter.AgencyID)
	if err != nil {
		return nil, err
	}
	day := agency.LocalDay(time.Now())

	attempts := 0
	for attempts < s.retryLimit {
		candidates, err := s.tickets.ListWaiting(ctx, counter.AgencyID, counter.AllowedServices, day)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, apperrors.NewQueueEmpty(map[string]any{"counter_id": counter.ID})
		}

		for _, candidate := range domain.OrderCandidates(candidates) {
			attempts++
			ticket, err := s.tickets.Claim(ctx, candidate.ID, candidate.Version, counter.ID, time.Now())
			if err != nil {
				if errors.Is(err, repository.ErrCounterBusy) {
					// A concurrent call-next on this counter won; the busy
					// precheck above cannot see it.
					return nil, apperrors.NewStateError("counter already has an active ticket", map[string]any{
						"counter_id": counter.ID,
					})
				}
				if errors.Is(err, repository.ErrConflict) {
					if attempts >= s.retryLimit {
						return nil, apperrors.NewQueueEmpty(map[string]any{
							"counter_id": counter.ID,
							"attempts":   attempts,
						})
					}
					continue
				}
				return nil, err
			}

			publishEvent(ctx, s.dispatcher, events.Event{
				Type:     events.EventTicketCalled,
				AgencyID: ticket.AgencyID,
				Actor:    staffActor(staff),
				Payload: events.TicketCalledPayload{
					TicketID:     ticket.ID,
					Number:       ticket.DisplayNumber(),
					CounterID:    counter.ID,
					CounterLabel: counter.Label,
				},
			})
			return ticket, nil
		}
	}

	return nil, apperrors.NewQueueEmpty(map[string]any{
		"counter_id": counter.ID,
		"attempts":   attempts,
	})
}

// StartServing moves a called ticket to serving at its assigned counter.
func (s *AssignmentService) StartServing(ctx context.Context, staff *domain.StaffMember, ticketID, counterID string) (*domain.Ticket, error) {
	ticket, err := s.loadScopedTicket(ctx, staff, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireCounter(ticket, counterID); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusCalled {
		return nil, apperrors.NewStateError("ticket is not in called state", map[string]any{
			"ticket_id": ticket.ID,
			"status":    ticket.Status,
		})
	}

	updated, err := s.tickets.StartServing(ctx, ticket.ID, ticket.Version, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, err
	}
	return updated, nil
}

// Complete finishes service on a ticket at the acting counter.
func (s *AssignmentService) Complete(ctx context.Context, staff *domain.StaffMember, ticketID, counterID, notes string) (*domain.Ticket, error) {
	ticket, err := s.loadScopedTicket(ctx, staff, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireCounter(ticket, counterID); err != nil {
		return nil, err
	}
	return s.finish(ctx, staff, ticket, domain.TicketStatusCompleted, notes)
}

// Cancel voids a ticket that has not completed service. Cancellation is not
// bound to a counter: waiting tickets have none.
func (s *AssignmentService) Cancel(ctx context.Context, staff *domain.StaffMember, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.loadScopedTicket(ctx, staff, ticketID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, staff, ticket, domain.TicketStatusCancelled, reason)
}

// MarkNoShow records that a called client never presented at the counter.
func (s *AssignmentService) MarkNoShow(ctx context.Context, staff *domain.StaffMember, ticketID, counterID string) (*domain.Ticket, error) {
	ticket, err := s.loadScopedTicket(ctx, staff, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireCounter(ticket, counterID); err != nil {
		return nil, err
	}
	return s.finish(ctx, staff, ticket, domain.TicketStatusNoShow, "")
}

// Transfer requeues a ticket under another service. The ticket keeps its
// priority and creation time, so it does not move to the back of the target
// queue.
func (s *AssignmentService) Transfer(ctx context.Context, staff *domain.StaffMember, ticketID, targetService string) (*domain.Ticket, error) {
	targetService = strings.ToLower(strings.TrimSpace(targetService))
	if targetService == "" {
		return nil, apperrors.NewValidationError("target_service is required", nil)
	}

	ticket, err := s.loadScopedTicket(ctx, staff, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ServiceCode == targetService {
		return nil, apperrors.NewValidationError("ticket already belongs to target service", map[string]any{
			"service_code": targetService,
		})
	}
	if ticket.Status != domain.TicketStatusWaiting && ticket.Status != domain.TicketStatusCalled {
		return nil, apperrors.NewStateError("ticket cannot be transferred in current state", map[string]any{
			"ticket_id": ticket.ID,
			"status":    ticket.Status,
		})
	}

	fromService := ticket.ServiceCode
	updated, err := s.tickets.Requeue(ctx, ticket.ID, ticket.Version, targetService)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketTransferred,
		AgencyID: updated.AgencyID,
		Actor:    staffActor(staff),
		Payload: events.TicketTransferredPayload{
			TicketID:    updated.ID,
			Number:      updated.DisplayNumber(),
			FromService: fromService,
			ToService:   targetService,
		},
	})
	return updated, nil
}

func (s *AssignmentService) finish(ctx context.Context, staff *domain.StaffMember, ticket *domain.Ticket, status domain.TicketStatus, notes string) (*domain.Ticket, error) {
	if !domain.CanTransition(ticket.Status, status) {
		return nil, apperrors.NewStateError("illegal ticket transition", map[string]any{
			"ticket_id": ticket.ID,
			"from":      ticket.Status,
			"to":        status,
		})
	}

	updated, err := s.tickets.Finish(ctx, ticket.ID, ticket.Version, status, notes, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCompleted,
		AgencyID: updated.AgencyID,
		Actor:    staffActor(staff),
		Payload: events.TicketCompletedPayload{
			TicketID: updated.ID,
			Number:   updated.DisplayNumber(),
			Status:   updated.Status,
		},
	})
	return updated, nil
}

func (s *AssignmentService) loadScopedTicket(ctx context.Context, staff *domain.StaffMember, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if err := s.checkAgencyScope(staff, ticket.AgencyID); err != nil {
		return nil, err
	}
	return ticket, nil
}

// requireCounter ensures the caller acts from the counter the ticket was
// called to.
func requireCounter(ticket *domain.Ticket, counterID string) error {
	if counterID == "" {
		return apperrors.NewValidationError("counter_id is required", nil)
	}
	if ticket.CounterID == nil || *ticket.CounterID != counterID {
		return apperrors.NewStateError("ticket is not assigned to this counter", map[string]any{
			"ticket_id":  ticket.ID,
			"counter_id": counterID,
		})
	}
	return nil
}

// checkAgencyScope restricts agency-bound staff to their own agency.
// Admins carry no agency binding and pass through.
func (s *AssignmentService) checkAgencyScope(staff *domain.StaffMember, agencyID string) error {
	if staff == nil {
		return apperrors.NewUnauthorized("staff context required")
	}
	if staff.AgencyID != nil && *staff.AgencyID != agencyID {
		return apperrors.NewForbidden("staff not assigned to this agency")
	}
	return nil
}

func staffActor(staff *domain.StaffMember) events.Actor {
	if staff == nil {
		return events.Actor{}
	}
	return events.Actor{StaffID: &staff.ID}
}
