package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/api/dto"
	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/repository"
	"github.com/spec-kit/agency-queue/internal/service"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// TicketsHandler exposes the public queue endpoints used by kiosks and
// client phones.
type TicketsHandler struct {
	queue *service.QueueService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(queue *service.QueueService) *TicketsHandler {
	return &TicketsHandler{queue: queue}
}

// CreateTicket POST /agencies/:agencyID/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	view, err := h.queue.CreateTicket(c.UserContext(), service.TicketCreateInput{
		AgencyID:    c.Params("agencyID"),
		ServiceCode: req.ServiceCode,
		Priority:    req.Priority,
		Source:      domain.TicketSourceKiosk,
		ClientName:  req.ClientName,
		Notes:       req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(view.Ticket, view.Position)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.queue.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view.Ticket, view.Position)})
}

// Board GET /agencies/:agencyID/queue.
func (h *TicketsHandler) Board(c *fiber.Ctx) error {
	board, err := h.queue.Board(c.UserContext(), c.Params("agencyID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": boardResponse(board)})
}

func ticketResponse(ticket *domain.Ticket, position int) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Number:      ticket.DisplayNumber(),
		AgencyID:    ticket.AgencyID,
		ServiceCode: ticket.ServiceCode,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		Source:      ticket.Source,
		Position:    position,
		CounterID:   ticket.CounterID,
		ClientName:  ticket.ClientName,
		Notes:       ticket.Notes,
		CreatedAt:   ticket.CreatedAt,
		CalledAt:    ticket.CalledAt,
		StartedAt:   ticket.StartedAt,
		CompletedAt: ticket.CompletedAt,
	}
}

func boardResponse(board *repository.Board) dto.BoardResponse {
	resp := dto.BoardResponse{
		Waiting: make([]dto.TicketResponse, 0, len(board.Waiting)),
		Called:  make([]dto.TicketResponse, 0, len(board.Called)),
	}
	for i := range board.Waiting {
		resp.Waiting = append(resp.Waiting, ticketResponse(&board.Waiting[i], i+1))
	}
	for i := range board.Called {
		resp.Called = append(resp.Called, ticketResponse(&board.Called[i], 0))
	}
	return resp
}
