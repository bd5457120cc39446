package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/api/dto"
	"github.com/spec-kit/agency-queue/internal/auth"
	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/service"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// CountersHandler exposes staff counter and ticket lifecycle endpoints.
type CountersHandler struct {
	assignments *service.AssignmentService
}

// NewCountersHandler constructs handler.
func NewCountersHandler(assignments *service.AssignmentService) *CountersHandler {
	return &CountersHandler{assignments: assignments}
}

// CallNext POST /counters/:counterID/call-next.
func (h *CountersHandler) CallNext(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.CallNext(c.UserContext(), staff, c.Params("counterID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

// StartServing POST /tickets/:id/start.
func (h *CountersHandler) StartServing(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.StartServingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.assignments.StartServing(c.UserContext(), staff, c.Params("id"), req.CounterID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

// Complete POST /tickets/:id/complete.
func (h *CountersHandler) Complete(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.assignments.Complete(c.UserContext(), staff, c.Params("id"), req.CounterID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

// Cancel POST /tickets/:id/cancel.
func (h *CountersHandler) Cancel(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.CancelTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.assignments.Cancel(c.UserContext(), staff, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

// MarkNoShow POST /tickets/:id/no-show.
func (h *CountersHandler) MarkNoShow(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.NoShowTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.assignments.MarkNoShow(c.UserContext(), staff, c.Params("id"), req.CounterID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

// Transfer POST /tickets/:id/transfer.
func (h *CountersHandler) Transfer(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.TransferTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.assignments.Transfer(c.UserContext(), staff, c.Params("id"), req.TargetService)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, 0)})
}

func requireStaff(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}
