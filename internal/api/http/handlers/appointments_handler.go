package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/api/dto"
	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/service"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// AppointmentsHandler exposes slot discovery, booking and check-in
// endpoints.
type AppointmentsHandler struct {
	bookings *service.BookingService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(bookings *service.BookingService) *AppointmentsHandler {
	return &AppointmentsHandler{bookings: bookings}
}

// ListSlots GET /agencies/:agencyID/slots?date=YYYY-MM-DD.
func (h *AppointmentsHandler) ListSlots(c *fiber.Ctx) error {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		return err
	}
	slots, err := h.bookings.AvailableSlots(c.UserContext(), c.Params("agencyID"), date)
	if err != nil {
		return err
	}
	resp := make([]dto.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		resp = append(resp, dto.SlotResponse{
			Time:        slot.Time,
			Capacity:    slot.Capacity,
			BookedCount: slot.BookedCount,
			Available:   slot.Available(),
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Book POST /agencies/:agencyID/appointments.
func (h *AppointmentsHandler) Book(c *fiber.Ctx) error {
	var req dto.BookAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}

	appointment, err := h.bookings.Book(c.UserContext(), service.BookingInput{
		AgencyID:    c.Params("agencyID"),
		ServiceCode: req.ServiceCode,
		Date:        date,
		TimeSlot:    req.TimeSlot,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": appointmentResponse(appointment)})
}

// Lookup GET /appointments/lookup?code=RDV-XXXXXX.
func (h *AppointmentsHandler) Lookup(c *fiber.Ctx) error {
	appointment, err := h.bookings.Lookup(c.UserContext(), c.Query("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appointment)})
}

// Confirm POST /appointments/:id/confirm.
func (h *AppointmentsHandler) Confirm(c *fiber.Ctx) error {
	appointment, err := h.bookings.Confirm(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appointment)})
}

// Cancel POST /appointments/:id/cancel.
func (h *AppointmentsHandler) Cancel(c *fiber.Ctx) error {
	var req dto.CancelAppointmentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	appointment, err := h.bookings.CancelAppointment(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appointment)})
}

// CheckIn POST /checkin.
func (h *AppointmentsHandler) CheckIn(c *fiber.Ctx) error {
	var req dto.CheckInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	result, err := h.bookings.CheckIn(c.UserContext(), req.ConfirmationCode)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CheckInResponse{
		Appointment: appointmentResponse(result.Appointment),
		Ticket:      ticketResponse(result.Ticket.Ticket, result.Ticket.Position),
	}})
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.NewValidationError("date is required", nil)
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("invalid date format, expected YYYY-MM-DD", map[string]any{"date": value})
	}
	return date, nil
}

func appointmentResponse(appointment *domain.Appointment) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:               appointment.ID,
		AgencyID:         appointment.AgencyID,
		ServiceCode:      appointment.ServiceCode,
		Date:             appointment.Date.Format("2006-01-02"),
		TimeSlot:         appointment.TimeSlot,
		Status:           appointment.Status,
		ConfirmationCode: appointment.ConfirmationCode,
		ClientName:       appointment.ClientName,
		CancelReason:     appointment.CancelReason,
		CreatedAt:        appointment.CreatedAt,
		ConfirmedAt:      appointment.ConfirmedAt,
		CheckedInAt:      appointment.CheckedInAt,
		CancelledAt:      appointment.CancelledAt,
	}
}
