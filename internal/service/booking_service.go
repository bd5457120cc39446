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

// BookingService manages appointment slots and the appointment lifecycle,
// including the one-shot conversion of a checked-in appointment into a
// priority ticket.
type BookingService struct {
	appointments repository.AppointmentRepository
	slots        repository.SlotRepository
	agencies     repository.AgencyRepository
	queue        *QueueService
	dispatcher   events.Dispatcher
}

// BookingDependencies bundles repositories for the booking service.
type BookingDependencies struct {
	AppointmentRepo repository.AppointmentRepository
	SlotRepo        repository.SlotRepository
	AgencyRepo      repository.AgencyRepository
	Queue           *QueueService
	Dispatcher      events.Dispatcher
}

// BookingInput describes an appointment booking request.
type BookingInput struct {
	AgencyID    string
	ServiceCode string
	Date        time.Time
	TimeSlot    string
	ClientName  string
	ClientPhone *string
}

// CheckInResult pairs the checked-in appointment with the ticket it
// produced.
type CheckInResult struct {
	Appointment *domain.Appointment
	Ticket      *TicketView
}

// NewBookingService constructs the service.
func NewBookingService(deps BookingDependencies) *BookingService {
	return &BookingService{
		appointments: deps.AppointmentRepo,
		slots:        deps.SlotRepo,
		agencies:     deps.AgencyRepo,
		queue:        deps.Queue,
		dispatcher:   deps.Dispatcher,
	}
}

// AvailableSlots returns the day's slot grid for an agency. The grid is the
// configured service hours (or the default windows) expanded to 30-minute
// slots, overlaid with persisted occupancy.
func (s *BookingService) AvailableSlots(ctx context.Context, agencyID string, date time.Time) ([]domain.Slot, error) {
	agency, err := s.agencies.GetByID(ctx, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agency", map[string]any{"agency_id": agencyID})
		}
		return nil, err
	}

	windows, capacity, err := s.serviceWindows(ctx, agency.ID)
	if err != nil {
		return nil, err
	}

	booked, err := s.slots.ListByAgencyDate(ctx, agency.ID, date)
	if err != nil {
		return nil, err
	}
	occupancy := make(map[string]domain.Slot, len(booked))
	for _, slot := range booked {
		occupancy[slot.Time] = slot
	}

	times := domain.SlotTimes(windows)
	grid := make([]domain.Slot, 0, len(times))
	for _, t := range times {
		if slot, ok := occupancy[t]; ok {
			grid = append(grid, slot)
			continue
		}
		grid = append(grid, domain.Slot{
			AgencyID: agency.ID,
			Date:     date,
			Time:     t,
			Capacity: capacity,
		})
	}
	return grid, nil
}

// Book reserves a slot and creates a scheduled appointment with a fresh
// confirmation code.
func (s *BookingService) Book(ctx context.Context, input BookingInput) (*domain.Appointment, error) {
	input.ServiceCode = strings.ToLower(strings.TrimSpace(input.ServiceCode))
	input.ClientName = strings.TrimSpace(input.ClientName)
	if input.ServiceCode == "" {
		return nil, apperrors.NewValidationError("service_code is required", nil)
	}
	if input.ClientName == "" {
		return nil, apperrors.NewValidationError("client_name is required", nil)
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

	today := agency.LocalDay(time.Now())
	if input.Date.Before(today) {
		return nil, apperrors.NewValidationError("date is in the past", map[string]any{
			"date": input.Date.Format("2006-01-02"),
		})
	}

	windows, capacity, err := s.serviceWindows(ctx, agency.ID)
	if err != nil {
		return nil, err
	}
	if !slotInTemplate(domain.SlotTimes(windows), input.TimeSlot) {
		return nil, apperrors.NewValidationError("time slot is outside service hours", map[string]any{
			"time_slot": input.TimeSlot,
		})
	}

	if err := s.slots.Book(ctx, agency.ID, input.Date, input.TimeSlot, capacity); err != nil {
		if errors.Is(err, repository.ErrSlotFull) {
			return nil, apperrors.NewConflict("slot is fully booked", map[string]any{
				"date":      input.Date.Format("2006-01-02"),
				"time_slot": input.TimeSlot,
			})
		}
		return nil, err
	}

	now := time.Now()
	appointment := &domain.Appointment{
		ID:               uuid.NewString(),
		AgencyID:         agency.ID,
		ServiceCode:      input.ServiceCode,
		Date:             input.Date,
		TimeSlot:         input.TimeSlot,
		Status:           domain.AppointmentStatusScheduled,
		ConfirmationCode: domain.NewConfirmationCode(),
		ClientName:       input.ClientName,
		ClientPhone:      input.ClientPhone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.appointments.Create(ctx, appointment); err != nil {
		// Give the seat back, the reservation never materialized.
		_ = s.slots.Release(ctx, agency.ID, input.Date, input.TimeSlot)
		return nil, err
	}

	phone := ""
	if appointment.ClientPhone != nil {
		phone = *appointment.ClientPhone
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventAppointmentBooked,
		AgencyID: agency.ID,
		Payload: events.AppointmentBookedPayload{
			AppointmentID:    appointment.ID,
			ConfirmationCode: appointment.ConfirmationCode,
			ServiceCode:      appointment.ServiceCode,
			Date:             appointment.Date.Format("2006-01-02"),
			TimeSlot:         appointment.TimeSlot,
			ClientPhone:      phone,
		},
	})
	return appointment, nil
}

// Lookup finds an appointment by its confirmation code.
func (s *BookingService) Lookup(ctx context.Context, code string) (*domain.Appointment, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !domain.ValidConfirmationCode(code) {
		return nil, apperrors.NewValidationError("invalid confirmation code format", map[string]any{"code": code})
	}
	appointment, err := s.appointments.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", map[string]any{"code": code})
		}
		return nil, err
	}
	return appointment, nil
}

// GetAppointment fetches an appointment by id.
func (s *BookingService) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", map[string]any{"appointment_id": id})
		}
		return nil, err
	}
	return appointment, nil
}

// Confirm marks a scheduled appointment as confirmed.
func (s *BookingService) Confirm(ctx context.Context, id string) (*domain.Appointment, error) {
	appointment, err := s.appointments.Confirm(ctx, id, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionError(ctx, id, "appointment cannot be confirmed")
		}
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventAppointmentConfirmed,
		AgencyID: appointment.AgencyID,
		Payload: events.AppointmentBookedPayload{
			AppointmentID:    appointment.ID,
			ConfirmationCode: appointment.ConfirmationCode,
			ServiceCode:      appointment.ServiceCode,
			Date:             appointment.Date.Format("2006-01-02"),
			TimeSlot:         appointment.TimeSlot,
		},
	})
	return appointment, nil
}

// CancelAppointment voids an appointment and releases its slot so another
// client can book it.
func (s *BookingService) CancelAppointment(ctx context.Context, id, reason string) (*domain.Appointment, error) {
	appointment, err := s.appointments.Cancel(ctx, id, reason, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionError(ctx, id, "appointment cannot be cancelled")
		}
		return nil, err
	}

	if err := s.slots.Release(ctx, appointment.AgencyID, appointment.Date, appointment.TimeSlot); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventAppointmentCancelled,
		AgencyID: appointment.AgencyID,
		Payload: events.AppointmentCancelledPayload{
			AppointmentID: appointment.ID,
			Reason:        reason,
		},
	})
	return appointment, nil
}

// CheckIn converts a confirmed appointment into a high priority queue
// ticket. The conversion happens at most once: the status flip is a
// conditional update, so a second check-in with the same code fails instead
// of printing another ticket.
func (s *BookingService) CheckIn(ctx context.Context, code string) (*CheckInResult, error) {
	appointment, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	agency, err := s.agencies.GetByID(ctx, appointment.AgencyID)
	if err != nil {
		return nil, err
	}
	if !appointment.Date.Equal(agency.LocalDay(time.Now())) {
		return nil, apperrors.NewStateError("appointment is not scheduled for today", map[string]any{
			"appointment_id": appointment.ID,
			"date":           appointment.Date.Format("2006-01-02"),
		})
	}

	checked, err := s.appointments.CheckIn(ctx, appointment.ID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionError(ctx, appointment.ID, "appointment cannot be checked in")
		}
		return nil, err
	}

	clientName := checked.ClientName
	view, err := s.queue.CreateTicket(ctx, TicketCreateInput{
		AgencyID:      checked.AgencyID,
		ServiceCode:   checked.ServiceCode,
		Priority:      domain.TicketPriorityHigh,
		Source:        domain.TicketSourceAppointment,
		ClientName:    &clientName,
		AppointmentID: &checked.ID,
	})
	if err != nil {
		// Hand the appointment back, no ticket was printed for it.
		_, _ = s.appointments.RevertCheckIn(ctx, checked.ID, time.Now())
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventAppointmentCheckedIn,
		AgencyID: checked.AgencyID,
		Payload: events.AppointmentCheckedInPayload{
			AppointmentID: checked.ID,
			TicketID:      view.Ticket.ID,
			TicketNumber:  view.Ticket.DisplayNumber(),
		},
	})
	return &CheckInResult{Appointment: checked, Ticket: view}, nil
}

// transitionError refetches the appointment to report which state blocked
// the transition.
func (s *BookingService) transitionError(ctx context.Context, id, message string) error {
	details := map[string]any{"appointment_id": id}
	if current, err := s.appointments.GetByID(ctx, id); err == nil {
		details["status"] = current.Status
		if current.Status == domain.AppointmentStatusCheckedIn {
			message = "appointment already checked in"
		}
	}
	return apperrors.NewStateError(message, details)
}

func (s *BookingService) serviceWindows(ctx context.Context, agencyID string) ([]domain.ServiceWindow, int, error) {
	hours, err := s.agencies.ListHours(ctx, agencyID)
	if err != nil {
		return nil, 0, err
	}
	if len(hours) == 0 {
		return domain.DefaultServiceWindows, domain.DefaultSlotCapacity, nil
	}

	capacity := domain.DefaultSlotCapacity
	windows := make([]domain.ServiceWindow, 0, len(hours))
	for _, h := range hours {
		windows = append(windows, domain.ServiceWindow{Start: h.StartTime, End: h.EndTime})
		if h.Capacity > 0 {
			capacity = h.Capacity
		}
	}
	return windows, capacity, nil
}

func slotInTemplate(times []string, slotTime string) bool {
	for _, t := range times {
		if t == slotTime {
			return true
		}
	}
	return false
}
