package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/repository"
)

// In-memory repository fakes. They reproduce the conditional-update
// semantics of the SQL layer (version checks, capacity guards) so service
// tests can exercise concurrency without a database.

type fakeCounterRepo struct {
	mu       sync.Mutex
	counters map[string]*domain.Counter
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counters: make(map[string]*domain.Counter)}
}

func (f *fakeCounterRepo) add(counter domain.Counter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := counter
	f.counters[c.ID] = &c
}

func (f *fakeCounterRepo) GetByID(_ context.Context, id string) (*domain.Counter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counter, ok := f.counters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *counter
	return &copied, nil
}

func (f *fakeCounterRepo) ListByAgency(_ context.Context, agencyID string) ([]domain.Counter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Counter
	for _, counter := range f.counters {
		if counter.AgencyID == agencyID && counter.IsActive {
			result = append(result, *counter)
		}
	}
	return result, nil
}

type fakeAgencyRepo struct {
	mu       sync.Mutex
	agencies map[string]*domain.Agency
	hours    map[string][]domain.AgencyHours
}

func newFakeAgencyRepo() *fakeAgencyRepo {
	return &fakeAgencyRepo{
		agencies: make(map[string]*domain.Agency),
		hours:    make(map[string][]domain.AgencyHours),
	}
}

func (f *fakeAgencyRepo) add(agency domain.Agency) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := agency
	f.agencies[a.ID] = &a
}

func (f *fakeAgencyRepo) GetByID(_ context.Context, id string) (*domain.Agency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agency, ok := f.agencies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *agency
	return &copied, nil
}

func (f *fakeAgencyRepo) ListHours(_ context.Context, agencyID string) ([]domain.AgencyHours, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AgencyHours{}, f.hours[agencyID]...), nil
}

type fakeSequenceRepo struct {
	mu   sync.Mutex
	next map[string]int
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{next: make(map[string]int)}
}

func (f *fakeSequenceRepo) NextNumber(_ context.Context, agencyID, serviceCode string, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := agencyID + "|" + serviceCode + "|" + day.Format("2006-01-02")
	f.next[key]++
	return f.next[key], nil
}

type fakeTicketRepo struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	counters *fakeCounterRepo
}

func newFakeTicketRepo(counters *fakeCounterRepo) *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket), counters: counters}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *ticket
	f.tickets[copied.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) ListWaiting(_ context.Context, agencyID string, serviceCodes []string, day time.Time) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[string]struct{}, len(serviceCodes))
	for _, code := range serviceCodes {
		allowed[code] = struct{}{}
	}
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.AgencyID != agencyID || !ticket.Day.Equal(day) || ticket.Status != domain.TicketStatusWaiting {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[ticket.ServiceCode]; !ok {
				continue
			}
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (f *fakeTicketRepo) Claim(_ context.Context, ticketID string, version int, counterID string, at time.Time) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusWaiting || ticket.Version != version {
		return nil, repository.ErrConflict
	}
	if !f.claimCounter(counterID, ticketID) {
		return nil, repository.ErrCounterBusy
	}
	ticket.Status = domain.TicketStatusCalled
	ticket.CounterID = &counterID
	ticket.CalledAt = &at
	ticket.Version++
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) StartServing(_ context.Context, ticketID string, version int, at time.Time) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusCalled || ticket.Version != version {
		return nil, repository.ErrConflict
	}
	ticket.Status = domain.TicketStatusServing
	ticket.StartedAt = &at
	ticket.Version++
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) Finish(_ context.Context, ticketID string, version int, status domain.TicketStatus, notes string, at time.Time) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.Version != version {
		return nil, repository.ErrConflict
	}
	ticket.Status = status
	if notes != "" {
		ticket.Notes = notes
	}
	ticket.CompletedAt = &at
	ticket.Version++
	f.clearActiveTicket(ticketID)
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) Requeue(_ context.Context, ticketID string, version int, targetService string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.Version != version {
		return nil, repository.ErrConflict
	}
	ticket.ServiceCode = targetService
	ticket.Status = domain.TicketStatusWaiting
	ticket.CounterID = nil
	ticket.CalledAt = nil
	ticket.Version++
	f.clearActiveTicket(ticketID)
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) WaitingBefore(_ context.Context, ticket *domain.Ticket) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, other := range f.tickets {
		if other.ID == ticket.ID || other.AgencyID != ticket.AgencyID ||
			!other.Day.Equal(ticket.Day) || other.Status != domain.TicketStatusWaiting {
			continue
		}
		if other.Priority == domain.TicketPriorityHigh && ticket.Priority == domain.TicketPriorityNormal {
			count++
			continue
		}
		if other.Priority == ticket.Priority {
			if other.CreatedAt.Before(ticket.CreatedAt) ||
				(other.CreatedAt.Equal(ticket.CreatedAt) && other.ID < ticket.ID) {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeTicketRepo) Board(ctx context.Context, agencyID string, day time.Time) (*repository.Board, error) {
	waiting, err := f.ListWaiting(ctx, agencyID, nil, day)
	if err != nil {
		return nil, err
	}
	domain.OrderCandidates(waiting)

	f.mu.Lock()
	defer f.mu.Unlock()
	var called []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.AgencyID != agencyID || !ticket.Day.Equal(day) {
			continue
		}
		if ticket.Status == domain.TicketStatusCalled || ticket.Status == domain.TicketStatusServing {
			called = append(called, *ticket)
		}
	}
	return &repository.Board{Waiting: waiting, Called: called}, nil
}

func (f *fakeTicketRepo) StatsForDay(_ context.Context, agencyID string, day time.Time) (*domain.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.QueueStats{AgencyID: agencyID}
	totalWait := 0.0
	waited := 0
	for _, ticket := range f.tickets {
		if ticket.AgencyID != agencyID || !ticket.Day.Equal(day) {
			continue
		}
		stats.TotalToday++
		switch ticket.Status {
		case domain.TicketStatusWaiting:
			stats.WaitingCount++
		case domain.TicketStatusServing:
			stats.ServingCount++
		case domain.TicketStatusCompleted:
			stats.CompletedToday++
		}
		if ticket.CalledAt != nil {
			totalWait += ticket.CalledAt.Sub(ticket.CreatedAt).Minutes()
			waited++
		}
	}
	if waited > 0 {
		stats.AverageWaitTime = totalWait / float64(waited)
	}
	return stats, nil
}

func (f *fakeTicketRepo) SweepCalled(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	swept := 0
	for _, ticket := range f.tickets {
		if limit > 0 && swept >= limit {
			break
		}
		if ticket.Status == domain.TicketStatusCalled && ticket.CalledAt != nil && !ticket.CalledAt.After(cutoff) {
			ticket.Status = domain.TicketStatusNoShow
			now := time.Now()
			ticket.CompletedAt = &now
			ticket.Version++
			f.clearActiveTicket(ticket.ID)
			swept++
		}
	}
	return swept, nil
}

// claimCounter and clearActiveTicket mirror the counter updates the SQL
// layer performs inside its transactions. claimCounter reproduces the
// active_ticket_id IS NULL condition that keeps a counter on one ticket.
func (f *fakeTicketRepo) claimCounter(counterID, ticketID string) bool {
	if f.counters == nil {
		return true
	}
	f.counters.mu.Lock()
	defer f.counters.mu.Unlock()
	counter, ok := f.counters.counters[counterID]
	if !ok {
		return true
	}
	if counter.ActiveTicketID != nil {
		return false
	}
	counter.ActiveTicketID = &ticketID
	return true
}

func (f *fakeTicketRepo) clearActiveTicket(ticketID string) {
	if f.counters == nil {
		return
	}
	f.counters.mu.Lock()
	defer f.counters.mu.Unlock()
	for _, counter := range f.counters.counters {
		if counter.ActiveTicketID != nil && *counter.ActiveTicketID == ticketID {
			counter.ActiveTicketID = nil
		}
	}
}

type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[string]*domain.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[string]*domain.Slot)}
}

func slotKey(agencyID string, date time.Time, slotTime string) string {
	return agencyID + "|" + date.Format("2006-01-02") + "|" + slotTime
}

func (f *fakeSlotRepo) ListByAgencyDate(_ context.Context, agencyID string, date time.Time) ([]domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Slot
	for _, slot := range f.slots {
		if slot.AgencyID == agencyID && slot.Date.Equal(date) {
			result = append(result, *slot)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (f *fakeSlotRepo) Book(_ context.Context, agencyID string, date time.Time, slotTime string, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := slotKey(agencyID, date, slotTime)
	slot, ok := f.slots[key]
	if !ok {
		slot = &domain.Slot{AgencyID: agencyID, Date: date, Time: slotTime, Capacity: capacity}
		f.slots[key] = slot
	}
	if slot.BookedCount >= slot.Capacity {
		return repository.ErrSlotFull
	}
	slot.BookedCount++
	return nil
}

func (f *fakeSlotRepo) Release(_ context.Context, agencyID string, date time.Time, slotTime string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot, ok := f.slots[slotKey(agencyID, date, slotTime)]; ok && slot.BookedCount > 0 {
		slot.BookedCount--
	}
	return nil
}

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[string]*domain.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[string]*domain.Appointment)}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, appointment *domain.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *appointment
	f.appointments[copied.ID] = &copied
	return nil
}

func (f *fakeAppointmentRepo) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) GetByCode(_ context.Context, code string) (*domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, appointment := range f.appointments {
		if appointment.ConfirmationCode == code {
			copied := *appointment
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAppointmentRepo) Confirm(_ context.Context, id string, at time.Time) (*domain.Appointment, error) {
	return f.transition(id, domain.AppointmentStatusScheduled, domain.AppointmentStatusConfirmed, at)
}

func (f *fakeAppointmentRepo) CheckIn(_ context.Context, id string, at time.Time) (*domain.Appointment, error) {
	return f.transition(id, domain.AppointmentStatusConfirmed, domain.AppointmentStatusCheckedIn, at)
}

func (f *fakeAppointmentRepo) RevertCheckIn(_ context.Context, id string, at time.Time) (*domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok || appointment.Status != domain.AppointmentStatusCheckedIn {
		return nil, repository.ErrConflict
	}
	appointment.Status = domain.AppointmentStatusConfirmed
	appointment.CheckedInAt = nil
	appointment.UpdatedAt = at
	copied := *appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) Cancel(_ context.Context, id, reason string, at time.Time) (*domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrConflict
	}
	if appointment.Status != domain.AppointmentStatusScheduled && appointment.Status != domain.AppointmentStatusConfirmed {
		return nil, repository.ErrConflict
	}
	appointment.Status = domain.AppointmentStatusCancelled
	appointment.CancelReason = reason
	appointment.CancelledAt = &at
	appointment.UpdatedAt = at
	copied := *appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) transition(id string, from, to domain.AppointmentStatus, at time.Time) (*domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok || appointment.Status != from {
		return nil, repository.ErrConflict
	}
	appointment.Status = to
	appointment.UpdatedAt = at
	switch to {
	case domain.AppointmentStatusConfirmed:
		appointment.ConfirmedAt = &at
	case domain.AppointmentStatusCheckedIn:
		appointment.CheckedInAt = &at
	}
	copied := *appointment
	return &copied, nil
}

type fakeStaffRepo struct {
	mu      sync.Mutex
	members map[string]*domain.StaffMember
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{members: make(map[string]*domain.StaffMember)}
}

func (f *fakeStaffRepo) add(staff domain.StaffMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := staff
	f.members[s.ID] = &s
}

func (f *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	staff, ok := f.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *staff
	return &copied, nil
}

func (f *fakeStaffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, staff := range f.members {
		if staff.Email == email {
			copied := *staff
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStaffRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	staff, ok := f.members[id]
	if !ok {
		return repository.ErrNotFound
	}
	staff.PasswordHash = passwordHash
	return nil
}

// testAgency returns an active UTC agency for fixtures.
func testAgency(id string) domain.Agency {
	now := time.Now()
	return domain.Agency{
		ID:        id,
		Code:      "AG-" + id,
		Name:      "Agency " + id,
		Timezone:  "UTC",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
