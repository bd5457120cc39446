package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for queue tickets.
type TicketStatus string

const (
	TicketStatusWaiting   TicketStatus = "waiting"
	TicketStatusCalled    TicketStatus = "called"
	TicketStatusServing   TicketStatus = "serving"
	TicketStatusCompleted TicketStatus = "completed"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusNoShow    TicketStatus = "no_show"
)

// TicketPriority orders tickets within the waiting set.
type TicketPriority string

const (
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketSource records how a ticket entered the queue.
type TicketSource string

const (
	TicketSourceKiosk       TicketSource = "kiosk"
	TicketSourceAppointment TicketSource = "appointment"
)

// Ticket is a unit of queued service demand at an agency.
type Ticket struct {
	ID            string
	AgencyID      string
	ServiceCode   string
	Number        int
	Priority      TicketPriority
	Status        TicketStatus
	Source        TicketSource
	AppointmentID *string
	CounterID     *string
	ClientName    *string
	Notes         string
	Day           time.Time
	CreatedAt     time.Time
	CalledAt      *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Version       int
}

// DisplayNumber renders the client-facing ticket number, e.g. "B042".
func (t *Ticket) DisplayNumber() string {
	return FormatTicketNumber(t.ServiceCode, t.Number)
}

// FormatTicketNumber builds the printed ticket label from the service code
// prefix and the per-day sequence value.
func FormatTicketNumber(serviceCode string, number int) string {
	prefix := "X"
	if code := strings.TrimSpace(serviceCode); code != "" {
		prefix = strings.ToUpper(code[:1])
	}
	return fmt.Sprintf("%s%03d", prefix, number)
}

// IsTerminal reports whether the status permits no further transitions.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusCompleted, TicketStatusCancelled, TicketStatusNoShow:
		return true
	}
	return false
}

// ticketTransitions lists every legal transition. A called ticket may
// return to waiting only through transfer; terminal states have no
// outgoing edges.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusWaiting:   {TicketStatusCalled, TicketStatusCancelled},
	TicketStatusCalled:    {TicketStatusServing, TicketStatusWaiting, TicketStatusCancelled, TicketStatusNoShow},
	TicketStatusServing:   {TicketStatusCompleted, TicketStatusCancelled, TicketStatusNoShow},
	TicketStatusCompleted: {},
	TicketStatusCancelled: {},
	TicketStatusNoShow:    {},
}

// CanTransition reports whether moving a ticket from one status to another
// is legal.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range ticketTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// OrderCandidates sorts waiting tickets into call order: high priority
// first, then oldest creation time, ticket id as the final tiebreak. The
// input slice is sorted in place and returned.
func OrderCandidates(tickets []Ticket) []Ticket {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if a.Priority != b.Priority {
			return a.Priority == TicketPriorityHigh
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return tickets
}
