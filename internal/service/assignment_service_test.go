package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/domain"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

type assignmentHarness struct {
	tickets  *fakeTicketRepo
	counters *fakeCounterRepo
	agencies *fakeAgencyRepo
	queue    *QueueService
	svc      *AssignmentService
}

func newAssignmentHarness() *assignmentHarness {
	agencies := newFakeAgencyRepo()
	counters := newFakeCounterRepo()
	tickets := newFakeTicketRepo(counters)
	queue := NewQueueService(QueueDependencies{
		TicketRepo:   tickets,
		SequenceRepo: newFakeSequenceRepo(),
		AgencyRepo:   agencies,
	})
	svc := NewAssignmentService(config.QueueConfig{ClaimRetryLimit: 10}, AssignmentDependencies{
		TicketRepo:  tickets,
		CounterRepo: counters,
		AgencyRepo:  agencies,
	})
	return &assignmentHarness{
		tickets:  tickets,
		counters: counters,
		agencies: agencies,
		queue:    queue,
		svc:      svc,
	}
}

func (h *assignmentHarness) addCounter(id, agencyID string, services ...string) {
	h.counters.add(domain.Counter{
		ID:              id,
		AgencyID:        agencyID,
		Label:           "Counter " + id,
		AllowedServices: services,
		IsActive:        true,
	})
}

func (h *assignmentHarness) issue(t *testing.T, agencyID, serviceCode string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	view, err := h.queue.CreateTicket(context.Background(), TicketCreateInput{
		AgencyID:    agencyID,
		ServiceCode: serviceCode,
		Priority:    priority,
	})
	if err != nil {
		t.Fatal(err)
	}
	return view.Ticket
}

func agentFor(agencyID string) *domain.StaffMember {
	return &domain.StaffMember{
		ID:       "staff-" + agencyID,
		Role:     domain.StaffRoleAgent,
		AgencyID: &agencyID,
		Active:   true,
	}
}

func TestCallNextPrefersHighPriority(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")

	older := h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	time.Sleep(2 * time.Millisecond)
	high := h.issue(t, "ag1", "billing", domain.TicketPriorityHigh)

	ticket, err := h.svc.CallNext(context.Background(), agentFor("ag1"), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.ID != high.ID {
		t.Errorf("called %s, want the high priority ticket %s over the older %s", ticket.ID, high.ID, older.ID)
	}
	if ticket.Status != domain.TicketStatusCalled {
		t.Errorf("status = %s, want called", ticket.Status)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")

	_, err := h.svc.CallNext(context.Background(), agentFor("ag1"), "c1")
	if !apperrors.IsCode(err, "QUEUE_EMPTY") {
		t.Errorf("got %v, want QUEUE_EMPTY", err)
	}
}

func TestCallNextSkipsOtherServices(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "contracts")

	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)

	_, err := h.svc.CallNext(context.Background(), agentFor("ag1"), "c1")
	if !apperrors.IsCode(err, "QUEUE_EMPTY") {
		t.Errorf("counter serving only contracts must not receive billing tickets, got %v", err)
	}
}

func TestCallNextConcurrentCountersNeverShareTicket(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))

	const n = 5
	for i := 0; i < n; i++ {
		h.addCounter(fmt.Sprintf("c%d", i), "ag1", "billing")
		h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	}

	claimed := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(counterID string) {
			defer wg.Done()
			ticket, err := h.svc.CallNext(context.Background(), agentFor("ag1"), counterID)
			if err != nil {
				t.Error(err)
				return
			}
			claimed <- ticket.ID
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()
	close(claimed)

	seen := make(map[string]bool, n)
	for id := range claimed {
		if seen[id] {
			t.Fatalf("ticket %s was claimed by two counters", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("claimed %d tickets, want %d", len(seen), n)
	}
}

func TestCallNextSameCounterClaimsOnce(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")

	const n = 8
	for i := 0; i < n; i++ {
		h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	}

	type outcome struct {
		ticketID string
		err      error
	}
	results := make(chan outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := h.svc.CallNext(context.Background(), agentFor("ag1"), "c1")
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{ticketID: ticket.ID}
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for r := range results {
		if r.err == nil {
			won++
			continue
		}
		if !apperrors.IsCode(r.err, "STATE_ERROR") {
			t.Errorf("loser got %v, want STATE_ERROR", r.err)
		}
	}
	if won != 1 {
		t.Fatalf("one counter was handed %d tickets, want exactly 1", won)
	}

	ctx := context.Background()
	counter, _ := h.counters.GetByID(ctx, "c1")
	if counter.ActiveTicketID == nil {
		t.Fatal("winning claim must point the counter at its ticket")
	}
	ag := testAgency("ag1")
	board, err := h.tickets.Board(ctx, "ag1", ag.LocalDay(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(board.Called) != 1 {
		t.Fatalf("%d tickets are called for a single counter, want 1", len(board.Called))
	}
}

func TestLifecycleRequiresAssignedCounter(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")
	h.addCounter("c2", "ag1", "billing")
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	staff := agentFor("ag1")
	ctx := context.Background()

	called, err := h.svc.CallNext(ctx, staff, "c1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.StartServing(ctx, staff, called.ID, "c2"); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("starting at another counter: got %v, want STATE_ERROR", err)
	}
	if _, err := h.svc.StartServing(ctx, staff, called.ID, ""); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("missing counter: got %v, want VALIDATION_FAILED", err)
	}
	if _, err := h.svc.MarkNoShow(ctx, staff, called.ID, "c2"); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("no-show from another counter: got %v, want STATE_ERROR", err)
	}

	serving, err := h.svc.StartServing(ctx, staff, called.ID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Complete(ctx, staff, serving.ID, "c2", ""); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("completing from another counter: got %v, want STATE_ERROR", err)
	}
	if _, err := h.svc.Complete(ctx, staff, serving.ID, "c1", ""); err != nil {
		t.Fatalf("completing from the assigned counter failed: %v", err)
	}
}

func TestCallNextCounterStates(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))

	active := "t-active"
	h.counters.add(domain.Counter{
		ID:              "busy",
		AgencyID:        "ag1",
		AllowedServices: []string{"billing"},
		ActiveTicketID:  &active,
		IsActive:        true,
	})
	h.counters.add(domain.Counter{
		ID:              "off",
		AgencyID:        "ag1",
		AllowedServices: []string{"billing"},
		IsActive:        false,
	})
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	ctx := context.Background()

	if _, err := h.svc.CallNext(ctx, agentFor("ag1"), "busy"); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("busy counter: got %v, want STATE_ERROR", err)
	}
	if _, err := h.svc.CallNext(ctx, agentFor("ag1"), "off"); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("inactive counter: got %v, want STATE_ERROR", err)
	}
	if _, err := h.svc.CallNext(ctx, agentFor("ag1"), "ghost"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("unknown counter: got %v, want NOT_FOUND", err)
	}
}

func TestServeLifecycleFreesCounter(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	staff := agentFor("ag1")
	ctx := context.Background()

	called, err := h.svc.CallNext(ctx, staff, "c1")
	if err != nil {
		t.Fatal(err)
	}
	counter, _ := h.counters.GetByID(ctx, "c1")
	if counter.ActiveTicketID == nil || *counter.ActiveTicketID != called.ID {
		t.Fatal("calling must point the counter at the ticket")
	}

	serving, err := h.svc.StartServing(ctx, staff, called.ID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if serving.Status != domain.TicketStatusServing {
		t.Fatalf("status = %s, want serving", serving.Status)
	}

	done, err := h.svc.Complete(ctx, staff, called.ID, "c1", "meter contract updated")
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.TicketStatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Notes != "meter contract updated" {
		t.Errorf("notes = %q, want the completion notes", done.Notes)
	}

	counter, _ = h.counters.GetByID(ctx, "c1")
	if counter.ActiveTicketID != nil {
		t.Error("completing must free the counter")
	}
}

func TestCompleteRequiresServing(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	staff := agentFor("ag1")
	ctx := context.Background()

	called, err := h.svc.CallNext(ctx, staff, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Complete(ctx, staff, called.ID, "c1", ""); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("completing a called ticket must fail, got %v", err)
	}
}

func TestMarkNoShow(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	staff := agentFor("ag1")
	ctx := context.Background()

	called, err := h.svc.CallNext(ctx, staff, "c1")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := h.svc.MarkNoShow(ctx, staff, called.ID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != domain.TicketStatusNoShow {
		t.Errorf("status = %s, want no_show", ticket.Status)
	}
	counter, _ := h.counters.GetByID(ctx, "c1")
	if counter.ActiveTicketID != nil {
		t.Error("no-show must free the counter")
	}
}

func TestTransferKeepsQueueStanding(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	staff := agentFor("ag1")
	ctx := context.Background()

	original := h.issue(t, "ag1", "billing", domain.TicketPriorityHigh)

	moved, err := h.svc.Transfer(ctx, staff, original.ID, "Contracts")
	if err != nil {
		t.Fatal(err)
	}
	if moved.ServiceCode != "contracts" {
		t.Errorf("service = %s, want contracts", moved.ServiceCode)
	}
	if moved.Status != domain.TicketStatusWaiting {
		t.Errorf("status = %s, want waiting", moved.Status)
	}
	if moved.Priority != domain.TicketPriorityHigh {
		t.Error("transfer must keep the ticket's priority")
	}
	if !moved.CreatedAt.Equal(original.CreatedAt) {
		t.Error("transfer must keep the creation time so the client does not requeue at the back")
	}
	if moved.Number != original.Number {
		t.Errorf("number changed from %d to %d on transfer", original.Number, moved.Number)
	}
}

func TestTransferValidation(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	staff := agentFor("ag1")
	ctx := context.Background()

	ticket := h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)

	if _, err := h.svc.Transfer(ctx, staff, ticket.ID, ""); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("empty target: got %v, want VALIDATION_FAILED", err)
	}
	if _, err := h.svc.Transfer(ctx, staff, ticket.ID, "billing"); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("same service: got %v, want VALIDATION_FAILED", err)
	}

	done, err := h.svc.Cancel(ctx, staff, ticket.ID, "client left")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Transfer(ctx, staff, done.ID, "contracts"); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Errorf("cancelled ticket: got %v, want STATE_ERROR", err)
	}
}

func TestAgencyScope(t *testing.T) {
	h := newAssignmentHarness()
	h.agencies.add(testAgency("ag1"))
	h.addCounter("c1", "ag1", "billing")
	h.issue(t, "ag1", "billing", domain.TicketPriorityNormal)
	ctx := context.Background()

	if _, err := h.svc.CallNext(ctx, agentFor("ag2"), "c1"); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("cross-agency staff: got %v, want FORBIDDEN", err)
	}
	if _, err := h.svc.CallNext(ctx, nil, "c1"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Errorf("missing staff: got %v, want UNAUTHORIZED", err)
	}

	admin := &domain.StaffMember{ID: "admin", Role: domain.StaffRoleAdmin, Active: true}
	if _, err := h.svc.CallNext(ctx, admin, "c1"); err != nil {
		t.Errorf("admins are not agency-bound, got %v", err)
	}
}
