package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-queue/internal/domain"
)

const ticketColumns = `id, agency_id, service_code, number, priority, status, source,
	appointment_id, counter_id, client_name, notes, day, created_at, called_at,
	started_at, completed_at, version`

// Board is the monitor view of a queue: current waiting set plus the most
// recently called tickets.
type Board struct {
	Waiting []domain.Ticket
	Called  []domain.Ticket
}

// TicketRepository encapsulates ticket persistence. Every mutation is a
// conditional update guarded by the ticket's version; callers receive
// ErrConflict when another writer got there first.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWaiting(ctx context.Context, agencyID string, serviceCodes []string, day time.Time) ([]domain.Ticket, error)
	Claim(ctx context.Context, ticketID string, version int, counterID string, at time.Time) (*domain.Ticket, error)
	StartServing(ctx context.Context, ticketID string, version int, at time.Time) (*domain.Ticket, error)
	Finish(ctx context.Context, ticketID string, version int, status domain.TicketStatus, notes string, at time.Time) (*domain.Ticket, error)
	Requeue(ctx context.Context, ticketID string, version int, targetService string) (*domain.Ticket, error)
	WaitingBefore(ctx context.Context, ticket *domain.Ticket) (int, error)
	Board(ctx context.Context, agencyID string, day time.Time) (*Board, error)
	StatsForDay(ctx context.Context, agencyID string, day time.Time) (*domain.QueueStats, error)
	SweepCalled(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, agency_id, service_code, number, priority, status, source,
            appointment_id, counter_id, client_name, notes, day, created_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.AgencyID,
		ticket.ServiceCode,
		ticket.Number,
		ticket.Priority,
		ticket.Status,
		ticket.Source,
		ticket.AppointmentID,
		ticket.CounterID,
		ticket.ClientName,
		ticket.Notes,
		ticket.Day,
		ticket.CreatedAt,
		ticket.Version,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWaiting(ctx context.Context, agencyID string, serviceCodes []string, day time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE agency_id=$1 AND day=$2 AND status='waiting'`
	args := []any{agencyID, day}
	if len(serviceCodes) > 0 {
		query += ` AND service_code = ANY($3)`
		args = append(args, serviceCodes)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Claim performs the atomic waiting→called transition and points the
// counter at the ticket. The version check guarantees at most one
// assignment per ticket, and the active_ticket_id IS NULL condition
// guarantees at most one ticket per counter; losing either race rolls the
// whole claim back.
func (r *ticketRepository) Claim(ctx context.Context, ticketID string, version int, counterID string, at time.Time) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        UPDATE tickets
        SET status='called', counter_id=$2, called_at=$3, version=version+1
        WHERE id=$1 AND status='waiting' AND version=$4
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID, counterID, at, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}

	cmd, err := tx.Exec(ctx,
		`UPDATE counters SET active_ticket_id=$1, updated_at=NOW() WHERE id=$2 AND active_ticket_id IS NULL`,
		ticketID, counterID,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrCounterBusy
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) StartServing(ctx context.Context, ticketID string, version int, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets
        SET status='serving', started_at=$2, version=version+1
        WHERE id=$1 AND status='called' AND version=$3
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, ticketID, at, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return ticket, nil
}

// Finish moves a ticket into a terminal status and frees its counter.
func (r *ticketRepository) Finish(ctx context.Context, ticketID string, version int, status domain.TicketStatus, notes string, at time.Time) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        UPDATE tickets
        SET status=$2, notes=CASE WHEN $3 <> '' THEN $3 ELSE notes END,
            completed_at=$4, version=version+1
        WHERE id=$1 AND version=$5
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID, status, notes, at, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE counters SET active_ticket_id=NULL, updated_at=NOW() WHERE active_ticket_id=$1`,
		ticketID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Requeue re-enqueues a ticket under a target service, keeping created_at
// so the ticket does not lose its temporal position.
func (r *ticketRepository) Requeue(ctx context.Context, ticketID string, version int, targetService string) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        UPDATE tickets
        SET service_code=$2, status='waiting', counter_id=NULL, called_at=NULL, version=version+1
        WHERE id=$1 AND version=$3
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID, targetService, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE counters SET active_ticket_id=NULL, updated_at=NOW() WHERE active_ticket_id=$1`,
		ticketID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// WaitingBefore counts waiting tickets that would be called ahead of the
// given ticket under the ordering policy.
func (r *ticketRepository) WaitingBefore(ctx context.Context, ticket *domain.Ticket) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM tickets
        WHERE agency_id=$1 AND day=$2 AND status='waiting' AND id <> $3
          AND (
            (priority='high' AND $4='normal')
            OR (priority=$4 AND (created_at < $5 OR (created_at = $5 AND id < $3)))
          )`
	var count int
	err := r.pool.QueryRow(ctx, query,
		ticket.AgencyID, ticket.Day, ticket.ID, ticket.Priority, ticket.CreatedAt,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) Board(ctx context.Context, agencyID string, day time.Time) (*Board, error) {
	waitingQuery := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE agency_id=$1 AND day=$2 AND status='waiting'
        ORDER BY (priority='high') DESC, created_at ASC, id ASC
        LIMIT 20`
	rows, err := r.pool.Query(ctx, waitingQuery, agencyID, day)
	if err != nil {
		return nil, err
	}
	waiting, err := scanTickets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	calledQuery := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE agency_id=$1 AND day=$2 AND status IN ('called','serving')
        ORDER BY called_at DESC
        LIMIT 5`
	rows, err = r.pool.Query(ctx, calledQuery, agencyID, day)
	if err != nil {
		return nil, err
	}
	called, err := scanTickets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	return &Board{Waiting: waiting, Called: called}, nil
}

func (r *ticketRepository) StatsForDay(ctx context.Context, agencyID string, day time.Time) (*domain.QueueStats, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE status='waiting'),
            COUNT(*) FILTER (WHERE status='serving'),
            COUNT(*) FILTER (WHERE status='completed'),
            COUNT(*),
            COALESCE(AVG(EXTRACT(EPOCH FROM (called_at - created_at)) / 60.0)
                FILTER (WHERE called_at IS NOT NULL), 0)
        FROM tickets
        WHERE agency_id=$1 AND day=$2`
	stats := &domain.QueueStats{AgencyID: agencyID}
	err := r.pool.QueryRow(ctx, query, agencyID, day).Scan(
		&stats.WaitingCount,
		&stats.ServingCount,
		&stats.CompletedToday,
		&stats.TotalToday,
		&stats.AverageWaitTime,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SweepCalled marks tickets stuck in "called" since before the cutoff as
// no-shows and frees their counters. Returns how many were swept.
func (r *ticketRepository) SweepCalled(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        WITH expired AS (
            SELECT id FROM tickets
            WHERE status='called' AND called_at <= $1
            ORDER BY called_at ASC
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        UPDATE tickets
        SET status='no_show', completed_at=NOW(), version=version+1
        WHERE id IN (SELECT id FROM expired)
        RETURNING id`
	rows, err := tx.Query(ctx, query, cutoff, limit)
	if err != nil {
		return 0, err
	}
	var swept []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		swept = append(swept, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(swept) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE counters SET active_ticket_id=NULL, updated_at=NOW() WHERE active_ticket_id = ANY($1)`,
			swept,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(swept), nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.AgencyID,
		&ticket.ServiceCode,
		&ticket.Number,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Source,
		&ticket.AppointmentID,
		&ticket.CounterID,
		&ticket.ClientName,
		&ticket.Notes,
		&ticket.Day,
		&ticket.CreatedAt,
		&ticket.CalledAt,
		&ticket.StartedAt,
		&ticket.CompletedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
