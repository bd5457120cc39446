package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// CounterRepository handles persistence for service counters. The active
// ticket pointer is mutated by the ticket repository inside its claim and
// finish transactions, never directly here.
type CounterRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Counter, error)
	ListByAgency(ctx context.Context, agencyID string) ([]domain.Counter, error)
}

type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository instantiates the repository.
func NewCounterRepository(pool *pgxpool.Pool) CounterRepository {
	return &counterRepository{pool: pool}
}

func (r *counterRepository) GetByID(ctx context.Context, id string) (*domain.Counter, error) {
	const query = `
        SELECT id, agency_id, label, allowed_services, active_ticket_id, is_active, created_at, updated_at
        FROM counters WHERE id=$1`
	var counter domain.Counter
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&counter.ID,
		&counter.AgencyID,
		&counter.Label,
		&counter.AllowedServices,
		&counter.ActiveTicketID,
		&counter.IsActive,
		&counter.CreatedAt,
		&counter.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &counter, nil
}

func (r *counterRepository) ListByAgency(ctx context.Context, agencyID string) ([]domain.Counter, error) {
	const query = `
        SELECT id, agency_id, label, allowed_services, active_ticket_id, is_active, created_at, updated_at
        FROM counters WHERE agency_id=$1 AND is_active ORDER BY label ASC`
	rows, err := r.pool.Query(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []domain.Counter
	for rows.Next() {
		var counter domain.Counter
		if err := rows.Scan(
			&counter.ID,
			&counter.AgencyID,
			&counter.Label,
			&counter.AllowedServices,
			&counter.ActiveTicketID,
			&counter.IsActive,
			&counter.CreatedAt,
			&counter.UpdatedAt,
		); err != nil {
			return nil, err
		}
		counters = append(counters, counter)
	}
	return counters, rows.Err()
}
