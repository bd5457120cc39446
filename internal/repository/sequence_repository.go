package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository allocates gapless per-(agency, service, day) ticket
// numbers.
type SequenceRepository interface {
	NextNumber(ctx context.Context, agencyID, serviceCode string, day time.Time) (int, error)
}

type sequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository instantiates the repository.
func NewSequenceRepository(pool *pgxpool.Pool) SequenceRepository {
	return &sequenceRepository{pool: pool}
}

// NextNumber atomically increments the scoped counter row. The upsert is a
// single statement, so N concurrent callers get N distinct consecutive
// values; a read-then-write here would duplicate numbers under load.
func (r *sequenceRepository) NextNumber(ctx context.Context, agencyID, serviceCode string, day time.Time) (int, error) {
	const query = `
        INSERT INTO ticket_sequences (agency_id, service_code, day, next_number)
        VALUES ($1, $2, $3, 1)
        ON CONFLICT (agency_id, service_code, day)
        DO UPDATE SET next_number = ticket_sequences.next_number + 1
        RETURNING next_number`
	var next int
	if err := r.pool.QueryRow(ctx, query, agencyID, serviceCode, day).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}
