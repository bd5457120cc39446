package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// AgencyRepository handles persistence for agencies and their configured
// service hours.
type AgencyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Agency, error)
	ListHours(ctx context.Context, agencyID string) ([]domain.AgencyHours, error)
}

type agencyRepository struct {
	pool *pgxpool.Pool
}

// NewAgencyRepository instantiates the repository.
func NewAgencyRepository(pool *pgxpool.Pool) AgencyRepository {
	return &agencyRepository{pool: pool}
}

func (r *agencyRepository) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	const query = `
        SELECT id, code, name, timezone, is_active, created_at, updated_at
        FROM agencies WHERE id=$1`
	var agency domain.Agency
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&agency.ID,
		&agency.Code,
		&agency.Name,
		&agency.Timezone,
		&agency.IsActive,
		&agency.CreatedAt,
		&agency.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agency, nil
}

func (r *agencyRepository) ListHours(ctx context.Context, agencyID string) ([]domain.AgencyHours, error) {
	const query = `
        SELECT id, agency_id, start_time, end_time, capacity
        FROM agency_hours WHERE agency_id=$1 ORDER BY start_time ASC`
	rows, err := r.pool.Query(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []domain.AgencyHours
	for rows.Next() {
		var h domain.AgencyHours
		if err := rows.Scan(&h.ID, &h.AgencyID, &h.StartTime, &h.EndTime, &h.Capacity); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}
