package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-queue/internal/domain"
)

// SlotRepository persists appointment slot occupancy. Slot rows are created
// lazily on first booking; availability for unbooked times comes from the
// planner's template.
type SlotRepository interface {
	ListByAgencyDate(ctx context.Context, agencyID string, date time.Time) ([]domain.Slot, error)
	Book(ctx context.Context, agencyID string, date time.Time, slotTime string, capacity int) error
	Release(ctx context.Context, agencyID string, date time.Time, slotTime string) error
}

type slotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository instantiates the repository.
func NewSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &slotRepository{pool: pool}
}

func (r *slotRepository) ListByAgencyDate(ctx context.Context, agencyID string, date time.Time) ([]domain.Slot, error) {
	const query = `
        SELECT agency_id, date, slot_time, capacity, booked_count
        FROM slots
        WHERE agency_id=$1 AND date=$2
        ORDER BY slot_time ASC`
	rows, err := r.pool.Query(ctx, query, agencyID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		if err := rows.Scan(&slot.AgencyID, &slot.Date, &slot.Time, &slot.Capacity, &slot.BookedCount); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Book increments the slot's booked count, creating the row on first use.
// The booked_count < capacity guard inside the UPDATE makes overbooking
// impossible even under concurrent attempts on the same slot.
func (r *slotRepository) Book(ctx context.Context, agencyID string, date time.Time, slotTime string, capacity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
        INSERT INTO slots (agency_id, date, slot_time, capacity, booked_count)
        VALUES ($1, $2, $3, $4, 0)
        ON CONFLICT (agency_id, date, slot_time) DO NOTHING`,
		agencyID, date, slotTime, capacity,
	); err != nil {
		return err
	}

	cmd, err := tx.Exec(ctx, `
        UPDATE slots
        SET booked_count = booked_count + 1
        WHERE agency_id=$1 AND date=$2 AND slot_time=$3 AND booked_count < capacity`,
		agencyID, date, slotTime,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSlotFull
	}

	return tx.Commit(ctx)
}

// Release decrements the slot's booked count after a cancellation. The
// booked_count > 0 guard keeps the count from going negative.
func (r *slotRepository) Release(ctx context.Context, agencyID string, date time.Time, slotTime string) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE slots
        SET booked_count = booked_count - 1
        WHERE agency_id=$1 AND date=$2 AND slot_time=$3 AND booked_count > 0`,
		agencyID, date, slotTime,
	)
	return err
}
