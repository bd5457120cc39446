package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-queue/internal/domain"
)

const appointmentColumns = `id, agency_id, service_code, date, time_slot, status,
	confirmation_code, client_name, client_phone, cancel_reason, created_at,
	updated_at, confirmed_at, checked_in_at, completed_at, cancelled_at`

// AppointmentRepository encapsulates appointment persistence. Status
// transitions are conditional updates on the current status, so each
// transition can happen at most once.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *domain.Appointment) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	GetByCode(ctx context.Context, code string) (*domain.Appointment, error)
	Confirm(ctx context.Context, id string, at time.Time) (*domain.Appointment, error)
	CheckIn(ctx context.Context, id string, at time.Time) (*domain.Appointment, error)
	RevertCheckIn(ctx context.Context, id string, at time.Time) (*domain.Appointment, error)
	Cancel(ctx context.Context, id, reason string, at time.Time) (*domain.Appointment, error)
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository instantiates the repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (id, agency_id, service_code, date, time_slot, status,
            confirmation_code, client_name, client_phone, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`
	_, err := r.pool.Exec(ctx, query,
		appointment.ID,
		appointment.AgencyID,
		appointment.ServiceCode,
		appointment.Date,
		appointment.TimeSlot,
		appointment.Status,
		appointment.ConfirmationCode,
		appointment.ClientName,
		appointment.ClientPhone,
		appointment.CreatedAt,
	)
	return err
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *appointmentRepository) GetByCode(ctx context.Context, code string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE confirmation_code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *appointmentRepository) Confirm(ctx context.Context, id string, at time.Time) (*domain.Appointment, error) {
	query := `
        UPDATE appointments
        SET status='confirmed', confirmed_at=$2, updated_at=$2
        WHERE id=$1 AND status='scheduled'
        RETURNING ` + appointmentColumns
	return r.conditionalUpdate(ctx, query, id, at)
}

// CheckIn flips confirmed→checked_in. The status condition is the
// idempotency guard: a second attempt matches zero rows and the caller
// reports the appointment as already checked in.
func (r *appointmentRepository) CheckIn(ctx context.Context, id string, at time.Time) (*domain.Appointment, error) {
	query := `
        UPDATE appointments
        SET status='checked_in', checked_in_at=$2, updated_at=$2
        WHERE id=$1 AND status='confirmed'
        RETURNING ` + appointmentColumns
	return r.conditionalUpdate(ctx, query, id, at)
}

// RevertCheckIn undoes a check-in whose ticket never got created, putting
// the appointment back where a retry can pick it up.
func (r *appointmentRepository) RevertCheckIn(ctx context.Context, id string, at time.Time) (*domain.Appointment, error) {
	query := `
        UPDATE appointments
        SET status='confirmed', checked_in_at=NULL, updated_at=$2
        WHERE id=$1 AND status='checked_in'
        RETURNING ` + appointmentColumns
	return r.conditionalUpdate(ctx, query, id, at)
}

func (r *appointmentRepository) Cancel(ctx context.Context, id, reason string, at time.Time) (*domain.Appointment, error) {
	query := `
        UPDATE appointments
        SET status='cancelled', cancel_reason=$3, cancelled_at=$2, updated_at=$2
        WHERE id=$1 AND status IN ('scheduled','confirmed')
        RETURNING ` + appointmentColumns
	appointment, err := scanAppointment(r.pool.QueryRow(ctx, query, id, at, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return appointment, nil
}

func (r *appointmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Appointment, error) {
	appointment, err := scanAppointment(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return appointment, nil
}

func (r *appointmentRepository) conditionalUpdate(ctx context.Context, query, id string, at time.Time) (*domain.Appointment, error) {
	appointment, err := scanAppointment(r.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return appointment, nil
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var appointment domain.Appointment
	if err := row.Scan(
		&appointment.ID,
		&appointment.AgencyID,
		&appointment.ServiceCode,
		&appointment.Date,
		&appointment.TimeSlot,
		&appointment.Status,
		&appointment.ConfirmationCode,
		&appointment.ClientName,
		&appointment.ClientPhone,
		&appointment.CancelReason,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
		&appointment.ConfirmedAt,
		&appointment.CheckedInAt,
		&appointment.CompletedAt,
		&appointment.CancelledAt,
	); err != nil {
		return nil, err
	}
	return &appointment, nil
}
