package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/repository"
)

const sweepBatchSize = 100

// Sweeper marks tickets stuck in "called" as no-shows once the configured
// grace period elapses. It is opt-in: a zero grace period disables it and
// agents mark no-shows manually.
type Sweeper struct {
	tickets repository.TicketRepository
	cfg     config.QueueConfig
	logger  *zap.Logger
}

// NewSweeper constructs the sweeper.
func NewSweeper(tickets repository.TicketRepository, cfg config.QueueConfig, logger *zap.Logger) *Sweeper {
	return &Sweeper{tickets: tickets, cfg: cfg, logger: logger}
}

// Run loops until the context is cancelled. It returns immediately when the
// grace period is zero.
func (s *Sweeper) Run(ctx context.Context) error {
	grace := s.cfg.CalledGrace()
	if grace <= 0 {
		s.logger.Info("no-show sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	s.logger.Info("no-show sweeper started",
		zap.Duration("grace", grace),
		zap.Duration("interval", s.cfg.SweepInterval()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx, grace)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, grace time.Duration) {
	cutoff := time.Now().Add(-grace)
	swept, err := s.tickets.SweepCalled(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("no-show sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		s.logger.Info("swept stale called tickets", zap.Int("count", swept))
	}
}
