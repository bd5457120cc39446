package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/repository"
)

type stubTicketRepo struct {
	repository.TicketRepository
	swept int
}

func (s *stubTicketRepo) SweepCalled(_ context.Context, _ time.Time, limit int) (int, error) {
	s.swept++
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}
	return 0, nil
}

func TestSweeperDisabledWithoutGracePeriod(t *testing.T) {
	sweeper := NewSweeper(&stubTicketRepo{}, config.QueueConfig{CalledGraceMinutes: 0}, zap.NewNop())
	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("disabled sweeper must return nil, got %v", err)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper := NewSweeper(&stubTicketRepo{}, config.QueueConfig{
		CalledGraceMinutes:   5,
		SweepIntervalSeconds: 1,
	}, zap.NewNop())

	if err := sweeper.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
