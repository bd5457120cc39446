package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/agency-queue/internal/domain"
	"github.com/spec-kit/agency-queue/internal/repository"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// StatsService serves live queue statistics. Results are cached in Redis
// for a short TTL so polling dashboards do not hammer the aggregate query;
// the TTL must stay at or below the fastest poll interval.
type StatsService struct {
	tickets  repository.TicketRepository
	agencies repository.AgencyRepository
	cache    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs the service. A nil cache disables caching.
func NewStatsService(tickets repository.TicketRepository, agencies repository.AgencyRepository, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsService {
	return &StatsService{
		tickets:  tickets,
		agencies: agencies,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// Stats returns today's queue statistics for an agency.
func (s *StatsService) Stats(ctx context.Context, agencyID string) (*domain.QueueStats, error) {
	agency, err := s.agencies.GetByID(ctx, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agency", map[string]any{"agency_id": agencyID})
		}
		return nil, err
	}

	cacheKey := "queue:stats:" + agency.ID
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	stats, err := s.tickets.StatsForDay(ctx, agency.ID, agency.LocalDay(time.Now()))
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, cacheKey, stats)
	return stats, nil
}

func (s *StatsService) fromCache(ctx context.Context, key string) *domain.QueueStats {
	if s.cache == nil || s.ttl <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Debug("stats cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats domain.QueueStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *StatsService) toCache(ctx context.Context, key string, stats *domain.QueueStats) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Debug("stats cache write failed", zap.Error(err))
	}
}
