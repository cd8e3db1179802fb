// Package stats records guild activity rollups (day, week, month, year,
// all-time) for the dashboard charts.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"warden/internal/cache"
	"warden/internal/storage"
)

const summaryCacheTTL = 3 * time.Minute

type Service struct {
	store   *storage.Store
	logger  *zap.Logger
	summary *cache.TTL[string, map[string]int64]
}

func New(store *storage.Store, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		summary: cache.NewTTL[string, map[string]int64](summaryCacheTTL),
	}
}

func (s *Service) RecordMessage(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricMessages)
}

func (s *Service) RecordJoin(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricMembersJoined)
}

func (s *Service) RecordLeave(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricMembersLeft)
}

func (s *Service) RecordPunishment(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricPunishments)
}

func (s *Service) RecordAutomodTrigger(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricAutomodTriggers)
}

func (s *Service) RecordReport(ctx context.Context, guildID string) {
	s.record(ctx, guildID, storage.MetricReports)
}

func (s *Service) record(ctx context.Context, guildID, metric string) {
	if err := s.store.IncrementStat(ctx, guildID, metric, time.Now(), 1); err != nil {
		s.logger.Warn("stat increment failed", zap.String("metric", metric), zap.Error(err))
	}
}

// Summary returns every metric for the current period bucket, briefly
// cached since the dashboard polls it.
func (s *Service) Summary(ctx context.Context, guildID, period string) (map[string]int64, error) {
	key := guildID + ":" + period
	if cached, ok := s.summary.Get(key); ok {
		return cached, nil
	}
	values, err := s.store.StatsForPeriod(ctx, guildID, period, time.Now())
	if err != nil {
		return nil, err
	}
	s.summary.Set(key, values)
	return values, nil
}

func (s *Service) History(ctx context.Context, guildID, period, metric string, buckets int) (map[string]int64, error) {
	return s.store.MetricHistory(ctx, guildID, period, metric, buckets)
}
