package service

import (
	"context"
	"time"

	"fueltracker/pkg/cache"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/pkg/telemetry"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/repository"
)

// StatisticsService считает статистику по записям пользователя.
// Снимки кэшируются по отпечатку набора записей.
type StatisticsService struct {
	repo      repository.RecordRepository
	snapshots *cache.SnapshotCache[analysis.StatisticsData]
	series    *cache.SnapshotCache[analysis.Series]
	goals     analysis.Goals
	publisher Publisher
}

// StatisticsOption настройка StatisticsService
type StatisticsOption func(*StatisticsService)

// WithCache включает кэш снимков
func WithCache(c cache.Cache, ttl time.Duration) StatisticsOption {
	return func(s *StatisticsService) {
		if c == nil {
			return
		}
		s.snapshots = cache.NewSnapshotCache[analysis.StatisticsData](c, "statistics", ttl)
		s.series = cache.NewSnapshotCache[analysis.Series](c, "series", ttl)
	}
}

// WithGoals задаёт цели по умолчанию для Insights
func WithGoals(goals analysis.Goals) StatisticsOption {
	return func(s *StatisticsService) { s.goals = goals }
}

// WithPublisher подключает рассылку снимков подписчикам
func WithPublisher(p Publisher) StatisticsOption {
	return func(s *StatisticsService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewStatisticsService создаёт сервис статистики
func NewStatisticsService(repo repository.RecordRepository, opts ...StatisticsOption) *StatisticsService {
	s := &StatisticsService{
		repo:      repo,
		publisher: noopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultGoals цели, применяемые когда клиент их не передал
func (s *StatisticsService) DefaultGoals() analysis.Goals {
	return s.goals
}

// Statistics снимок статистики за период (пустые границы без ограничения)
func (s *StatisticsService) Statistics(ctx context.Context, userID string, period ListOptions) (analysis.StatisticsData, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatisticsService.Statistics")
	defer span.End()

	records, err := s.load(ctx, userID, period)
	if err != nil {
		return analysis.StatisticsData{}, err
	}
	telemetry.SetAttributes(ctx, telemetry.RecordAttributes(userID, len(records))...)

	return s.compute(ctx, userID, records), nil
}

// Series ряд эффективности и помесячные итоги для графиков
func (s *StatisticsService) Series(ctx context.Context, userID string, period ListOptions) (analysis.Series, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatisticsService.Series")
	defer span.End()

	records, err := s.load(ctx, userID, period)
	if err != nil {
		return analysis.Series{}, err
	}

	build := func() analysis.Series {
		defer metrics.NewTimer(metrics.Get().StatisticsDuration, "series").ObserveDuration()
		return analysis.BuildSeries(records)
	}

	if s.series == nil {
		return build(), nil
	}
	series, hit := s.series.GetOrCompute(ctx, userID, cache.Fingerprint(records), build)
	metrics.Get().RecordCacheLookup(hit)
	return series, nil
}

// Insights оценки и рекомендации относительно целей.
// Нулевые поля goals заменяются целями по умолчанию.
func (s *StatisticsService) Insights(ctx context.Context, userID string, goals analysis.Goals) (analysis.Insights, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatisticsService.Insights")
	defer span.End()

	if goals.EfficiencyGoal <= 0 {
		goals.EfficiencyGoal = s.goals.EfficiencyGoal
	}
	if goals.MonthlyBudget <= 0 {
		goals.MonthlyBudget = s.goals.MonthlyBudget
	}

	records, err := s.load(ctx, userID, ListOptions{})
	if err != nil {
		return analysis.Insights{}, err
	}

	stats := s.compute(ctx, userID, records)
	return analysis.BuildInsights(stats, domain.SortByDate(records), goals), nil
}

// Refresh сбрасывает кэш пользователя и рассылает новый снимок
func (s *StatisticsService) Refresh(ctx context.Context, userID string) {
	if s.snapshots != nil {
		if _, err := s.snapshots.Invalidate(ctx, userID); err != nil {
			logger.FromContext(ctx).Warn("Statistics cache invalidation failed", "user_id", userID, "error", err)
		}
	}

	stats, err := s.Statistics(ctx, userID, ListOptions{})
	if err != nil {
		logger.FromContext(ctx).Warn("Statistics refresh failed", "user_id", userID, "error", err)
		return
	}
	s.publisher.Publish(userID, stats)
}

func (s *StatisticsService) load(ctx context.Context, userID string, period ListOptions) ([]domain.FuelRecord, error) {
	filter, err := ListOptions{From: period.From, To: period.To, Stations: period.Stations}.filter()
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to load records")
	}
	return records, nil
}

func (s *StatisticsService) compute(ctx context.Context, userID string, records []domain.FuelRecord) analysis.StatisticsData {
	build := func() analysis.StatisticsData {
		defer metrics.NewTimer(metrics.Get().StatisticsDuration, "statistics").ObserveDuration()
		return analysis.CalculateStatistics(records)
	}

	if s.snapshots == nil {
		return build()
	}
	stats, hit := s.snapshots.GetOrCompute(ctx, userID, cache.Fingerprint(records), build)
	metrics.Get().RecordCacheLookup(hit)
	return stats
}
