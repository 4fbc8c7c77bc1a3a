package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/dto"
	"github.com/surveyops/review-api/internal/repository"
	"github.com/surveyops/review-api/internal/workflow"
)

const (
	statisticsCacheKey = "review:stats:statuses"
	metricsCacheKey    = "review:stats:metrics"
	defaultLogLimit    = 50
)

// StatsService computes read-side workflow statistics.
type StatsService interface {
	WorkflowStatistics(ctx context.Context) (map[string]dto.StatusCount, error)
	PerformanceMetrics(ctx context.Context) (dto.PerformanceMetricsResponse, error)
	WorkflowLogs(ctx context.Context, req dto.LogFilterRequest) (dto.LogListResponse, error)
}

type statsService struct {
	stats    repository.StatsRepository
	logs     repository.AuditLogRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewStatsService builds the statistics aggregator. The cache client may be
// nil, in which case every call recomputes from the store.
func NewStatsService(stats repository.StatsRepository, logs repository.AuditLogRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsService {
	return &statsService{
		stats:    stats,
		logs:     logs,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "stats_service").Logger(),
	}
}

// WorkflowStatistics reports record counts per workflow state. Every defined
// state appears, including states currently holding zero records.
func (s *statsService) WorkflowStatistics(ctx context.Context) (map[string]dto.StatusCount, error) {
	var cached map[string]dto.StatusCount
	if s.readCache(ctx, statisticsCacheKey, &cached) {
		return cached, nil
	}

	counts, err := s.stats.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	statistics := make(map[string]dto.StatusCount, len(workflow.States()))
	for state, definition := range workflow.States() {
		statistics[string(state)] = dto.StatusCount{
			Label: definition.Label,
			Color: definition.Color,
			Count: counts[string(state)],
		}
	}

	s.writeCache(ctx, statisticsCacheKey, statistics)
	return statistics, nil
}

func (s *statsService) PerformanceMetrics(ctx context.Context) (dto.PerformanceMetricsResponse, error) {
	var cached dto.PerformanceMetricsResponse
	if s.readCache(ctx, metricsCacheKey, &cached) {
		return cached, nil
	}

	total, err := s.stats.TotalRecords(ctx)
	if err != nil {
		return dto.PerformanceMetricsResponse{}, err
	}

	spans, err := s.stats.CompletedSpans(ctx)
	if err != nil {
		return dto.PerformanceMetricsResponse{}, err
	}

	outcomes, err := s.stats.SamplingOutcomes(ctx)
	if err != nil {
		return dto.PerformanceMetricsResponse{}, err
	}

	metrics := dto.PerformanceMetricsResponse{
		TotalProcessed: total,
		TotalCompleted: int64(len(spans)),
		Sampling: dto.SamplingStatistics{
			Finalized:        outcomes[string(workflow.StateFinalizedBySampling)],
			RoutedToExaminer: outcomes[string(workflow.StatePendingExaminer)],
		},
	}
	metrics.Sampling.Total = metrics.Sampling.Finalized + metrics.Sampling.RoutedToExaminer

	if total > 0 {
		metrics.CompletionRate = float64(len(spans)) / float64(total)
	}

	if len(spans) > 0 {
		var sum time.Duration
		for _, span := range spans {
			sum += span.CompletionDate.Sub(span.CreatedAt)
		}
		metrics.AverageProcessingSeconds = (sum / time.Duration(len(spans))).Seconds()
	}

	s.writeCache(ctx, metricsCacheKey, metrics)
	return metrics, nil
}

func (s *statsService) WorkflowLogs(ctx context.Context, req dto.LogFilterRequest) (dto.LogListResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	filter := repository.AuditLogFilter{
		RecordID: req.RecordID,
		Action:   req.Action,
		Limit:    limit,
		Page:     req.Page,
	}
	if req.UserID > 0 {
		userID := req.UserID
		filter.UserID = &userID
	}

	entries, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return dto.LogListResponse{}, err
	}

	items := make([]dto.LogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewLogEntryResponse(entry))
	}

	return dto.LogListResponse{Items: items, Total: total}, nil
}

func (s *statsService) readCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read stats cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("invalid stats cache payload")
		return false
	}
	return true
}

func (s *statsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store stats cache")
	}
}
