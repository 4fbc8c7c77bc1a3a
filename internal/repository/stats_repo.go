package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/surveyops/review-api/internal/models"
)

// CompletedSpan is the creation/completion pair of one finalized record.
type CompletedSpan struct {
	CreatedAt      time.Time
	CompletionDate time.Time
}

// StatsRepository exposes the read-side aggregations behind workflow
// statistics. All queries are recomputed from current store state.
type StatsRepository interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
	TotalRecords(ctx context.Context) (int64, error)
	CompletedSpans(ctx context.Context) ([]CompletedSpan, error)
	SamplingOutcomes(ctx context.Context) (map[string]int64, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository constructs the statistics repository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ReviewRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *statsRepository) TotalRecords(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.ReviewRecord{}).Count(&total).Error
	return total, err
}

func (r *statsRepository) CompletedSpans(ctx context.Context) ([]CompletedSpan, error) {
	type row struct {
		CreatedAt      time.Time
		CompletionDate *time.Time
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ReviewRecord{}).
		Select("created_at, completion_date").
		Where("completion_date IS NOT NULL").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	spans := make([]CompletedSpan, 0, len(rows))
	for _, row := range rows {
		if row.CompletionDate == nil {
			continue
		}
		spans = append(spans, CompletedSpan{CreatedAt: row.CreatedAt, CompletionDate: *row.CompletionDate})
	}
	return spans, nil
}

// SamplingOutcomes counts sampling audit entries by chosen destination.
func (r *statsRepository) SamplingOutcomes(ctx context.Context) (map[string]int64, error) {
	type row struct {
		NewValue string
		Count    int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.AuditEntry{}).
		Select("new_value, COUNT(*) AS count").
		Where("action = ?", models.AuditActionSampling).
		Group("new_value").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	outcomes := make(map[string]int64, len(rows))
	for _, row := range rows {
		outcomes[row.NewValue] = row.Count
	}
	return outcomes, nil
}
