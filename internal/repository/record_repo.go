package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/workflow"
)

// RecordFilter narrows record listings.
type RecordFilter struct {
	Status         *string
	AssignedUserID *uint
	SurveyID       *string
}

// RecordRepository defines data operations for review records. It also
// satisfies workflow.RecordStore so the engine can mutate records through it.
type RecordRepository interface {
	workflow.RecordStore
	Create(ctx context.Context, record *models.ReviewRecord) error
	GetByID(ctx context.Context, id string) (models.ReviewRecord, error)
	GetBySource(ctx context.Context, surveyID, responseID string) (models.ReviewRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]models.ReviewRecord, error)
}

type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository instantiates the repository.
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(ctx context.Context, record *models.ReviewRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Get resolves the record without its trail; used by the workflow engine for
// validation reads. A missing record maps to workflow.ErrInvalidRecord.
func (r *recordRepository) Get(ctx context.Context, id string) (models.ReviewRecord, error) {
	var record models.ReviewRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ReviewRecord{}, workflow.ErrInvalidRecord
		}
		return models.ReviewRecord{}, err
	}
	return record, nil
}

// GetByID loads the record with its full audit trail, oldest entry first.
func (r *recordRepository) GetByID(ctx context.Context, id string) (models.ReviewRecord, error) {
	var record models.ReviewRecord
	err := r.db.WithContext(ctx).
		Preload("Trail", func(db *gorm.DB) *gorm.DB {
			return db.Order("audit_entries.id ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ReviewRecord{}, workflow.ErrInvalidRecord
		}
		return models.ReviewRecord{}, err
	}
	return record, nil
}

func (r *recordRepository) GetBySource(ctx context.Context, surveyID, responseID string) (models.ReviewRecord, error) {
	var record models.ReviewRecord
	err := r.db.WithContext(ctx).
		Where("survey_id = ? AND response_id = ?", surveyID, responseID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ReviewRecord{}, workflow.ErrInvalidRecord
		}
		return models.ReviewRecord{}, err
	}
	return record, nil
}

func (r *recordRepository) List(ctx context.Context, filter RecordFilter) ([]models.ReviewRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.ReviewRecord{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.AssignedUserID != nil {
		query = query.Where("assigned_user_id = ?", *filter.AssignedUserID)
	}
	if filter.SurveyID != nil {
		query = query.Where("survey_id = ?", *filter.SurveyID)
	}

	var records []models.ReviewRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Mutate loads the record under a row lock, applies fn and persists the
// updated record together with the audit entries fn returns, all in one
// transaction. If fn errors the transaction rolls back untouched.
func (r *recordRepository) Mutate(ctx context.Context, id string, fn func(record *models.ReviewRecord) ([]models.AuditEntry, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.ReviewRecord{})
		// SQLite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var record models.ReviewRecord
		if err := query.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.ErrInvalidRecord
			}
			return err
		}

		entries, err := fn(&record)
		if err != nil {
			return err
		}

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("save record: %w", err)
		}

		for i := range entries {
			entries[i].RecordID = record.ID
			if err := tx.Create(&entries[i]).Error; err != nil {
				return fmt.Errorf("append audit entry: %w", err)
			}
		}

		return nil
	})
}
