package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/workflow"
)

// ReviewerRepository defines data operations for reviewers and doubles as
// the workflow engine's role oracle.
type ReviewerRepository interface {
	workflow.RoleOracle
	Create(ctx context.Context, reviewer *models.Reviewer) error
	GetByID(ctx context.Context, id uint) (models.Reviewer, error)
	GetByEmail(ctx context.Context, email string) (models.Reviewer, error)
	List(ctx context.Context) ([]models.Reviewer, error)
}

type reviewerRepository struct {
	db *gorm.DB
}

// NewReviewerRepository instantiates the repository.
func NewReviewerRepository(db *gorm.DB) ReviewerRepository {
	return &reviewerRepository{db: db}
}

func (r *reviewerRepository) Create(ctx context.Context, reviewer *models.Reviewer) error {
	return r.db.WithContext(ctx).Create(reviewer).Error
}

func (r *reviewerRepository) GetByID(ctx context.Context, id uint) (models.Reviewer, error) {
	var reviewer models.Reviewer
	if err := r.db.WithContext(ctx).First(&reviewer, id).Error; err != nil {
		return models.Reviewer{}, err
	}
	return reviewer, nil
}

func (r *reviewerRepository) GetByEmail(ctx context.Context, email string) (models.Reviewer, error) {
	var reviewer models.Reviewer
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&reviewer).Error; err != nil {
		return models.Reviewer{}, err
	}
	return reviewer, nil
}

func (r *reviewerRepository) List(ctx context.Context) ([]models.Reviewer, error) {
	var reviewers []models.Reviewer
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&reviewers).Error; err != nil {
		return nil, err
	}
	return reviewers, nil
}

// HasCapability reports whether the user's role grants the capability. An
// unknown or inactive user simply lacks every capability.
func (r *reviewerRepository) HasCapability(ctx context.Context, userID uint, capability string) (bool, error) {
	var reviewer models.Reviewer
	if err := r.db.WithContext(ctx).First(&reviewer, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !reviewer.Active {
		return false, nil
	}
	return workflow.CapabilityForRole(reviewer.Role) == capability, nil
}

// UserForRole returns the longest-standing active reviewer holding the role,
// or zero when nobody does.
func (r *reviewerRepository) UserForRole(ctx context.Context, role string) (uint, error) {
	var reviewer models.Reviewer
	err := r.db.WithContext(ctx).
		Where("role = ? AND active = ?", role, true).
		Order("id ASC").
		First(&reviewer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return reviewer.ID, nil
}
