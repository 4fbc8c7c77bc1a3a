package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/repository"
	"github.com/surveyops/review-api/internal/workflow"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeRecordRepo struct {
	records map[string]models.ReviewRecord
	trail   map[string][]models.AuditEntry
	created []models.ReviewRecord
}

func newFakeRecordRepo(records ...models.ReviewRecord) *fakeRecordRepo {
	repo := &fakeRecordRepo{
		records: make(map[string]models.ReviewRecord),
		trail:   make(map[string][]models.AuditEntry),
	}
	for _, record := range records {
		repo.records[record.ID] = record
	}
	return repo
}

func (f *fakeRecordRepo) Create(_ context.Context, record *models.ReviewRecord) error {
	record.CreatedAt = time.Now()
	f.records[record.ID] = *record
	f.created = append(f.created, *record)
	return nil
}

func (f *fakeRecordRepo) Get(_ context.Context, id string) (models.ReviewRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return models.ReviewRecord{}, workflow.ErrInvalidRecord
	}
	return record, nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id string) (models.ReviewRecord, error) {
	record, err := f.Get(ctx, id)
	if err != nil {
		return models.ReviewRecord{}, err
	}
	record.Trail = f.trail[id]
	return record, nil
}

func (f *fakeRecordRepo) GetBySource(_ context.Context, surveyID, responseID string) (models.ReviewRecord, error) {
	for _, record := range f.records {
		if record.SurveyID == surveyID && record.ResponseID == responseID {
			return record, nil
		}
	}
	return models.ReviewRecord{}, workflow.ErrInvalidRecord
}

func (f *fakeRecordRepo) List(_ context.Context, filter repository.RecordFilter) ([]models.ReviewRecord, error) {
	var out []models.ReviewRecord
	for _, record := range f.records {
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.AssignedUserID != nil && record.AssignedUserID != *filter.AssignedUserID {
			continue
		}
		if filter.SurveyID != nil && record.SurveyID != *filter.SurveyID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeRecordRepo) Mutate(_ context.Context, id string, fn func(*models.ReviewRecord) ([]models.AuditEntry, error)) error {
	record, ok := f.records[id]
	if !ok {
		return workflow.ErrInvalidRecord
	}

	entries, err := fn(&record)
	if err != nil {
		return err
	}

	f.records[id] = record
	for _, entry := range entries {
		entry.RecordID = id
		entry.CreatedAt = time.Now()
		f.trail[id] = append(f.trail[id], entry)
	}
	return nil
}

type fakeReviewerRepo struct {
	reviewers map[uint]models.Reviewer
}

func newFakeReviewerRepo(reviewers ...models.Reviewer) *fakeReviewerRepo {
	repo := &fakeReviewerRepo{reviewers: make(map[uint]models.Reviewer)}
	for _, reviewer := range reviewers {
		repo.reviewers[reviewer.ID] = reviewer
	}
	return repo
}

func (f *fakeReviewerRepo) Create(_ context.Context, reviewer *models.Reviewer) error {
	f.reviewers[reviewer.ID] = *reviewer
	return nil
}

func (f *fakeReviewerRepo) GetByID(_ context.Context, id uint) (models.Reviewer, error) {
	reviewer, ok := f.reviewers[id]
	if !ok {
		return models.Reviewer{}, gorm.ErrRecordNotFound
	}
	return reviewer, nil
}

func (f *fakeReviewerRepo) GetByEmail(_ context.Context, email string) (models.Reviewer, error) {
	for _, reviewer := range f.reviewers {
		if reviewer.Email == email {
			return reviewer, nil
		}
	}
	return models.Reviewer{}, gorm.ErrRecordNotFound
}

func (f *fakeReviewerRepo) List(_ context.Context) ([]models.Reviewer, error) {
	out := make([]models.Reviewer, 0, len(f.reviewers))
	for _, reviewer := range f.reviewers {
		out = append(out, reviewer)
	}
	return out, nil
}

func (f *fakeReviewerRepo) HasCapability(_ context.Context, userID uint, capability string) (bool, error) {
	reviewer, ok := f.reviewers[userID]
	if !ok || !reviewer.Active {
		return false, nil
	}
	return workflow.CapabilityForRole(reviewer.Role) == capability, nil
}

func (f *fakeReviewerRepo) UserForRole(_ context.Context, role string) (uint, error) {
	var found uint
	for id, reviewer := range f.reviewers {
		if reviewer.Role == role && reviewer.Active && (found == 0 || id < found) {
			found = id
		}
	}
	return found, nil
}

func testReviewers() *fakeReviewerRepo {
	return newFakeReviewerRepo(
		models.Reviewer{ID: 1, Name: "Iris", Email: "iris@example.com", Role: models.RoleInterviewer, Active: true},
		models.Reviewer{ID: 2, Name: "Sam", Email: "sam@example.com", Role: models.RoleSupervisor, Active: true},
		models.Reviewer{ID: 3, Name: "Elena", Email: "elena@example.com", Role: models.RoleExaminer, Active: true},
		models.Reviewer{ID: 9, Name: "Root", Email: "root@example.com", Role: models.RoleAdmin, Active: true},
	)
}

func newTestEngine(records *fakeRecordRepo, reviewers *fakeReviewerRepo, percentage int) *workflow.Engine {
	engine, err := workflow.NewEngine(records, reviewers, nil, workflow.Config{SamplingPercentage: percentage}, testLogger())
	if err != nil {
		panic(err)
	}
	return engine
}
