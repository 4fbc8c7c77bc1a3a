package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/observability"
	"github.com/surveyops/review-api/internal/repository"
	"github.com/surveyops/review-api/internal/workflow"
	"github.com/surveyops/review-api/pkg/surveyapi"
)

// responseSchema constrains the raw answer payload accepted from the source
// survey system: a non-empty object of question key to scalar or list values.
const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"anyOf": [
			{"type": "string"},
			{"type": "number"},
			{"type": "boolean"},
			{"type": "null"},
			{"type": "array", "items": {"type": ["string", "number", "boolean"]}}
		]
	}
}`

// SourceClient pulls survey responses from the source survey system.
type SourceClient interface {
	FetchResponses(ctx context.Context, since time.Time) ([]surveyapi.Response, error)
}

// ImportSummary reports one importer run.
type ImportSummary struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Invalid int `json:"invalid"`
}

// ImportService creates review records from freshly submitted survey responses.
type ImportService interface {
	Run(ctx context.Context) (ImportSummary, error)
}

type importService struct {
	source    SourceClient
	records   repository.RecordRepository
	audits    repository.AuditLogRepository
	reviewers repository.ReviewerRepository
	schema    *jsonschema.Schema
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewImportService constructs the importer.
func NewImportService(source SourceClient, records repository.RecordRepository, audits repository.AuditLogRepository, reviewers repository.ReviewerRepository, logger zerolog.Logger) (ImportService, error) {
	schema, err := jsonschema.CompileString("response.schema.json", responseSchema)
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}

	return &importService{
		source:    source,
		records:   records,
		audits:    audits,
		reviewers: reviewers,
		schema:    schema,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "import_service").Logger(),
		now:       time.Now,
	}, nil
}

// Run fetches new responses and creates a pending_interviewer record for each
// one not seen before. Invalid payloads are counted and skipped, never
// imported partially.
func (s *importService) Run(ctx context.Context) (ImportSummary, error) {
	since := s.lastImportTime(ctx)

	responses, err := s.source.FetchResponses(ctx, since)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("fetch responses: %w", err)
	}

	summary := ImportSummary{Fetched: len(responses)}
	for _, response := range responses {
		switch err := s.importOne(ctx, response); {
		case err == nil:
			summary.Created++
			observability.ImportsTotal().WithLabelValues("created").Inc()
		case errors.Is(err, errAlreadyImported):
			summary.Skipped++
			observability.ImportsTotal().WithLabelValues("skipped").Inc()
		case errors.Is(err, errInvalidPayload):
			summary.Invalid++
			observability.ImportsTotal().WithLabelValues("invalid").Inc()
			s.logger.Warn().
				Str("survey_id", response.SurveyID).
				Str("response_id", response.ResponseID).
				Err(err).
				Msg("rejected survey response payload")
		default:
			return summary, fmt.Errorf("import response %s/%s: %w", response.SurveyID, response.ResponseID, err)
		}
	}

	s.logger.Info().
		Int("fetched", summary.Fetched).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("invalid", summary.Invalid).
		Msg("import run completed")

	return summary, nil
}

var (
	errAlreadyImported = errors.New("response already imported")
	errInvalidPayload  = errors.New("response payload failed validation")
)

func (s *importService) importOne(ctx context.Context, response surveyapi.Response) error {
	if response.SurveyID == "" || response.ResponseID == "" {
		return fmt.Errorf("%w: missing source identifiers", errInvalidPayload)
	}

	if _, err := s.records.GetBySource(ctx, response.SurveyID, response.ResponseID); err == nil {
		return errAlreadyImported
	} else if !errors.Is(err, workflow.ErrInvalidRecord) {
		return err
	}

	data, err := s.validatePayload(response.Answers)
	if err != nil {
		return err
	}

	assignee, err := s.reviewers.UserForRole(ctx, models.RoleInterviewer)
	if err != nil {
		return err
	}

	record := models.ReviewRecord{
		ID:             uuid.NewString(),
		SurveyID:       response.SurveyID,
		ResponseID:     response.ResponseID,
		Status:         string(workflow.StatePendingInterviewer),
		AssignedUserID: assignee,
		Data:           datatypes.JSONMap(data),
	}
	if err := s.records.Create(ctx, &record); err != nil {
		return err
	}

	entry := models.AuditEntry{
		RecordID: record.ID,
		Action:   models.AuditActionImported,
		NewValue: string(workflow.StatePendingInterviewer),
		Notes:    fmt.Sprintf("imported from survey %s", response.SurveyID),
	}
	if err := s.audits.Create(ctx, &entry); err != nil {
		// The record itself is authoritative; a missing import marker is
		// logged rather than failing the run.
		s.logger.Warn().Err(err).Str("record_id", record.ID).Msg("failed to write import audit entry")
	}

	return nil
}

// validatePayload checks the answers against the response schema and strips
// any markup from free-text answers.
func (s *importService) validatePayload(answers map[string]interface{}) (map[string]interface{}, error) {
	if answers == nil {
		return nil, fmt.Errorf("%w: empty payload", errInvalidPayload)
	}

	// Round-trip through JSON so the schema sees the same value shapes the
	// store will persist.
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	var normalized map[string]interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}

	if err := s.schema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}

	for key, value := range normalized {
		if text, ok := value.(string); ok {
			normalized[key] = s.sanitizer.Sanitize(text)
		}
	}

	return normalized, nil
}

// lastImportTime finds the newest imported record so the fetch window only
// covers unseen responses. A cold store fetches everything.
func (s *importService) lastImportTime(ctx context.Context) time.Time {
	records, err := s.records.List(ctx, repository.RecordFilter{})
	if err != nil || len(records) == 0 {
		return time.Time{}
	}

	newest := records[0].CreatedAt
	for _, record := range records {
		if record.CreatedAt.After(newest) {
			newest = record.CreatedAt
		}
	}
	return newest
}
