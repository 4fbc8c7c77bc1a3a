package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/surveyops/review-api/internal/dto"
	"github.com/surveyops/review-api/internal/repository"
	"github.com/surveyops/review-api/internal/workflow"
)

// ReviewService exposes the workflow engine to the HTTP layer.
type ReviewService interface {
	Transition(ctx context.Context, recordID string, payload dto.TransitionRequest, actorID uint) (dto.RecordResponse, error)
	Validate(ctx context.Context, recordID, action string, actorID uint) error
	AvailableActions(ctx context.Context, recordID string, actorID uint) (map[string]dto.TransitionResponse, error)
	GetRecord(ctx context.Context, recordID string) (dto.RecordResponse, error)
	ListRecords(ctx context.Context, filter dto.RecordListFilter) ([]dto.RecordResponse, error)
	EditData(ctx context.Context, recordID string, payload dto.DataEditRequest, actorID uint) (dto.RecordResponse, error)
	Reassign(ctx context.Context, recordID string, payload dto.ReassignRequest, actorID uint) (dto.RecordResponse, error)
}

type reviewService struct {
	engine    *workflow.Engine
	records   repository.RecordRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReviewService constructs the review service.
func NewReviewService(engine *workflow.Engine, records repository.RecordRepository, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		engine:    engine,
		records:   records,
		validator: validate,
		logger:    logger.With().Str("component", "review_service").Logger(),
		tracer:    otel.Tracer("github.com/surveyops/review-api/internal/service/review"),
	}
}

func (s *reviewService) Transition(ctx context.Context, recordID string, payload dto.TransitionRequest, actorID uint) (dto.RecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.transition", trace.WithAttributes(
		attribute.String("review.record_id", recordID),
		attribute.String("review.action", payload.Action),
		attribute.Int64("review.actor_id", int64(actorID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecordResponse{}, err
	}

	if err := s.engine.TransitionStatus(ctx, recordID, workflow.Action(payload.Action), actorID, payload.Notes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.RecordResponse{}, err
	}

	return s.GetRecord(ctx, recordID)
}

func (s *reviewService) Validate(ctx context.Context, recordID, action string, actorID uint) error {
	return s.engine.ValidateTransition(ctx, recordID, workflow.Action(action), actorID)
}

func (s *reviewService) AvailableActions(ctx context.Context, recordID string, actorID uint) (map[string]dto.TransitionResponse, error) {
	available, err := s.engine.AvailableActions(ctx, recordID, actorID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]dto.TransitionResponse, len(available))
	for action, definition := range available {
		out[string(action)] = dto.NewTransitionResponse(action, definition)
	}
	return out, nil
}

func (s *reviewService) GetRecord(ctx context.Context, recordID string) (dto.RecordResponse, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return dto.RecordResponse{}, err
	}
	return dto.NewRecordResponse(record), nil
}

func (s *reviewService) ListRecords(ctx context.Context, filter dto.RecordListFilter) ([]dto.RecordResponse, error) {
	records, err := s.records.List(ctx, repository.RecordFilter{
		Status:         filter.Status,
		AssignedUserID: filter.AssignedUserID,
		SurveyID:       filter.SurveyID,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewRecordResponseSlice(records), nil
}

func (s *reviewService) EditData(ctx context.Context, recordID string, payload dto.DataEditRequest, actorID uint) (dto.RecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.edit_data", trace.WithAttributes(
		attribute.String("review.record_id", recordID),
		attribute.Int64("review.actor_id", int64(actorID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecordResponse{}, err
	}

	if err := s.engine.EditData(ctx, recordID, actorID, payload.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "edit_failed")
		return dto.RecordResponse{}, err
	}

	return s.GetRecord(ctx, recordID)
}

func (s *reviewService) Reassign(ctx context.Context, recordID string, payload dto.ReassignRequest, actorID uint) (dto.RecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.reassign", trace.WithAttributes(
		attribute.String("review.record_id", recordID),
		attribute.Int64("review.actor_id", int64(actorID)),
		attribute.Int64("review.assignee_id", int64(payload.AssigneeID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecordResponse{}, err
	}

	if err := s.engine.ReassignUser(ctx, recordID, actorID, payload.AssigneeID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reassign_failed")
		return dto.RecordResponse{}, err
	}

	return s.GetRecord(ctx, recordID)
}
