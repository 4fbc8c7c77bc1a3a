package dto

import (
	"time"

	"github.com/surveyops/review-api/internal/models"
)

// TransitionRequest asks the engine to run a named action on a record.
type TransitionRequest struct {
	Action string `json:"action" validate:"required"`
	Notes  string `json:"notes"`
}

// DataEditRequest replaces the raw answer payload of a record.
type DataEditRequest struct {
	Data map[string]interface{} `json:"data" validate:"required"`
}

// ReassignRequest hands a record to another reviewer.
type ReassignRequest struct {
	AssigneeID uint `json:"assignee_id" validate:"required,gt=0"`
}

// RecordListFilter describes query string filters for listing records.
type RecordListFilter struct {
	Status         *string `query:"status"`
	AssignedUserID *uint   `query:"assigned_user_id"`
	SurveyID       *string `query:"survey_id"`
}

// AuditEntryResponse serializes one audit trail line.
type AuditEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    uint      `json:"user_id"`
	Action    string    `json:"action"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// RecordResponse is returned to API clients when viewing records.
type RecordResponse struct {
	ID             string                 `json:"id"`
	SurveyID       string                 `json:"survey_id"`
	ResponseID     string                 `json:"response_id"`
	Status         string                 `json:"status"`
	AssignedUserID uint                   `json:"assigned_user_id"`
	Data           map[string]interface{} `json:"data"`
	CompletionDate *time.Time             `json:"completion_date"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Trail          []AuditEntryResponse   `json:"trail,omitempty"`
}

// NewAuditEntryResponse converts an audit entry model into a DTO.
func NewAuditEntryResponse(model models.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Timestamp: model.CreatedAt,
		UserID:    model.UserID,
		Action:    model.Action,
		OldValue:  model.OldValue,
		NewValue:  model.NewValue,
		Notes:     model.Notes,
	}
}

// NewRecordResponse converts a ReviewRecord model into a DTO.
func NewRecordResponse(model models.ReviewRecord) RecordResponse {
	response := RecordResponse{
		ID:             model.ID,
		SurveyID:       model.SurveyID,
		ResponseID:     model.ResponseID,
		Status:         model.Status,
		AssignedUserID: model.AssignedUserID,
		Data:           map[string]interface{}(model.Data),
		CompletionDate: model.CompletionDate,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if len(model.Trail) > 0 {
		trail := make([]AuditEntryResponse, 0, len(model.Trail))
		for _, entry := range model.Trail {
			trail = append(trail, NewAuditEntryResponse(entry))
		}
		response.Trail = trail
	}

	return response
}

// NewRecordResponseSlice converts record models into DTOs.
func NewRecordResponseSlice(records []models.ReviewRecord) []RecordResponse {
	responses := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewRecordResponse(record))
	}
	return responses
}
