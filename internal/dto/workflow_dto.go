package dto

import (
	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/workflow"
)

// StateResponse serializes one workflow state definition.
type StateResponse struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Color        string   `json:"color"`
	AllowedRoles []string `json:"allowed_roles,omitempty"`
	Actions      []string `json:"actions,omitempty"`
	NextStates   []string `json:"next_states,omitempty"`
	IsFinal      bool     `json:"is_final"`
}

// TransitionResponse serializes one transition definition.
type TransitionResponse struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	From         []string `json:"from"`
	To           []string `json:"to"`
	RequiredRole string   `json:"required_role"`
	RequiresNote bool     `json:"requires_note"`
	IsSampling   bool     `json:"is_sampling"`
}

// StatusCount is the per-state slice of the workflow statistics.
type StatusCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
	Color string `json:"color"`
}

// SamplingStatistics splits sampling gate runs by outcome.
type SamplingStatistics struct {
	Total            int64 `json:"total"`
	Finalized        int64 `json:"finalized"`
	RoutedToExaminer int64 `json:"routed_to_examiner"`
}

// PerformanceMetricsResponse aggregates throughput figures over the store.
type PerformanceMetricsResponse struct {
	AverageProcessingSeconds float64            `json:"average_processing_seconds"`
	CompletionRate           float64            `json:"completion_rate"`
	TotalProcessed           int64              `json:"total_processed"`
	TotalCompleted           int64              `json:"total_completed"`
	Sampling                 SamplingStatistics `json:"sampling_statistics"`
}

// LogEntryResponse is one line of the workflow transition history.
type LogEntryResponse struct {
	RecordID string `json:"record_id"`
	AuditEntryResponse
}

// LogListResponse pages through the workflow history.
type LogListResponse struct {
	Items []LogEntryResponse `json:"items"`
	Total int64              `json:"total"`
}

// LogFilterRequest describes query string filters for the workflow log.
type LogFilterRequest struct {
	RecordID string `query:"record_id"`
	UserID   uint   `query:"user_id"`
	Action   string `query:"action"`
	Limit    int    `query:"limit" validate:"omitempty,gte=0,lte=500"`
	Page     int    `query:"page" validate:"omitempty,gte=0"`
}

// NewStateResponses flattens the state table for API consumers.
func NewStateResponses(states map[workflow.State]workflow.StateDefinition) map[string]StateResponse {
	out := make(map[string]StateResponse, len(states))
	for key, def := range states {
		out[string(key)] = StateResponse{
			Key:          string(key),
			Label:        def.Label,
			Color:        def.Color,
			AllowedRoles: def.AllowedRoles,
			Actions:      actionKeys(def.Actions),
			NextStates:   stateKeys(def.NextStates),
			IsFinal:      def.IsFinal,
		}
	}
	return out
}

// NewTransitionResponses flattens the transition table for API consumers.
func NewTransitionResponses(transitions map[workflow.Action]workflow.TransitionDefinition) map[string]TransitionResponse {
	out := make(map[string]TransitionResponse, len(transitions))
	for key, def := range transitions {
		out[string(key)] = NewTransitionResponse(key, def)
	}
	return out
}

// NewTransitionResponse converts one transition definition.
func NewTransitionResponse(key workflow.Action, def workflow.TransitionDefinition) TransitionResponse {
	return TransitionResponse{
		Key:          string(key),
		Label:        def.Label,
		From:         stateKeys(def.From),
		To:           stateKeys(def.To),
		RequiredRole: def.RequiredRole,
		RequiresNote: def.RequiresNote,
		IsSampling:   def.IsSampling,
	}
}

// NewLogEntryResponse converts an audit entry into a workflow log line.
func NewLogEntryResponse(model models.AuditEntry) LogEntryResponse {
	return LogEntryResponse{
		RecordID:           model.RecordID,
		AuditEntryResponse: NewAuditEntryResponse(model),
	}
}

func actionKeys(actions []workflow.Action) []string {
	if len(actions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(actions))
	for _, action := range actions {
		keys = append(keys, string(action))
	}
	return keys
}

func stateKeys(states []workflow.State) []string {
	if len(states) == 0 {
		return nil
	}
	keys := make([]string, 0, len(states))
	for _, state := range states {
		keys = append(keys, string(state))
	}
	return keys
}
