package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewRecord is one survey response under quality review.
type ReviewRecord struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	SurveyID       string            `gorm:"size:64;not null;uniqueIndex:idx_source_response" json:"survey_id"`
	ResponseID     string            `gorm:"size:64;not null;uniqueIndex:idx_source_response" json:"response_id"`
	Status         string            `gorm:"size:32;not null;index" json:"status"`
	AssignedUserID uint              `gorm:"index" json:"assigned_user_id"`
	Data           datatypes.JSONMap `gorm:"type:json" json:"data"`
	CompletionDate *time.Time        `json:"completion_date"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Trail          []AuditEntry      `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE" json:"trail"`
}

// IsFinal reports whether the record has reached a terminal workflow state.
func (r ReviewRecord) IsFinal() bool {
	return r.CompletionDate != nil
}
