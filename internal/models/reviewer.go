package models

import "time"

// Reviewer is a human user taking part in the review workflow.
type Reviewer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:256;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;index" json:"role"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// RoleInterviewer performs the first review stage.
	RoleInterviewer = "interviewer"
	// RoleSupervisor performs the second review stage.
	RoleSupervisor = "supervisor"
	// RoleExaminer performs the third review stage.
	RoleExaminer = "examiner"
	// RoleAdmin bypasses role gates and manages the workflow.
	RoleAdmin = "admin"
)
