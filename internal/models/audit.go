package models

import "time"

// AuditEntry is one immutable line on a record's audit trail. Entries are
// only ever appended, never updated or reordered.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RecordID  string    `gorm:"size:36;not null;index" json:"record_id"`
	UserID    uint      `json:"user_id"`
	Action    string    `gorm:"size:32;not null;index" json:"action"`
	OldValue  string    `gorm:"size:64" json:"old_value"`
	NewValue  string    `gorm:"size:64" json:"new_value"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	// AuditActionImported marks the creation of a record from the source survey system.
	AuditActionImported = "imported"
	// AuditActionStatusChange marks a workflow transition.
	AuditActionStatusChange = "status_change"
	// AuditActionDataEdit marks an edit of the raw answer payload.
	AuditActionDataEdit = "data_edit"
	// AuditActionUserAssignment marks a manual reassignment of the record.
	AuditActionUserAssignment = "user_assignment"
	// AuditActionSampling marks the outcome of a sampling gate draw.
	AuditActionSampling = "sampling"
)
