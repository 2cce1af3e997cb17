package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
)

// CompanyImport is the audit row of one bulk-upload run.
type CompanyImport struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Filename     string         `json:"filename"`
	TotalRows    int            `json:"totalRows"`
	ValidRows    int            `json:"validRows"`
	CreatedCount int            `json:"created"`
	SkippedCount int            `json:"skipped"`
	FailedCount  int            `json:"failed"`
	Status       string         `gorm:"index" json:"status"`
	Message      string         `json:"message"`
	Errors       datatypes.JSON `json:"errors"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
