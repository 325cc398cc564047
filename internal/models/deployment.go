package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Deployment statuses. The lifecycle is monotonic:
// queued -> building -> success|failed. success and failed are terminal.
const (
	StatusQueued   = "queued"
	StatusBuilding = "building"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
)

// TerminalStatus reports whether s ends the deployment lifecycle.
func TerminalStatus(s string) bool {
	return s == StatusSuccess || s == StatusFailed
}

// Deployment is one build-and-publish attempt for a project. It is created
// queued by the orchestration API and owned by the build executor afterwards.
type Deployment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID      `gorm:"type:uuid;index;not null" json:"project_id" validate:"required"`
	Status    string         `gorm:"type:varchar(16);index;not null;default:queued" json:"status" validate:"required,oneof=queued building success failed"`
	URL       *string        `gorm:"type:text" json:"url,omitempty"`
	Logs      datatypes.JSON `gorm:"type:jsonb" json:"logs,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
