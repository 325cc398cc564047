package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a deployable site identified by its slug. The slug doubles as
// the serving subdomain and never changes once chosen; only the repository
// URL is updated on redeploy.
type Project struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Slug          string    `gorm:"type:varchar(63);uniqueIndex;not null" json:"slug" validate:"required"`
	RepositoryURL string    `gorm:"column:repository_url;type:text;not null" json:"repository_url" validate:"required,url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
