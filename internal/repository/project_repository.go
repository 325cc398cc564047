package repository

import (
	"context"

	"github.com/manasamancharla/deployly/internal/models"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	GetBySlug(ctx context.Context, slug string, dest *models.Project) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) GetBySlug(ctx context.Context, slug string, dest *models.Project) error {
	if err := r.db.WithContext(ctx).First(dest, "slug = ?", slug).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get project by slug failed")
	}
	return nil
}

// upsertProjectBySlug inserts a project or, when the slug already exists,
// updates its repository URL while keeping the original id. RETURNING
// populates the struct either way.
func upsertProjectBySlug(tx *gorm.DB, slug, repositoryURL string) (*models.Project, error) {
	p := &models.Project{Slug: slug, RepositoryURL: repositoryURL}
	err := tx.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"repository_url": repositoryURL}),
		},
		clause.Returning{},
	).Create(p).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "upsert project failed")
	}
	return p, nil
}
