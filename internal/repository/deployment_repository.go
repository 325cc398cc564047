package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/manasamancharla/deployly/internal/models"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LogEntry is one line of a deployment's build log trail, stored in the
// deployment row as JSONB.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type DeploymentRepository interface {
	BaseRepository[models.Deployment]
	// CreateQueued atomically upserts the project by slug and inserts a
	// queued deployment referencing it. Both rows land together or not at all.
	CreateQueued(ctx context.Context, slug, repositoryURL string) (*models.Project, *models.Deployment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Deployment, error)
	// UpdateStatus advances a deployment's status. Terminal rows (success,
	// failed) are never touched; attempting to do so is a conflict.
	UpdateStatus(ctx context.Context, deploymentID uuid.UUID, status string) error
	// MarkSucceeded sets status=success and the serving URL in one write.
	MarkSucceeded(ctx context.Context, deploymentID uuid.UUID, url string) error
	AppendLog(ctx context.Context, deploymentID uuid.UUID, entry LogEntry) error
}

type deploymentRepository struct {
	BaseRepository[models.Deployment]
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{BaseRepository: NewBaseRepository[models.Deployment](db), db: db}
}

func (r *deploymentRepository) CreateQueued(ctx context.Context, slug, repositoryURL string) (*models.Project, *models.Deployment, error) {
	var project *models.Project
	var deployment *models.Deployment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := upsertProjectBySlug(tx, slug, repositoryURL)
		if err != nil {
			return err
		}
		d := &models.Deployment{ProjectID: p.ID, Status: models.StatusQueued}
		if err := tx.Create(d).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "create deployment failed")
		}
		project, deployment = p, d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return project, deployment, nil
}

func (r *deploymentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Deployment, error) {
	var out []models.Deployment
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployments failed")
	}
	return out, nil
}

var nonTerminal = []string{models.StatusQueued, models.StatusBuilding}

func (r *deploymentRepository) UpdateStatus(ctx context.Context, deploymentID uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", deploymentID, nonTerminal).
		Update("status", status)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update deployment status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "deployment missing or already terminal")
	}
	return nil
}

func (r *deploymentRepository) MarkSucceeded(ctx context.Context, deploymentID uuid.UUID, url string) error {
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", deploymentID, nonTerminal).
		Updates(map[string]interface{}{"status": models.StatusSuccess, "url": url})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "mark deployment succeeded failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "deployment missing or already terminal")
	}
	return nil
}

func (r *deploymentRepository) AppendLog(ctx context.Context, deploymentID uuid.UUID, entry LogEntry) error {
	var d models.Deployment
	if err := r.GetByID(ctx, deploymentID, &d); err != nil {
		return err
	}

	var entries []LogEntry
	if len(d.Logs) > 0 {
		if err := json.Unmarshal(d.Logs, &entries); err != nil {
			entries = nil
		}
	}
	entries = append(entries, entry)

	b, err := json.Marshal(entries)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "marshal log entries failed")
	}
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).
		Where("id = ?", deploymentID).
		Update("logs", datatypes.JSON(b))
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "append deployment log failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "deployment not found")
	}
	return nil
}
