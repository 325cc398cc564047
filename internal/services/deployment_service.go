package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/manasamancharla/deployly/internal/models"
	"github.com/manasamancharla/deployly/internal/queue/tasks"
	"github.com/manasamancharla/deployly/internal/repository"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"github.com/manasamancharla/deployly/pkg/logger"
	"github.com/manasamancharla/deployly/pkg/utils"
	"go.uber.org/zap"
)

// DeploymentService owns the orchestration side of the lifecycle: persist
// project + queued deployment, dispatch the build executor, and expose the
// records for observation. Build outcomes are only ever observed through
// the record store, never returned synchronously.
type DeploymentService interface {
	CreateDeployment(ctx context.Context, input *CreateDeploymentInput) (*CreateDeploymentResult, error)
	GetProject(ctx context.Context, slug string) (*models.Project, []models.Deployment, error)
	GetDeployment(ctx context.Context, deploymentID uuid.UUID) (*models.Deployment, error)
	GetDeploymentLogs(ctx context.Context, deploymentID uuid.UUID) ([]repository.LogEntry, error)
}

type CreateDeploymentInput struct {
	GitURL string
	Slug   string
}

type CreateDeploymentResult struct {
	Project    *models.Project
	Deployment *models.Deployment
	URL        string
}

// taskEnqueuer is the slice of asynq.Client the service uses; kept as an
// interface so tests can dispatch into a fake.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type deploymentService struct {
	projectRepo   repository.ProjectRepository
	deployRepo    repository.DeploymentRepository
	client        taskEnqueuer
	servingDomain string
}

func NewDeploymentService(projectRepo repository.ProjectRepository, deployRepo repository.DeploymentRepository, client taskEnqueuer, servingDomain string) DeploymentService {
	return &deploymentService{
		projectRepo:   projectRepo,
		deployRepo:    deployRepo,
		client:        client,
		servingDomain: servingDomain,
	}
}

var _ DeploymentService = (*deploymentService)(nil)

func (s *deploymentService) CreateDeployment(ctx context.Context, input *CreateDeploymentInput) (*CreateDeploymentResult, error) {
	if input.GitURL == "" {
		return nil, appErr.New(appErr.CodeInvalid, "gitURL is required")
	}

	slug := input.Slug
	if slug == "" {
		slug = utils.GenerateSlug(utils.SlugLength)
	} else if !utils.ValidSlug(slug) {
		return nil, appErr.New(appErr.CodeInvalid, "slug must be a lowercase DNS label")
	}

	project, deployment, err := s.deployRepo.CreateQueued(ctx, slug, input.GitURL)
	if err != nil {
		return nil, err
	}

	logger.L().Info("deployment queued",
		zap.String("deployment_id", deployment.ID.String()),
		zap.String("slug", slug),
		zap.String("git_url", input.GitURL),
	)

	task, err := tasks.NewBuildTask(tasks.BuildPayload{
		DeploymentID: deployment.ID.String(),
		ProjectSlug:  project.Slug,
		GitURL:       project.RepositoryURL,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDispatchFailed, "encode build task failed")
	}

	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		logger.L().Error("dispatch build task failed",
			zap.String("deployment_id", deployment.ID.String()),
			zap.Error(err),
		)
		// Compensating update so the row does not sit queued forever with
		// no executor coming. Best-effort.
		_ = s.deployRepo.UpdateStatus(ctx, deployment.ID, models.StatusFailed)
		return nil, appErr.Wrap(err, appErr.CodeDispatchFailed, "dispatch build task failed")
	}

	return &CreateDeploymentResult{
		Project:    project,
		Deployment: deployment,
		URL:        fmt.Sprintf("http://%s.%s", slug, s.servingDomain),
	}, nil
}

func (s *deploymentService) GetProject(ctx context.Context, slug string) (*models.Project, []models.Deployment, error) {
	var p models.Project
	if err := s.projectRepo.GetBySlug(ctx, slug, &p); err != nil {
		return nil, nil, err
	}
	deployments, err := s.deployRepo.ListByProject(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return &p, deployments, nil
}

func (s *deploymentService) GetDeployment(ctx context.Context, deploymentID uuid.UUID) (*models.Deployment, error) {
	var d models.Deployment
	if err := s.deployRepo.GetByID(ctx, deploymentID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *deploymentService) GetDeploymentLogs(ctx context.Context, deploymentID uuid.UUID) ([]repository.LogEntry, error) {
	var d models.Deployment
	if err := s.deployRepo.GetByID(ctx, deploymentID, &d); err != nil {
		return nil, err
	}
	var entries []repository.LogEntry
	if len(d.Logs) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(d.Logs, &entries); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal deployment logs failed")
	}
	return entries, nil
}
