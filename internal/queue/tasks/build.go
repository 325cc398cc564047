package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/manasamancharla/deployly/internal/builder"
	"github.com/manasamancharla/deployly/internal/models"
	"github.com/manasamancharla/deployly/internal/repository"
	"github.com/manasamancharla/deployly/pkg/logger"
	"go.uber.org/zap"
)

// TypeBuild is the asynq task type for build-and-publish jobs.
const TypeBuild = "deployment:build"

// BuildPayload is the task payload dispatched per deployment. It carries
// everything the executor needs; the worker does not read the project row.
type BuildPayload struct {
	DeploymentID string `json:"deployment_id"`
	ProjectSlug  string `json:"project_slug"`
	GitURL       string `json:"git_url"`
}

// NewBuildTask wraps a payload into an asynq task. MaxRetry is zero: a
// failed build is terminal for its deployment and is never re-run.
func NewBuildTask(p BuildPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBuild, b, asynq.MaxRetry(0)), nil
}

// SitePipeline is what the handler needs from the builder.
type SitePipeline interface {
	Run(ctx context.Context, job builder.Job, logf builder.LogFunc) error
}

// BuildTaskHandler drives the deployment state machine for one build task:
// queued -> building -> success|failed.
type BuildTaskHandler struct {
	pipeline      SitePipeline
	reporter      *StatusReporter
	store         RecordStore
	servingDomain string
}

func NewBuildTaskHandler(pipeline SitePipeline, reporter *StatusReporter, store RecordStore, servingDomain string) *BuildTaskHandler {
	return &BuildTaskHandler{pipeline: pipeline, reporter: reporter, store: store, servingDomain: servingDomain}
}

func (h *BuildTaskHandler) HandleBuild(ctx context.Context, t *asynq.Task) error {
	var p BuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid build task payload", zap.Error(err))
		return err
	}
	id, err := uuid.Parse(p.DeploymentID)
	if err != nil {
		logger.L().Error("invalid deployment id in build task", zap.Error(err))
		return err
	}

	logger.L().Info("handling build task",
		zap.String("deployment_id", id.String()),
		zap.String("slug", p.ProjectSlug),
		zap.String("git_url", p.GitURL),
	)

	// Best-effort: a lost building update is an observability gap, not a
	// reason to abort the build.
	h.reporter.Report(id, models.StatusBuilding)

	logf := func(level, message string) {
		_ = h.store.AppendLog(ctx, id, repository.LogEntry{
			Timestamp: time.Now().UTC(),
			Level:     level,
			Message:   message,
		})
	}

	job := builder.Job{DeploymentID: id, Slug: p.ProjectSlug, GitURL: p.GitURL}
	if err := h.pipeline.Run(ctx, job, logf); err != nil {
		var se *builder.StageError
		stage := "unknown"
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		logger.L().Error("build pipeline failed",
			zap.String("deployment_id", id.String()),
			zap.String("stage", stage),
			zap.Error(err),
		)
		if ferr := h.reporter.Failed(ctx, id); ferr != nil {
			logger.L().Error("mark deployment failed lost", zap.String("deployment_id", id.String()), zap.Error(ferr))
		}
		// The failure is recorded on the deployment row; returning nil
		// keeps asynq from re-running a terminally failed build.
		return nil
	}

	url := fmt.Sprintf("http://%s.%s", p.ProjectSlug, h.servingDomain)
	if err := h.reporter.Succeeded(ctx, id, url); err != nil {
		logger.L().Error("mark deployment succeeded lost", zap.String("deployment_id", id.String()), zap.Error(err))
		return nil
	}

	logf("info", "deployment live at "+url)
	logger.L().Info("build task completed",
		zap.String("deployment_id", id.String()),
		zap.String("url", url),
	)
	return nil
}
