package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/manasamancharla/deployly/internal/models"
	"github.com/manasamancharla/deployly/internal/repository"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"github.com/manasamancharla/deployly/pkg/logger"
	"go.uber.org/zap"
)

// RecordStore is the slice of the deployment record store the worker needs
// to report build progress and outcomes.
type RecordStore interface {
	UpdateStatus(ctx context.Context, deploymentID uuid.UUID, status string) error
	MarkSucceeded(ctx context.Context, deploymentID uuid.UUID, url string) error
	AppendLog(ctx context.Context, deploymentID uuid.UUID, entry repository.LogEntry) error
}

type statusUpdate struct {
	deploymentID uuid.UUID
	status       string
}

// StatusReporter decouples status updates from the build's critical path.
// Intermediate updates are queued onto a single FIFO goroutine and applied
// with bounded retries, so a slow record store never stalls a build and
// update order is preserved. Terminal outcomes are written synchronously;
// the repository's terminal guard turns any late intermediate update into a
// no-op conflict.
type StatusReporter struct {
	store RecordStore
	queue chan statusUpdate
	done  chan struct{}
}

func NewStatusReporter(store RecordStore) *StatusReporter {
	r := &StatusReporter{
		store: store,
		queue: make(chan statusUpdate, 64),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *StatusReporter) run() {
	defer close(r.done)
	for u := range r.queue {
		r.apply(u)
	}
}

func (r *StatusReporter) apply(u statusUpdate) {
	err := withRetry(context.Background(), func(ctx context.Context) error {
		return r.store.UpdateStatus(ctx, u.deploymentID, u.status)
	})
	if err != nil {
		// A conflict means the deployment reached a terminal state before
		// this update drained; dropping it keeps the lifecycle monotonic.
		if appErr.IsCode(err, appErr.CodeConflict) {
			return
		}
		logger.L().Warn("status update lost",
			zap.String("deployment_id", u.deploymentID.String()),
			zap.String("status", u.status),
			zap.Error(err),
		)
	}
}

// Report queues an intermediate status update without blocking. If the
// queue is saturated the update is dropped and logged; the record store is
// then stale, which is tolerated for non-terminal states.
func (r *StatusReporter) Report(deploymentID uuid.UUID, status string) {
	select {
	case r.queue <- statusUpdate{deploymentID: deploymentID, status: status}:
	default:
		logger.L().Warn("status update dropped, reporter queue full",
			zap.String("deployment_id", deploymentID.String()),
			zap.String("status", status),
		)
	}
}

// Succeeded records the terminal success outcome with its serving URL.
func (r *StatusReporter) Succeeded(ctx context.Context, deploymentID uuid.UUID, url string) error {
	return withRetry(ctx, func(ctx context.Context) error {
		return r.store.MarkSucceeded(ctx, deploymentID, url)
	})
}

// Failed records the terminal failure outcome.
func (r *StatusReporter) Failed(ctx context.Context, deploymentID uuid.UUID) error {
	return withRetry(ctx, func(ctx context.Context) error {
		return r.store.UpdateStatus(ctx, deploymentID, models.StatusFailed)
	})
}

// Close drains queued updates and stops the reporter goroutine.
func (r *StatusReporter) Close() {
	close(r.queue)
	<-r.done
}

// withRetry applies fn with exponential backoff. Conflicts and missing rows
// are not retried; retrying cannot change either outcome.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	const attempts = 3
	delay := 200 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if appErr.IsCode(err, appErr.CodeConflict) || appErr.IsCode(err, appErr.CodeNotFound) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay << i):
		}
	}
	return err
}
