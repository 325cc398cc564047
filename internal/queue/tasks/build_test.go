package tasks

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/manasamancharla/deployly/internal/builder"
	"github.com/manasamancharla/deployly/internal/models"
	"github.com/manasamancharla/deployly/internal/repository"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"github.com/manasamancharla/deployly/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// fakeRecordStore mimics the repository including its terminal-state guard.
type fakeRecordStore struct {
	mu         sync.Mutex
	events     []string
	url        string
	logs       []repository.LogEntry
	terminal   bool
	buildingCh chan struct{}

	// transientFailures makes that many UpdateStatus calls fail first.
	transientFailures int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{buildingCh: make(chan struct{})}
}

func (f *fakeRecordStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transientFailures > 0 {
		f.transientFailures--
		return appErr.New(appErr.CodeInternal, "transient store failure")
	}
	if f.terminal {
		return appErr.New(appErr.CodeConflict, "deployment missing or already terminal")
	}
	f.events = append(f.events, status)
	if status == models.StatusBuilding {
		select {
		case <-f.buildingCh:
		default:
			close(f.buildingCh)
		}
	}
	if models.TerminalStatus(status) {
		f.terminal = true
	}
	return nil
}

func (f *fakeRecordStore) MarkSucceeded(ctx context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminal {
		return appErr.New(appErr.CodeConflict, "deployment missing or already terminal")
	}
	f.events = append(f.events, models.StatusSuccess)
	f.url = url
	f.terminal = true
	return nil
}

func (f *fakeRecordStore) AppendLog(ctx context.Context, id uuid.UUID, entry repository.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeRecordStore) snapshot() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...), f.url
}

// fakePipeline waits for the building update to land before finishing, so
// tests can assert the full observed status sequence.
type fakePipeline struct {
	store *fakeRecordStore
	err   error
}

func (p *fakePipeline) Run(ctx context.Context, job builder.Job, logf builder.LogFunc) error {
	select {
	case <-p.store.buildingCh:
	case <-time.After(5 * time.Second):
	}
	if logf != nil {
		logf("info", "stage event")
	}
	return p.err
}

func mustBuildTask(t *testing.T, p BuildPayload) *asynq.Task {
	t.Helper()
	task, err := NewBuildTask(p)
	require.NoError(t, err)
	return task
}

func TestHandleBuildSuccessLifecycle(t *testing.T) {
	store := newFakeRecordStore()
	reporter := NewStatusReporter(store)
	defer reporter.Close()

	h := NewBuildTaskHandler(&fakePipeline{store: store}, reporter, store, "localhost:8000")

	id := uuid.New()
	task := mustBuildTask(t, BuildPayload{
		DeploymentID: id.String(),
		ProjectSlug:  "abc123",
		GitURL:       "https://example/repo.git",
	})

	require.NoError(t, h.HandleBuild(context.Background(), task))

	events, url := store.snapshot()
	require.Equal(t, []string{models.StatusBuilding, models.StatusSuccess}, events)
	require.Equal(t, "http://abc123.localhost:8000", url)
	require.NotEmpty(t, store.logs)
}

func TestHandleBuildPipelineFailureMarksFailed(t *testing.T) {
	store := newFakeRecordStore()
	reporter := NewStatusReporter(store)
	defer reporter.Close()

	pipeErr := &builder.StageError{Stage: builder.StageClone, Err: appErr.New(appErr.CodeCloneFailed, "git clone failed")}
	h := NewBuildTaskHandler(&fakePipeline{store: store, err: pipeErr}, reporter, store, "localhost:8000")

	task := mustBuildTask(t, BuildPayload{
		DeploymentID: uuid.NewString(),
		ProjectSlug:  "abc123",
		GitURL:       "https://example/repo.git",
	})

	// Pipeline failures are terminal, not retried: the handler reports
	// failure on the record and returns nil to the queue.
	require.NoError(t, h.HandleBuild(context.Background(), task))

	events, url := store.snapshot()
	require.Equal(t, []string{models.StatusBuilding, models.StatusFailed}, events)
	require.Empty(t, url)
}

func TestHandleBuildInvalidPayload(t *testing.T) {
	store := newFakeRecordStore()
	reporter := NewStatusReporter(store)
	defer reporter.Close()

	h := NewBuildTaskHandler(&fakePipeline{store: store}, reporter, store, "localhost:8000")

	err := h.HandleBuild(context.Background(), asynq.NewTask(TypeBuild, []byte("not json")))
	require.Error(t, err)

	events, _ := store.snapshot()
	require.Empty(t, events)
}

func TestReporterRetriesTransientFailures(t *testing.T) {
	store := newFakeRecordStore()
	store.transientFailures = 2
	reporter := NewStatusReporter(store)

	id := uuid.New()
	reporter.Report(id, models.StatusBuilding)
	reporter.Close() // drains the queue, including retries

	events, _ := store.snapshot()
	require.Equal(t, []string{models.StatusBuilding}, events)
}

func TestReporterDropsLateUpdatesAfterTerminal(t *testing.T) {
	store := newFakeRecordStore()
	reporter := NewStatusReporter(store)

	id := uuid.New()
	require.NoError(t, reporter.Succeeded(context.Background(), id, "http://abc123.localhost:8000"))

	// A late intermediate update must not regress the terminal state.
	reporter.Report(id, models.StatusBuilding)
	reporter.Close()

	events, url := store.snapshot()
	require.Equal(t, []string{models.StatusSuccess}, events)
	require.Equal(t, "http://abc123.localhost:8000", url)
}
