package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"github.com/manasamancharla/deployly/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type uploaded struct {
	contentType string
	body        []byte
}

// fakeArtifactStore captures uploads; failKey makes one key error out.
type fakeArtifactStore struct {
	mu      sync.Mutex
	objects map[string]uploaded
	failKey string
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{objects: map[string]uploaded{}}
}

func (f *fakeArtifactStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	if key == f.failKey {
		return appErr.New(appErr.CodePublishFailed, "simulated upload failure")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = uploaded{contentType: contentType, body: b}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testJob() Job {
	return Job{DeploymentID: uuid.New(), Slug: "abc123", GitURL: "https://example/repo.git"}
}

func TestPublishUploadsEveryRegularFile(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, "dist", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(workspace, "dist", "assets", "app.js"), "console.log(1)")
	writeFile(t, filepath.Join(workspace, "dist", "style.css"), "body{}")

	store := newFakeArtifactStore()
	p := NewPipeline(t.TempDir(), "true", "dist", time.Minute, store)

	count, err := p.publish(context.Background(), testJob(), workspace)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.Contains(t, store.objects, "__outputs/abc123/index.html")
	require.Contains(t, store.objects, "__outputs/abc123/assets/app.js")
	require.Contains(t, store.objects, "__outputs/abc123/style.css")
	require.Equal(t, "<html></html>", string(store.objects["__outputs/abc123/index.html"].body))
	require.Contains(t, store.objects["__outputs/abc123/index.html"].contentType, "text/html")
}

func TestPublishMissingOutputDirIsBuildFailure(t *testing.T) {
	workspace := t.TempDir() // no dist

	store := newFakeArtifactStore()
	p := NewPipeline(t.TempDir(), "true", "dist", time.Minute, store)

	_, err := p.publish(context.Background(), testJob(), workspace)
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeBuildFailed))
}

func TestPublishStopsAtFirstUploadFailure(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, "dist", "a.txt"), "a")
	writeFile(t, filepath.Join(workspace, "dist", "b.txt"), "b")
	writeFile(t, filepath.Join(workspace, "dist", "c.txt"), "c")

	store := newFakeArtifactStore()
	store.failKey = "__outputs/abc123/b.txt"
	p := NewPipeline(t.TempDir(), "true", "dist", time.Minute, store)

	_, err := p.publish(context.Background(), testJob(), workspace)
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodePublishFailed))
	// Files uploaded before the failure stay in the store.
	require.Contains(t, store.objects, "__outputs/abc123/a.txt")
	require.NotContains(t, store.objects, "__outputs/abc123/b.txt")
}

func TestBuildCommandFailureSurfaces(t *testing.T) {
	workspace := t.TempDir()
	p := NewPipeline(t.TempDir(), "exit 3", "dist", time.Minute, newFakeArtifactStore())

	err := p.build(context.Background(), testJob(), workspace)
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeBuildFailed))
}

func TestBuildCommandRunsInWorkspace(t *testing.T) {
	workspace := t.TempDir()
	p := NewPipeline(t.TempDir(), "mkdir -p dist && echo hi > dist/out.txt", "dist", time.Minute, newFakeArtifactStore())

	require.NoError(t, p.build(context.Background(), testJob(), workspace))
	_, err := os.Stat(filepath.Join(workspace, "dist", "out.txt"))
	require.NoError(t, err)
}

func TestBuildSurvivesOversizedOutputLine(t *testing.T) {
	workspace := t.TempDir()
	// One 2MB line, no newline: overflows the output scanner's buffer.
	p := NewPipeline(t.TempDir(), "head -c 2097152 /dev/zero | tr '\\0' x", "dist", time.Minute, newFakeArtifactStore())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.build(ctx, testJob(), workspace) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("build did not return after oversized output line")
	}
}

func TestRunCloneFailureIsStageError(t *testing.T) {
	store := newFakeArtifactStore()
	p := NewPipeline(t.TempDir(), "true", "dist", 30*time.Second, store)

	job := testJob()
	job.GitURL = "/nonexistent/repo.git"

	var logs []string
	err := p.Run(context.Background(), job, func(level, msg string) {
		logs = append(logs, level+": "+msg)
	})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageClone, se.Stage)
	require.True(t, appErr.IsCode(err, appErr.CodeCloneFailed))
	require.NotEmpty(t, logs)
}
