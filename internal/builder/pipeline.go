package builder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/manasamancharla/deployly/internal/storage"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
	"github.com/manasamancharla/deployly/pkg/logger"
	"go.uber.org/zap"
)

// Pipeline runs build jobs. One Pipeline is shared by all worker tasks; each
// job gets its own workspace under workRoot, so concurrent builds only meet
// at the artifact store (last-write-wins on same-slug redeploys).
type Pipeline struct {
	workRoot     string
	buildCommand string
	outputDir    string
	timeout      time.Duration
	store        storage.ArtifactStore
}

func NewPipeline(workRoot, buildCommand, outputDir string, timeout time.Duration, store storage.ArtifactStore) *Pipeline {
	return &Pipeline{
		workRoot:     workRoot,
		buildCommand: buildCommand,
		outputDir:    outputDir,
		timeout:      timeout,
		store:        store,
	}
}

// Run executes the pipeline for one job. The whole run is bounded by the
// pipeline timeout; a hung clone or build is killed with its workspace
// removed. The returned error, if any, is a *StageError.
func (p *Pipeline) Run(ctx context.Context, job Job, logf LogFunc) error {
	if logf == nil {
		logf = func(string, string) {}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	workspace := filepath.Join(p.workRoot, job.DeploymentID.String())
	defer os.RemoveAll(workspace)

	logf("info", "cloning "+job.GitURL)
	if err := p.clone(ctx, job, workspace); err != nil {
		logf("error", fmt.Sprintf("clone failed: %v", err))
		return &StageError{Stage: StageClone, Err: err}
	}

	logf("info", "running build command")
	if err := p.build(ctx, job, workspace); err != nil {
		logf("error", fmt.Sprintf("build failed: %v", err))
		return &StageError{Stage: StageBuild, Err: err}
	}

	logf("info", "publishing build output")
	count, err := p.publish(ctx, job, workspace)
	if err != nil {
		logf("error", fmt.Sprintf("publish failed: %v", err))
		return &StageError{Stage: StagePublish, Err: err}
	}

	logf("info", fmt.Sprintf("published %d files", count))
	return nil
}

// clone fetches the repository into a fresh workspace. Any pre-existing
// workspace for this deployment is removed first.
func (p *Pipeline) clone(ctx context.Context, job Job, workspace string) error {
	if err := os.RemoveAll(workspace); err != nil {
		return appErr.Wrap(err, appErr.CodeCloneFailed, "reset workspace failed")
	}
	if err := os.MkdirAll(filepath.Dir(workspace), 0o755); err != nil {
		return appErr.Wrap(err, appErr.CodeCloneFailed, "create work root failed")
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth=1", job.GitURL, workspace)
	if err := p.runStreaming(cmd, job); err != nil {
		return appErr.Wrap(err, appErr.CodeCloneFailed, "git clone failed")
	}
	return nil
}

// build runs the project's install-and-build command inside the workspace.
func (p *Pipeline) build(ctx context.Context, job Job, workspace string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", p.buildCommand)
	cmd.Dir = workspace
	if err := p.runStreaming(cmd, job); err != nil {
		return appErr.Wrap(err, appErr.CodeBuildFailed, "build command failed")
	}
	return nil
}

// runStreaming starts cmd with stdout and stderr multiplexed onto one pipe
// and streams every line through the process logger, then waits for exit.
func (p *Pipeline) runStreaming(cmd *exec.Cmd, job Job) error {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	// Backstop: never wait on the pipe copy forever once the process is gone.
	cmd.WaitDelay = 10 * time.Second

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			logger.L().Info("build output",
				zap.String("deployment_id", job.DeploymentID.String()),
				zap.String("slug", job.Slug),
				zap.String("line", sc.Text()),
			)
		}
		if err := sc.Err(); err != nil {
			// An oversized line aborts the scan (minified bundles can emit
			// multi-MB lines). Keep draining so the command's pipe copy
			// never blocks and Run always returns.
			logger.L().Warn("build output truncated",
				zap.String("deployment_id", job.DeploymentID.String()),
				zap.Error(err),
			)
			_, _ = io.Copy(io.Discard, pr)
		}
	}()

	err := cmd.Run()
	_ = pw.Close()
	<-done
	return err
}

// publish walks the build output directory and uploads every regular file
// to the artifact store. Uploads are sequential; the first failure stops the
// walk and fails the deployment, leaving earlier uploads in place.
func (p *Pipeline) publish(ctx context.Context, job Job, workspace string) (int, error) {
	outDir := filepath.Join(workspace, p.outputDir)
	info, err := os.Stat(outDir)
	if err != nil || !info.IsDir() {
		// The build ran but did not produce the expected artifact root.
		return 0, appErr.New(appErr.CodeBuildFailed, fmt.Sprintf("build output directory %q missing", p.outputDir))
	}

	count := 0
	err = filepath.WalkDir(outDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return appErr.Wrap(err, appErr.CodePublishFailed, "walk build output failed")
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return appErr.Wrap(err, appErr.CodePublishFailed, "resolve artifact path failed")
		}
		key := storage.ObjectKey(job.Slug, filepath.ToSlash(rel))

		if err := p.uploadFile(ctx, key, path); err != nil {
			return err
		}
		count++

		logger.L().Debug("artifact uploaded",
			zap.String("deployment_id", job.DeploymentID.String()),
			zap.String("key", key),
		)
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

func (p *Pipeline) uploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return appErr.Wrap(err, appErr.CodePublishFailed, "open artifact failed").WithMeta("key", key)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return appErr.Wrap(err, appErr.CodePublishFailed, "stat artifact failed").WithMeta("key", key)
	}

	return p.store.Put(ctx, key, DetectContentType(path), f, st.Size())
}
