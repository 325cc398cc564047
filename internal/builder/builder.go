// Package builder implements the per-deployment build pipeline: clone the
// project repository into a fresh workspace, run its build command, and
// publish the build output to the artifact store.
package builder

import (
	"fmt"

	"github.com/google/uuid"
)

// Stage identifies which step of the pipeline an error came from.
type Stage string

const (
	StageClone   Stage = "clone"
	StageBuild   Stage = "build"
	StagePublish Stage = "publish"
)

// StageError tags a pipeline failure with the stage that produced it.
// Every stage failure is terminal for the deployment.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Job describes one build to execute.
type Job struct {
	DeploymentID uuid.UUID
	Slug         string
	GitURL       string
}

// LogFunc receives coarse pipeline events (stage started, stage failed) for
// the deployment's durable log trail. Command output is not routed here; it
// goes to the process logger.
type LogFunc func(level, message string)
