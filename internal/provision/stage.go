package provision

import (
	"context"
	"fmt"
)

// Stage names, as reported to the workflow service and logged at each stage
// boundary.
const (
	StageDeploy      = "deploy_infrastructure"
	StageGeolocation = "configure_geolocation"
	StageSchema      = "configure_schema"
)

// StageError names the pipeline stage a failure occurred in while preserving
// the underlying cause for errors.Is and errors.As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// runStage executes one named stage and wraps its failure. No stage is
// retried; the first failure aborts the run.
func (o *Orchestrator) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	o.log.Info().Str("stage", name).Msg("stage starting")
	if err := fn(ctx); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	o.log.Info().Str("stage", name).Msg("stage completed")
	return nil
}
