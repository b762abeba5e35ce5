package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillforge/pkg/models"
	"skillforge/pkg/registry"
)

// recoveryWarmup is the brief pause §4.8 allows before enumerating
// non-terminal runs at startup, giving dependent services (Docker daemon,
// store) a moment to finish opening.
const recoveryWarmup = 500 * time.Millisecond

// Supervisor owns the registry of live Runners and implements §4.8's
// start/resume/recovery operations.
type Supervisor struct {
	deps    Deps
	runners *registry.Registry[*Runner]
}

// NewSupervisor builds a Supervisor over the given dependencies.
func NewSupervisor(deps Deps) *Supervisor {
	return &Supervisor{deps: deps, runners: registry.New[*Runner]()}
}

// StartPipeline creates a PipelineRun in status pending and starts a fresh
// Runner for it. If the skill cannot be loaded or the run cannot be
// persisted, the error is returned and no run is created; this method never
// marks a run failed itself.
func (s *Supervisor) StartPipeline(ctx context.Context, skillID string) (models.PipelineRun, error) {
	skill, err := s.deps.Skills.Get(ctx, skillID)
	if err != nil {
		return models.PipelineRun{}, err
	}

	run := *models.NewPipelineRun(uuid.New().String(), skillID)
	if err := s.deps.Runs.Create(ctx, run); err != nil {
		return models.PipelineRun{}, err
	}

	runner := NewRunner(run, skill, s.deps)
	s.runners.Register(run.ID, runner)
	runner.Start(false)

	return run, nil
}

// ResumePipeline starts a runner in resume mode for an already-persisted
// run. If one is already registered for run_id, this is a no-op success.
func (s *Supervisor) ResumePipeline(ctx context.Context, runID, skillID string) error {
	if _, ok := s.runners.Lookup(runID); ok {
		return nil
	}

	run, err := s.deps.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	skill, err := s.deps.Skills.Get(ctx, skillID)
	if err != nil {
		return err
	}

	runner := NewRunner(run, skill, s.deps)
	s.runners.Register(runID, runner)
	runner.Start(true)
	return nil
}

// Lookup returns the live Runner for a run id, if any.
func (s *Supervisor) Lookup(runID string) (*Runner, bool) {
	return s.runners.Lookup(runID)
}

// GetRun returns a status snapshot for runID: the live in-memory snapshot if
// a Runner is still registered, otherwise the last persisted row.
func (s *Supervisor) GetRun(ctx context.Context, runID string) (models.PipelineRun, error) {
	if runner, ok := s.runners.Lookup(runID); ok {
		return runner.GetStatus(), nil
	}
	return s.deps.Runs.Get(ctx, runID)
}

// RecoverOnStartup implements §4.8's startup recovery policy: enumerate
// every non-terminal run and either resume it or force-fail it, depending
// on how much of its work Docker may have left in an indeterminate state.
func (s *Supervisor) RecoverOnStartup(ctx context.Context) error {
	time.Sleep(recoveryWarmup)

	runs, err := s.deps.Runs.List(ctx, func(r models.PipelineRun) bool { return !r.Status.IsTerminal() })
	if err != nil {
		return err
	}

	for _, run := range runs {
		switch run.Status {
		case models.RunPending, models.RunParsing, models.RunAnalyzing, models.RunReviewing:
			if err := s.ResumePipeline(ctx, run.ID, run.SkillID); err != nil {
				s.deps.Logger.Error("failed to resume pipeline run", "run_id", run.ID, "error", err)
			}
		case models.RunBuilding, models.RunConfiguring:
			s.forceFailInterrupted(ctx, run)
		}
	}
	return nil
}

func (s *Supervisor) forceFailInterrupted(ctx context.Context, run models.PipelineRun) {
	interruptedDuring := run.Status
	now := time.Now()
	run.Status = models.RunFailed
	run.CurrentStep = models.RunFailed.StepIndex()
	run.ErrorMessage = fmt.Sprintf("Interrupted by application restart during %s. Please retry.", interruptedDuring)
	run.CompletedAt = &now
	if err := s.deps.Runs.Update(ctx, run); err != nil {
		s.deps.Logger.Error("failed to force-fail interrupted run", "run_id", run.ID, "error", err)
	}
}
