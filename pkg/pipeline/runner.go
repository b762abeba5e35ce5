// Package pipeline is the per-run state machine: one actor goroutine and a
// serial mailbox per PipelineRun, persisting then publishing every
// transition and dispatching analyze/build/configure work to background
// tasks whose results are tagged with a correlation handle, per §4.7.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillforge/pkg/buildctx"
	"skillforge/pkg/docker"
	"skillforge/pkg/errors"
	"skillforge/pkg/events"
	"skillforge/pkg/models"
	"skillforge/pkg/parser"
	"skillforge/pkg/store"
)

const domain = "pipeline"

// analyzeTaskTimeout bounds one analyzer.Analyze call, which itself retries
// the underlying LLM request; this is a ceiling on the whole background task.
const analyzeTaskTimeout = 2 * time.Minute

// verifyExecTimeout is the fixed 10s budget §4.7's verification task allows
// for the in-container manifest check.
const verifyExecTimeout = 10 * time.Second

// buildTaskTimeout bounds the whole build task; the docker driver enforces
// its own per-call timeouts underneath this outer ceiling.
const buildTaskTimeout = 6 * time.Minute

// SpecAnalyzer is the subset of analyzer.Analyzer the runner depends on.
type SpecAnalyzer interface {
	Analyze(ctx context.Context, skill models.Skill) (models.SandboxSpec, error)
}

// MonitorStarter is how the runner hands a freshly built Sandbox off to the
// monitor subsystem without importing it directly.
type MonitorStarter interface {
	StartMonitor(sandboxID, containerID string)
}

// Deps bundles everything a Runner needs to do its work.
type Deps struct {
	Runs      *store.Store[models.PipelineRun]
	Skills    *store.Store[models.Skill]
	Specs     *store.Store[models.SandboxSpec]
	Sandboxes *store.Store[models.Sandbox]
	Bus       *events.Bus
	Analyzer  SpecAnalyzer
	Docker    *docker.Driver
	Monitors  MonitorStarter
	Logger    *slog.Logger
}

// Runner is the actor for one PipelineRun. All state is touched only from
// the goroutine running loop(); everything else communicates via mailbox.
type Runner struct {
	id            string
	deps          Deps
	logger        *slog.Logger
	mailbox       chan message
	run           models.PipelineRun
	skill         models.Skill
	handle        uint64
	stepStartedAt time.Time
}

// NewRunner constructs a Runner for an already-persisted run and skill. Call
// Start to launch its goroutine.
func NewRunner(run models.PipelineRun, skill models.Skill, deps Deps) *Runner {
	return &Runner{
		id:      run.ID,
		deps:    deps,
		logger:  deps.Logger.With("component", domain, "run_id", run.ID),
		mailbox: make(chan message, 16),
		run:     run,
		skill:   skill,
	}
}

// Start launches the runner's goroutine. resume selects whether the runner
// re-enters pending (fresh start) or continues from whatever state run was
// persisted in.
func (r *Runner) Start(resume bool) {
	r.stepStartedAt = time.Now()
	go r.loop(resume)
}

// ApproveSpec is the external approve_spec event.
func (r *Runner) ApproveSpec() { r.mailbox <- approveSpecMsg{} }

// ReAnalyze is the external re_analyze event.
func (r *Runner) ReAnalyze() { r.mailbox <- reAnalyzeMsg{} }

// Retry is the external retry event.
func (r *Runner) Retry() { r.mailbox <- retryMsg{} }

// Stop terminates the runner's goroutine; in-flight background tasks finish
// and their results are silently dropped since the mailbox no longer drains.
func (r *Runner) Stop() { r.mailbox <- stopMsg{} }

// GetStatus is the synchronous snapshot read §4.7 names.
func (r *Runner) GetStatus() models.PipelineRun {
	reply := make(chan models.PipelineRun, 1)
	r.mailbox <- getStatusMsg{reply: reply}
	return <-reply
}

func (r *Runner) loop(resume bool) {
	if !resume {
		r.kickoff()
	} else {
		r.resumeFromCurrentState()
	}

	for msg := range r.mailbox {
		switch m := msg.(type) {
		case approveSpecMsg:
			r.handleApprove()
		case reAnalyzeMsg:
			r.handleReAnalyze()
		case retryMsg:
			r.handleRetry()
		case getStatusMsg:
			m.reply <- r.run
		case taskDoneMsg:
			r.handleTaskDone(m)
		case stopMsg:
			return
		}
	}
}

// kickoff drives a brand-new run from pending into parsing.
func (r *Runner) kickoff() {
	r.transition(models.RunParsing, "")
	r.runParseStep()
}

// resumeFromCurrentState implements §4.8's non-terminal recovery: restart
// work from whatever step the run was persisted in. The supervisor never
// resumes building/configuring (those are force-failed before a Runner is
// even constructed), so those branches here are defensive only.
func (r *Runner) resumeFromCurrentState() {
	switch r.run.Status {
	case models.RunPending:
		r.kickoff()
	case models.RunParsing:
		r.runParseStep()
	case models.RunAnalyzing:
		r.dispatchAnalyze()
	case models.RunReviewing:
		// idles until an external event arrives.
	case models.RunBuilding, models.RunConfiguring:
		r.logger.Warn("runner resumed in a non-resumable state", "status", r.run.Status)
	default:
		// ready, failed: terminal, nothing to do.
	}
}

// runParseStep is synchronous: the Parser is a pure, fast function, so it
// runs inline on the actor goroutine rather than as a background task.
func (r *Runner) runParseStep() {
	parsed, err := parser.Parse(r.skill.RawContent)
	if err != nil {
		r.transitionFailed(fmt.Sprintf("parse failed: %v", err))
		return
	}
	if isEmptyParsedData(r.skill.ParsedData) {
		r.skill.ParsedData = parsed
		r.skill.UpdatedAt = time.Now()
		if err := r.deps.Skills.Update(context.Background(), r.skill); err != nil {
			r.logger.Error("failed to persist parsed skill data", "error", err)
		}
	}
	r.transition(models.RunAnalyzing, "")
	r.dispatchAnalyze()
}

func isEmptyParsedData(p models.ParsedData) bool {
	return p.Name == "" && len(p.Sections) == 0 && len(p.MentionedTools) == 0 &&
		len(p.MentionedFrameworks) == 0 && len(p.MentionedDependencies) == 0
}

func (r *Runner) dispatchAnalyze() {
	r.handle++
	h := r.handle
	skill := r.skill
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTaskTimeout)
		defer cancel()
		spec, err := r.deps.Analyzer.Analyze(ctx, skill)
		r.mailbox <- taskDoneMsg{handle: h, forStep: models.RunAnalyzing, spec: spec, err: err}
	}()
}

func (r *Runner) dispatchBuild() {
	r.handle++
	h := r.handle
	specID := r.run.SandboxSpecID
	runID := r.run.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), buildTaskTimeout)
		defer cancel()
		sandbox, err := r.runBuildTask(ctx, specID, runID)
		r.mailbox <- taskDoneMsg{handle: h, forStep: models.RunBuilding, sandbox: sandbox, err: err}
	}()
}

func (r *Runner) dispatchVerify(containerID string) {
	r.handle++
	h := r.handle
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), verifyExecTimeout+5*time.Second)
		defer cancel()
		err := r.runVerifyTask(ctx, containerID)
		r.mailbox <- taskDoneMsg{handle: h, forStep: models.RunConfiguring, err: err}
	}()
}

// runBuildTask implements §4.7's build task. Each numbered step there maps
// to one stage below; any stage's failure aborts with a typed error naming
// the failing stage.
func (r *Runner) runBuildTask(ctx context.Context, specID, runID string) (models.Sandbox, error) {
	spec, err := r.deps.Specs.Get(ctx, specID)
	if err != nil {
		return models.Sandbox{}, errors.New(errors.CodeInternal, domain, "failed to load approved spec", err)
	}

	dir, dockerfileContent, err := buildctx.Assemble(spec)
	if err != nil {
		return models.Sandbox{}, err
	}
	defer buildctx.Cleanup(dir)

	spec.DockerfileContent = dockerfileContent
	spec.Status = models.SpecBuilding
	if _, err := r.deps.Specs.UpdateAtomic(ctx, specID, func(s models.SandboxSpec) (models.SandboxSpec, error) {
		s.DockerfileContent = dockerfileContent
		s.Status = models.SpecBuilding
		return s, nil
	}); err != nil {
		return models.Sandbox{}, errors.New(errors.CodeInternal, domain, "failed to record build-context Dockerfile", err)
	}

	tag := fmt.Sprintf("sandbox-%s-%s", runID, uuid.New().String()[:8])
	if err := r.deps.Docker.BuildImage(ctx, dir, tag); err != nil {
		r.markSpecFailed(specID)
		return models.Sandbox{}, err
	}

	containerName := fmt.Sprintf("sandbox-run-%s", runID)
	containerID, err := r.deps.Docker.RunContainer(ctx, tag, docker.RunOptions{Name: containerName})
	if err != nil {
		r.markSpecFailed(specID)
		return models.Sandbox{}, err
	}

	sandbox := models.Sandbox{
		ID:            uuid.New().String(),
		SandboxSpecID: specID,
		ContainerID:   containerID,
		ImageID:       tag,
		Status:        models.SandboxRunning,
	}
	if err := r.deps.Sandboxes.Create(ctx, sandbox); err != nil {
		r.markSpecFailed(specID)
		return models.Sandbox{}, errors.New(errors.CodeInternal, domain, "failed to persist sandbox record", err)
	}

	if _, err := r.deps.Specs.UpdateAtomic(ctx, specID, func(s models.SandboxSpec) (models.SandboxSpec, error) {
		s.Status = models.SpecBuilt
		return s, nil
	}); err != nil {
		r.logger.Error("failed to mark spec built", "error", err)
	}

	if r.deps.Monitors != nil {
		r.deps.Monitors.StartMonitor(sandbox.ID, sandbox.ContainerID)
	}

	return sandbox, nil
}

func (r *Runner) markSpecFailed(specID string) {
	if _, err := r.deps.Specs.UpdateAtomic(context.Background(), specID, func(s models.SandboxSpec) (models.SandboxSpec, error) {
		s.Status = models.SpecFailed
		return s, nil
	}); err != nil {
		r.logger.Error("failed to mark spec failed", "error", err)
	}
}

// runVerifyTask implements §4.7's verification task exactly: require a
// running container, then require the manifest-presence probe to print
// exactly "OK".
func (r *Runner) runVerifyTask(ctx context.Context, containerID string) error {
	status, err := r.deps.Docker.ContainerStatus(ctx, containerID)
	if err != nil {
		return err
	}
	if status != "running" {
		return errors.New(errors.CodeVerificationFailed, domain, fmt.Sprintf("container status is %q, want running", status), nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, verifyExecTimeout)
	defer cancel()
	out, err := r.deps.Docker.ExecInContainer(execCtx, containerID, "test -f /workspace/tool_manifest.json && echo OK", docker.ExecOptions{})
	if err != nil {
		return errors.New(errors.CodeVerificationFailed, domain, "manifest presence check failed", err)
	}
	if strings.TrimSpace(out) != "OK" {
		return errors.New(errors.CodeVerificationFailed, domain, fmt.Sprintf("unexpected verification output %q", strings.TrimSpace(out)), nil)
	}
	return nil
}

func (r *Runner) handleTaskDone(m taskDoneMsg) {
	if m.handle != r.handle {
		r.logger.Warn("dropping stale task result", "for_step", m.forStep, "handle", m.handle, "current_handle", r.handle)
		return
	}
	if m.forStep != r.run.Status {
		r.logger.Warn("dropping task result for unexpected state", "for_step", m.forStep, "actual_state", r.run.Status)
		return
	}

	switch m.forStep {
	case models.RunAnalyzing:
		if m.err != nil {
			r.transitionFailed(fmt.Sprintf("analyze failed: %v", m.err))
			return
		}
		spec := m.spec
		spec.ID = uuid.New().String()
		spec.SkillID = r.skill.ID
		spec.Status = models.SpecDraft
		if err := r.deps.Specs.Create(context.Background(), spec); err != nil {
			r.transitionFailed(fmt.Sprintf("failed to persist sandbox spec: %v", err))
			return
		}
		r.run.SandboxSpecID = spec.ID
		r.transition(models.RunReviewing, "")

	case models.RunBuilding:
		if m.err != nil {
			r.transitionFailed(fmt.Sprintf("build failed: %v", m.err))
			return
		}
		r.run.SandboxID = m.sandbox.ID
		r.transition(models.RunConfiguring, "")
		r.dispatchVerify(m.sandbox.ContainerID)

	case models.RunConfiguring:
		if m.err != nil {
			r.transitionFailed(fmt.Sprintf("verification failed: %v", m.err))
			return
		}
		r.transition(models.RunReady, "")
	}
}

func (r *Runner) handleApprove() {
	if r.run.Status != models.RunReviewing {
		r.logger.Warn("approve_spec ignored: run is not in reviewing", "status", r.run.Status)
		return
	}
	if _, err := r.deps.Specs.UpdateAtomic(context.Background(), r.run.SandboxSpecID, func(s models.SandboxSpec) (models.SandboxSpec, error) {
		s.Status = models.SpecApproved
		return s, nil
	}); err != nil {
		r.transitionFailed(fmt.Sprintf("failed to approve spec: %v", err))
		return
	}
	r.transition(models.RunBuilding, "")
	r.dispatchBuild()
}

func (r *Runner) handleReAnalyze() {
	if r.run.Status != models.RunReviewing {
		r.logger.Warn("re_analyze ignored: run is not in reviewing", "status", r.run.Status)
		return
	}
	r.transition(models.RunAnalyzing, "")
	r.dispatchAnalyze()
}

func (r *Runner) handleRetry() {
	if r.run.Status != models.RunFailed {
		r.logger.Warn("retry ignored: run is not failed", "status", r.run.Status)
		return
	}
	updated := r.run
	updated.Status = models.RunParsing
	updated.CurrentStep = models.RunParsing.StepIndex()
	updated.ErrorMessage = ""
	updated.StepTimings = map[string]int64{}
	updated.CompletedAt = nil

	ctx := context.Background()
	if err := r.deps.Runs.Update(ctx, updated); err != nil {
		r.logger.Error("failed to persist retry transition", "error", err)
		return
	}
	r.deps.Bus.PublishAsync(ctx, events.PipelineTopic(r.id), events.PipelineUpdate{
		RunID: r.id, Status: string(updated.Status), Step: updated.CurrentStep,
	})
	r.run = updated
	r.stepStartedAt = time.Now()
	r.runParseStep()
}

// transition persists new status/step/timings/error, publishes the update,
// and only then mutates in-memory state, per §4.7's (a)(b)(c) ordering.
func (r *Runner) transition(newStatus models.RunStatus, errMsg string) {
	prevStatus := r.run.Status
	elapsed := time.Since(r.stepStartedAt).Milliseconds()

	updated := r.run
	updated.StepTimings = cloneTimings(r.run.StepTimings)
	updated.StepTimings[string(prevStatus)] = elapsed
	updated.Status = newStatus
	updated.CurrentStep = newStatus.StepIndex()
	updated.ErrorMessage = errMsg
	if newStatus.IsTerminal() {
		now := time.Now()
		updated.CompletedAt = &now
	}

	ctx := context.Background()
	if err := r.deps.Runs.Update(ctx, updated); err != nil {
		r.logger.Error("failed to persist pipeline transition", "new_status", newStatus, "error", err)
	}
	r.deps.Bus.PublishAsync(ctx, events.PipelineTopic(r.id), events.PipelineUpdate{
		RunID: r.id, Status: string(newStatus), Step: updated.CurrentStep, Error: errMsg,
	})

	r.run = updated
	r.stepStartedAt = time.Now()
}

func (r *Runner) transitionFailed(msg string) {
	r.logger.Error("pipeline run failed", "reason", msg)
	r.transition(models.RunFailed, msg)
}

func cloneTimings(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
