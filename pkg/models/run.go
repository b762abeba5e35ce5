package models

import "time"

// RunStatus is the state-machine status of one PipelineRun, per §4.7.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunParsing     RunStatus = "parsing"
	RunAnalyzing   RunStatus = "analyzing"
	RunReviewing   RunStatus = "reviewing"
	RunBuilding    RunStatus = "building"
	RunConfiguring RunStatus = "configuring"
	RunReady       RunStatus = "ready"
	RunFailed      RunStatus = "failed"
)

// StepIndex returns the step index used for UI/persistence, per §4.7:
// pending=0 .. ready=6, failed=-1.
func (s RunStatus) StepIndex() int {
	switch s {
	case RunPending:
		return 0
	case RunParsing:
		return 1
	case RunAnalyzing:
		return 2
	case RunReviewing:
		return 3
	case RunBuilding:
		return 4
	case RunConfiguring:
		return 5
	case RunReady:
		return 6
	default:
		return -1
	}
}

// IsTerminal reports whether s accepts no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunReady || s == RunFailed
}

// PipelineRun is one invocation of the analyze-and-build state machine.
type PipelineRun struct {
	ID            string             `json:"id"`
	SkillID       string             `json:"skill_id"`
	SandboxSpecID string             `json:"sandbox_spec_id,omitempty"`
	SandboxID     string             `json:"sandbox_id,omitempty"`
	Status        RunStatus          `json:"status"`
	CurrentStep   int                `json:"current_step"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	StepTimings   map[string]int64   `json:"step_timings"`
}

// NewPipelineRun creates a run in its initial pending state.
func NewPipelineRun(id, skillID string) *PipelineRun {
	return &PipelineRun{
		ID:          id,
		SkillID:     skillID,
		Status:      RunPending,
		CurrentStep: RunPending.StepIndex(),
		StartedAt:   time.Now(),
		StepTimings: map[string]int64{},
	}
}
