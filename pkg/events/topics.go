package events

import "fmt"

// GlobalSandboxTopic is the single topic every sandbox status change is
// additionally broadcast to, per §4.9.2.
const GlobalSandboxTopic = "sandboxes:updates"

// PipelineTopic is the per-run topic pipeline state transitions publish to.
func PipelineTopic(runID string) string {
	return fmt.Sprintf("pipeline:%s", runID)
}

// SandboxTopic is the per-sandbox topic log lines and status changes publish to.
func SandboxTopic(sandboxID string) string {
	return fmt.Sprintf("sandbox:%s", sandboxID)
}

// PipelineUpdate is published on PipelineTopic(RunID) at every state
// transition, persist-then-publish (§9).
type PipelineUpdate struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Step    int    `json:"step"`
	Error   string `json:"error,omitempty"`
}

func (PipelineUpdate) EventType() string { return "pipeline_update" }

// SandboxLogLine is published on SandboxTopic(SandboxID) for every non-empty
// line read from the log stream.
type SandboxLogLine struct {
	SandboxID string `json:"sandbox_id"`
	Text      string `json:"text"`
}

func (SandboxLogLine) EventType() string { return "log_line" }

// SandboxStatusChange is published on SandboxTopic(SandboxID) whenever the
// monitor observes a new raw Docker status.
type SandboxStatusChange struct {
	SandboxID string `json:"sandbox_id"`
	RawStatus string `json:"raw_status"`
}

func (SandboxStatusChange) EventType() string { return "status_change" }

// GlobalSandboxUpdate mirrors SandboxStatusChange onto GlobalSandboxTopic.
type GlobalSandboxUpdate struct {
	SandboxID string `json:"sandbox_id"`
	RawStatus string `json:"raw_status"`
}

func (GlobalSandboxUpdate) EventType() string { return "sandbox_status_change" }
