package pipeline

import "skillforge/pkg/models"

// message is anything the runner's mailbox can carry. Implementations are
// unexported: only this package constructs runner messages.
type message interface{ message() }

type approveSpecMsg struct{}

func (approveSpecMsg) message() {}

type reAnalyzeMsg struct{}

func (reAnalyzeMsg) message() {}

type retryMsg struct{}

func (retryMsg) message() {}

type getStatusMsg struct {
	reply chan models.PipelineRun
}

func (getStatusMsg) message() {}

type stopMsg struct{}

func (stopMsg) message() {}

// taskDoneMsg carries a background task's outcome back to the runner,
// tagged with the correlation handle it was dispatched under. The runner
// drops any taskDoneMsg whose handle does not match its current outstanding
// handle (§4.7: "results from stale tasks are dropped").
type taskDoneMsg struct {
	handle  uint64
	forStep models.RunStatus
	spec    models.SandboxSpec
	sandbox models.Sandbox
	err     error
}

func (taskDoneMsg) message() {}
