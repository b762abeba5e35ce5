package monitor

import "skillforge/pkg/models"

type message interface{ message() }

type logLineMsg struct{ text string }

func (logLineMsg) message() {}

type streamEndedMsg struct{ err error }

func (streamEndedMsg) message() {}

type healthTickMsg struct{}

func (healthTickMsg) message() {}

type stopMsg struct{ reply chan error }

func (stopMsg) message() {}

type restartMsg struct{ reply chan error }

func (restartMsg) message() {}

type destroyMsg struct{ reply chan error }

func (destroyMsg) message() {}

type getLogsMsg struct{ reply chan []string }

func (getLogsMsg) message() {}

type getStatusMsg struct{ reply chan models.SandboxStatus }

func (getStatusMsg) message() {}
