// Package monitor is the per-sandbox supervised process: it streams
// container logs into a capped ring buffer, polls health every 5s, persists
// and broadcasts status changes, and exposes stop/restart/destroy/get_logs/
// get_status lifecycle operations, per §4.9.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"skillforge/pkg/docker"
	"skillforge/pkg/events"
	"skillforge/pkg/models"
	"skillforge/pkg/store"
)

const domain = "monitor"

// healthPollInterval is the fixed 5s polling cadence §4.9.2 names.
const healthPollInterval = 5 * time.Second

const logBufferCapacity = 500

// Deps bundles what a Monitor needs to do its work.
type Deps struct {
	Sandboxes *store.Store[models.Sandbox]
	Bus       *events.Bus
	Docker    *docker.Driver
	Logger    *slog.Logger
}

// Monitor is the actor for one Sandbox, keyed by sandbox id.
type Monitor struct {
	sandboxID   string
	containerID string
	deps        Deps
	logger      *slog.Logger
	mailbox     chan message

	ring          *ringBuffer
	lastRawStatus string
	lastStatus    models.SandboxStatus

	streamCancel context.CancelFunc
}

// New constructs a Monitor for (sandboxID, containerID). Call Start to
// launch its goroutine.
func New(sandboxID, containerID string, deps Deps) *Monitor {
	return &Monitor{
		sandboxID:   sandboxID,
		containerID: containerID,
		deps:        deps,
		logger:      deps.Logger.With("component", domain, "sandbox_id", sandboxID),
		mailbox:     make(chan message, 64),
		ring:        newRingBuffer(logBufferCapacity),
		lastStatus:  models.SandboxRunning,
	}
}

// Start launches the monitor's goroutine: log streaming plus the health
// polling loop.
func (m *Monitor) Start() {
	go m.loop()
}

// StopContainer is the stop_container client operation.
func (m *Monitor) StopContainer(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case m.mailbox <- stopMsg{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RestartContainer is the restart_container client operation.
func (m *Monitor) RestartContainer(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case m.mailbox <- restartMsg{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DestroyContainer is the destroy_container client operation. It terminates
// the monitor once the container is removed.
func (m *Monitor) DestroyContainer(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case m.mailbox <- destroyMsg{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetLogs is the get_logs client operation: a snapshot of the ring buffer.
func (m *Monitor) GetLogs() []string {
	reply := make(chan []string, 1)
	m.mailbox <- getLogsMsg{reply: reply}
	return <-reply
}

// GetStatus is the get_status client operation: the last observed status.
func (m *Monitor) GetStatus() models.SandboxStatus {
	reply := make(chan models.SandboxStatus, 1)
	m.mailbox <- getStatusMsg{reply: reply}
	return <-reply
}

func (m *Monitor) loop() {
	m.startLogStream()
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	defer m.closeLogStream()

	for {
		select {
		case msg, ok := <-m.mailbox:
			if !ok {
				return
			}
			if terminate := m.handle(msg); terminate {
				return
			}
		case <-ticker.C:
			m.pollHealth()
		}
	}
}

// handle processes one message, returning true if the monitor should
// terminate afterward.
func (m *Monitor) handle(msg message) bool {
	switch mm := msg.(type) {
	case logLineMsg:
		m.ring.add(mm.text)
		m.deps.Bus.PublishAsync(context.Background(), events.SandboxTopic(m.sandboxID), events.SandboxLogLine{
			SandboxID: m.sandboxID, Text: mm.text,
		})
	case streamEndedMsg:
		if mm.err != nil {
			m.logger.Warn("log stream ended", "error", mm.err)
		}
		m.streamCancel = nil
	case healthTickMsg:
		m.pollHealth()
	case stopMsg:
		mm.reply <- m.handleStop()
	case restartMsg:
		mm.reply <- m.handleRestart()
	case destroyMsg:
		mm.reply <- m.handleDestroy()
		return true
	case getLogsMsg:
		mm.reply <- m.ring.snapshot()
	case getStatusMsg:
		mm.reply <- m.lastStatus
	}
	return false
}

func (m *Monitor) startLogStream() {
	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel

	ch, err := m.deps.Docker.StreamLogs(ctx, m.containerID)
	if err != nil {
		m.logger.Error("failed to open log stream", "error", err)
		cancel()
		m.streamCancel = nil
		return
	}

	go func() {
		for chunk := range ch {
			if chunk.Err != nil {
				m.mailbox <- streamEndedMsg{err: chunk.Err}
				return
			}
			m.mailbox <- logLineMsg{text: chunk.Text}
		}
		m.mailbox <- streamEndedMsg{}
	}()
}

func (m *Monitor) closeLogStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

func (m *Monitor) pollHealth() {
	raw, err := m.deps.Docker.ContainerStatus(context.Background(), m.containerID)
	if err != nil {
		raw = "error"
	}
	if raw == m.lastRawStatus {
		return
	}
	m.lastRawStatus = raw
	m.applyStatus(models.RawDockerStatusToSandboxStatus(raw), raw)
}

func (m *Monitor) applyStatus(status models.SandboxStatus, raw string) {
	m.lastStatus = status
	ctx := context.Background()
	if _, err := m.deps.Sandboxes.UpdateAtomic(ctx, m.sandboxID, func(s models.Sandbox) (models.Sandbox, error) {
		s.Status = status
		return s, nil
	}); err != nil {
		m.logger.Error("failed to persist sandbox status", "error", err)
	}

	m.deps.Bus.PublishAsync(ctx, events.SandboxTopic(m.sandboxID), events.SandboxStatusChange{
		SandboxID: m.sandboxID, RawStatus: raw,
	})
	m.deps.Bus.PublishAsync(ctx, events.GlobalSandboxTopic, events.GlobalSandboxUpdate{
		SandboxID: m.sandboxID, RawStatus: raw,
	})
}

func (m *Monitor) handleStop() error {
	m.closeLogStream()
	ctx := context.Background()
	err := m.deps.Docker.StopContainer(ctx, m.containerID)
	status := models.SandboxStopped
	raw := "exited"
	if err != nil {
		status = models.SandboxError
		raw = "error"
	}
	m.applyStatus(status, raw)
	return err
}

func (m *Monitor) handleRestart() error {
	m.closeLogStream()
	ctx := context.Background()
	err := m.deps.Docker.RestartContainer(ctx, m.containerID)
	if err != nil {
		m.applyStatus(models.SandboxError, "error")
		return err
	}
	m.ring.reset()
	m.startLogStream()
	m.applyStatus(models.SandboxRunning, "running")
	return nil
}

func (m *Monitor) handleDestroy() error {
	m.closeLogStream()
	ctx := context.Background()
	err := m.deps.Docker.RemoveContainer(ctx, m.containerID)
	status := models.SandboxStopped
	raw := "exited"
	if err != nil {
		status = models.SandboxError
		raw = "error"
	}
	m.applyStatus(status, raw)
	return err
}
