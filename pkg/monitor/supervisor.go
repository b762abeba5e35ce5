package monitor

import (
	"context"

	"skillforge/pkg/errors"
	"skillforge/pkg/registry"
)

// Supervisor owns one Monitor per live sandbox, keyed by sandbox id. Its
// StartMonitor method satisfies pipeline.MonitorStarter, decoupling the
// pipeline package from this one.
type Supervisor struct {
	deps     Deps
	monitors *registry.Registry[*Monitor]
}

// NewSupervisor builds a Supervisor over the given dependencies.
func NewSupervisor(deps Deps) *Supervisor {
	return &Supervisor{deps: deps, monitors: registry.New[*Monitor]()}
}

// StartMonitor constructs and starts a Monitor for (sandboxID, containerID),
// replacing any previously registered monitor for that sandbox.
func (s *Supervisor) StartMonitor(sandboxID, containerID string) {
	m := New(sandboxID, containerID, s.deps)
	s.monitors.Register(sandboxID, m)
	m.Start()
}

// Alive reports whether a monitor is registered for sandboxID (the alive?
// client operation).
func (s *Supervisor) Alive(sandboxID string) bool {
	_, ok := s.monitors.Lookup(sandboxID)
	return ok
}

// Stop forwards to the stop_container client operation.
func (s *Supervisor) Stop(ctx context.Context, sandboxID string) error {
	m, ok := s.monitors.Lookup(sandboxID)
	if !ok {
		return errors.New(errors.CodeNotFound, domain, "no monitor registered for sandbox "+sandboxID, nil)
	}
	return m.StopContainer(ctx)
}

// Restart forwards to the restart_container client operation.
func (s *Supervisor) Restart(ctx context.Context, sandboxID string) error {
	m, ok := s.monitors.Lookup(sandboxID)
	if !ok {
		return errors.New(errors.CodeNotFound, domain, "no monitor registered for sandbox "+sandboxID, nil)
	}
	return m.RestartContainer(ctx)
}

// Destroy forwards to the destroy_container client operation and
// unregisters the monitor once it terminates.
func (s *Supervisor) Destroy(ctx context.Context, sandboxID string) error {
	m, ok := s.monitors.Lookup(sandboxID)
	if !ok {
		return errors.New(errors.CodeNotFound, domain, "no monitor registered for sandbox "+sandboxID, nil)
	}
	err := m.DestroyContainer(ctx)
	s.monitors.Unregister(sandboxID)
	return err
}

// GetLogs forwards to the get_logs client operation.
func (s *Supervisor) GetLogs(sandboxID string) ([]string, error) {
	m, ok := s.monitors.Lookup(sandboxID)
	if !ok {
		return nil, errors.New(errors.CodeNotFound, domain, "no monitor registered for sandbox "+sandboxID, nil)
	}
	return m.GetLogs(), nil
}

// GetStatus forwards to the get_status client operation.
func (s *Supervisor) GetStatus(sandboxID string) (string, error) {
	m, ok := s.monitors.Lookup(sandboxID)
	if !ok {
		return "", errors.New(errors.CodeNotFound, domain, "no monitor registered for sandbox "+sandboxID, nil)
	}
	return string(m.GetStatus()), nil
}
