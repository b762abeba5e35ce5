// Package docker wraps the `docker` CLI with typed operations, each bounded
// by a context timeout that forcefully kills the child process on expiry,
// per §4.6. It shells out rather than linking the Docker SDK, since every
// call here maps onto a single CLI invocation.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"skillforge/pkg/errors"
)

const domain = "docker"

// Timeouts holds the default deadlines for each class of operation.
type Timeouts struct {
	Build   time.Duration
	Run     time.Duration
	Exec    time.Duration
	Stop    time.Duration
	Remove  time.Duration
	Restart time.Duration
}

// DefaultTimeouts matches the values named in §4.6.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Build:   300 * time.Second,
		Run:     60 * time.Second,
		Exec:    30 * time.Second,
		Stop:    30 * time.Second,
		Remove:  30 * time.Second,
		Restart: 30 * time.Second,
	}
}

// RunOptions configures `docker run`.
type RunOptions struct {
	Name         string
	MemoryLimit  string
	CPULimit     string
	PortMappings map[string]string // hostPort -> containerPort
}

// ExecOptions configures `docker exec`.
type ExecOptions struct {
	WorkingDir string
}

// Driver executes docker CLI commands with enforced timeouts.
type Driver struct {
	timeouts Timeouts
	bin      string // overridden in tests; always "docker" in production
}

// New builds a Driver with the given timeouts.
func New(timeouts Timeouts) *Driver {
	return &Driver{timeouts: timeouts, bin: "docker"}
}

// CheckInstalled verifies the docker binary is reachable on PATH.
func CheckInstalled() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return errors.New(errors.CodeDockerMissing, domain, "docker executable not found in PATH", err)
	}
	return nil
}

// BuildImage runs `docker build -t <tag> <contextDir>`.
func (d *Driver) BuildImage(ctx context.Context, contextDir, tag string) error {
	_, err := d.run(ctx, d.timeouts.Build, "build", "-t", tag, contextDir)
	return err
}

// RunContainer runs `docker run -d --name <name> ... <imageTag>` and returns
// the new container id.
func (d *Driver) RunContainer(ctx context.Context, imageTag string, opts RunOptions) (string, error) {
	args := []string{"run", "-d"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if runtime.GOOS == "linux" {
		args = append(args, "--add-host=host.docker.internal:host-gateway")
	}
	if opts.MemoryLimit != "" {
		args = append(args, "--memory="+opts.MemoryLimit)
	}
	if opts.CPULimit != "" {
		args = append(args, "--cpus="+opts.CPULimit)
	}
	for host, container := range opts.PortMappings {
		args = append(args, "-p", fmt.Sprintf("%s:%s", host, container))
	}
	args = append(args, imageTag)

	out, err := d.run(ctx, d.timeouts.Run, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ExecInContainer runs `docker exec [-w <dir>] <id> /bin/bash -c <cmd>`.
func (d *Driver) ExecInContainer(ctx context.Context, containerID, cmd string, opts ExecOptions) (string, error) {
	args := []string{"exec"}
	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	args = append(args, containerID, "/bin/bash", "-c", cmd)
	return d.run(ctx, d.timeouts.Exec, args...)
}

// StopContainer runs `docker stop <id>`.
func (d *Driver) StopContainer(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, d.timeouts.Stop, "stop", containerID)
	return err
}

// RemoveContainer runs `docker rm -f <id>`.
func (d *Driver) RemoveContainer(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, d.timeouts.Remove, "rm", "-f", containerID)
	return err
}

// RestartContainer runs `docker restart <id>`.
func (d *Driver) RestartContainer(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, d.timeouts.Restart, "restart", containerID)
	return err
}

// RemoveImage runs `docker rmi <tag>`.
func (d *Driver) RemoveImage(ctx context.Context, tag string) error {
	_, err := d.run(ctx, d.timeouts.Remove, "rmi", tag)
	return err
}

// ContainerStatus runs `docker inspect <id> --format '{{.State.Status}}'`.
func (d *Driver) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	out, err := d.run(ctx, d.timeouts.Exec, "inspect", containerID, "--format", "{{.State.Status}}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// run executes one docker CLI invocation with a hard timeout. On timeout the
// child is killed and a typed timeout error is returned; on a non-zero exit
// the combined output is wrapped into a typed error.
func (d *Driver) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return out.String(), errors.New(errors.CodeDockerTimeout, domain,
			fmt.Sprintf("docker %s timed out after %s", args[0], timeout), runCtx.Err())
	}
	if err != nil {
		code := exitCode(err)
		return out.String(), errors.New(errors.CodeDockerNonZeroExit, domain,
			fmt.Sprintf("docker %s exited %d: %s", args[0], code, strings.TrimSpace(out.String())), err)
	}
	return out.String(), nil
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
