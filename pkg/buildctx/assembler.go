// Package buildctx materialises a Docker build context directory: the
// Dockerfile, auxiliary files, per-tool shell scripts, and the tool
// manifest, per §4.5.
package buildctx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"skillforge/pkg/dockerfile"
	"skillforge/pkg/errors"
	"skillforge/pkg/models"
	"skillforge/pkg/tools"
)

const domain = "buildctx"

// Assemble creates a fresh temp directory holding everything `docker build`
// needs, and returns its path plus the rendered Dockerfile content (the
// caller persists the latter back onto the spec).
func Assemble(spec models.SandboxSpec) (dir string, dockerfileContent string, err error) {
	dir, err = os.MkdirTemp("", "sandbox-build-*")
	if err != nil {
		return "", "", errors.New(errors.CodeIoError, domain, "failed to create build context directory", err)
	}

	dockerfileContent = dockerfile.Build(spec)
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfileContent), 0o644); err != nil {
		Cleanup(dir)
		return "", "", errors.New(errors.CodeIoError, domain, "failed to write Dockerfile", err)
	}

	for _, f := range dockerfile.RequiredContextFiles(spec) {
		if err := os.WriteFile(filepath.Join(dir, f.RelativePath), f.Content, 0o644); err != nil {
			Cleanup(dir)
			return "", "", errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to write %s", f.RelativePath), err)
		}
	}

	toolsDir := filepath.Join(dir, "tools")
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		Cleanup(dir)
		return "", "", errors.New(errors.CodeIoError, domain, "failed to create tools directory", err)
	}
	for _, t := range tools.Registry() {
		scriptPath := filepath.Join(toolsDir, t.Name+".sh")
		if err := os.WriteFile(scriptPath, []byte(t.ContainerSetupScript), 0o755); err != nil {
			Cleanup(dir)
			return "", "", errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to write tool script %s", t.Name), err)
		}
	}

	manifest := tools.BuildManifest(time.Now())
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		Cleanup(dir)
		return "", "", errors.New(errors.CodeInternal, domain, "failed to encode tool manifest", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tool_manifest.json"), manifestJSON, 0o644); err != nil {
		Cleanup(dir)
		return "", "", errors.New(errors.CodeIoError, domain, "failed to write tool manifest", err)
	}

	return dir, dockerfileContent, nil
}

// Cleanup removes a build context directory. It is a no-op if dir is empty
// or already gone.
func Cleanup(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}
