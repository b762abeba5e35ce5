package dockerfile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skillforge/pkg/models"
)

func s1Spec() models.SandboxSpec {
	return models.SandboxSpec{
		SkillID:        "skill-1",
		BaseImage:      "node:20-slim",
		SystemPackages: []string{"git", "curl"},
		RuntimeDeps: models.RuntimeDeps{
			Manager:  "npm",
			Packages: map[string]string{"react": "^18.0.0"},
		},
		ToolConfigs: map[string]any{
			"cli":        map[string]any{"shell": "/bin/bash", "working_dir": "/workspace", "timeout_seconds": 30},
			"web_search": map[string]any{"enabled": true},
		},
	}
}

func TestBuild_S1HappyPath(t *testing.T) {
	out := Build(s1Spec())

	assert.Contains(t, out, "FROM node:20-slim")
	assert.Contains(t, out, "apt-get install -y --no-install-recommends")
	assert.Contains(t, out, "COPY package.json /workspace/package.json")
	assert.Contains(t, out, "COPY tools/ /tools/")
	assert.Contains(t, out, `CMD ["tail","-f","/dev/null"]`)
}

func TestBuild_Deterministic(t *testing.T) {
	spec := s1Spec()
	assert.Equal(t, Build(spec), Build(spec))
}

func TestBuild_OmitsEmptySystemPackages(t *testing.T) {
	spec := s1Spec()
	spec.SystemPackages = nil
	out := Build(spec)
	assert.NotContains(t, out, "apt-get")
}

func TestBuild_UnsupportedManagerOmitsBlock(t *testing.T) {
	spec := s1Spec()
	spec.RuntimeDeps = models.RuntimeDeps{Manager: "conda", Packages: map[string]string{}}
	out := Build(spec)
	assert.NotContains(t, out, "COPY package.json")
	assert.NotContains(t, out, "COPY requirements.txt")
}

func TestRequiredContextFiles_S4PythonSpec(t *testing.T) {
	spec := models.SandboxSpec{
		RuntimeDeps: models.RuntimeDeps{
			Manager: "pip",
			Packages: map[string]string{
				"flask":    "3.0.0",
				"requests": "^2.31.0",
			},
		},
	}
	files := RequiredContextFiles(spec)
	if assert.Len(t, files, 1) {
		assert.Equal(t, "requirements.txt", files[0].RelativePath)
		assert.Equal(t, "flask==3.0.0\nrequests>=2.31.0\n", string(files[0].Content))
	}
}

func TestRequiredContextFiles_NpmPackageJSON(t *testing.T) {
	files := RequiredContextFiles(s1Spec())
	if assert.Len(t, files, 1) {
		assert.Equal(t, "package.json", files[0].RelativePath)
		assert.Contains(t, string(files[0].Content), `"name": "sandbox"`)
		assert.Contains(t, string(files[0].Content), `"react": "^18.0.0"`)
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, ">=2.31.0", normalizeVersion("^2.31.0"))
	assert.Equal(t, "~=1.2.3", normalizeVersion("~1.2.3"))
	assert.Equal(t, "==3.0.0", normalizeVersion("3.0.0"))
	assert.Equal(t, ">=1.0,<2.0", normalizeVersion(">=1.0,<2.0"))
}
