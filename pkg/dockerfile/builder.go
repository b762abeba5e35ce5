// Package dockerfile is a pure function from a models.SandboxSpec to
// Dockerfile text and the auxiliary context files it requires, per §4.4.
package dockerfile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"skillforge/pkg/models"
)

// ContextFile is one auxiliary file the build context assembler must write
// alongside the Dockerfile.
type ContextFile struct {
	RelativePath string
	Content      []byte
}

// Build renders the Dockerfile text for spec. It is a pure function: calling
// it twice on an equal spec yields byte-identical output.
func Build(spec models.SandboxSpec) string {
	var sections []string

	sections = append(sections, fmt.Sprintf("FROM %s", spec.BaseImage))
	sections = append(sections, fmt.Sprintf(`LABEL maintainer="skill-to-sandbox" skill_id="%s"`, spec.SkillID))

	if len(spec.SystemPackages) > 0 {
		sections = append(sections, fmt.Sprintf(
			"RUN apt-get update && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*",
			strings.Join(spec.SystemPackages, " ")))
	}

	sections = append(sections, "WORKDIR /workspace")

	if rt := runtimeDepsBlock(spec.RuntimeDeps); rt != "" {
		sections = append(sections, rt)
	}

	sections = append(sections, strings.Join([]string{
		"COPY tools/ /tools/",
		"RUN chmod +x /tools/*.sh",
		"COPY tool_manifest.json /workspace/tool_manifest.json",
		`ENV PATH="/tools:$PATH"`,
	}, "\n"))

	if env := cliEnvBlock(spec.ToolConfigs); env != "" {
		sections = append(sections, env)
	}

	sections = append(sections, `CMD ["tail","-f","/dev/null"]`)

	return strings.Join(sections, "\n\n") + "\n"
}

func runtimeDepsBlock(deps models.RuntimeDeps) string {
	switch deps.Manager {
	case "npm":
		return "COPY package.json /workspace/package.json\nRUN npm install --omit=dev"
	case "yarn":
		return "COPY package.json /workspace/package.json\nRUN yarn install --production=true"
	case "pnpm":
		return "RUN npm install -g pnpm\nCOPY package.json /workspace/package.json\nRUN pnpm install --prod"
	case "pip":
		return "COPY requirements.txt /workspace/requirements.txt\nRUN pip install --no-cache-dir -r requirements.txt"
	case "pip3":
		return "COPY requirements.txt /workspace/requirements.txt\nRUN pip3 install --no-cache-dir -r requirements.txt"
	default:
		return ""
	}
}

func cliEnvBlock(toolConfigs map[string]any) string {
	cli, ok := toolConfigs["cli"].(map[string]any)
	if !ok {
		return ""
	}
	var lines []string
	if wd, ok := cli["working_dir"].(string); ok && wd != "" {
		lines = append(lines, fmt.Sprintf("ENV WORKSPACE_DIR=%s", wd))
	}
	switch v := cli["timeout_seconds"].(type) {
	case float64:
		lines = append(lines, fmt.Sprintf("ENV CLI_TIMEOUT=%s", strconv.Itoa(int(v))))
	case int:
		lines = append(lines, fmt.Sprintf("ENV CLI_TIMEOUT=%s", strconv.Itoa(v)))
	}
	if additions, ok := cli["path_additions"].([]any); ok && len(additions) > 0 {
		var paths []string
		for _, a := range additions {
			if s, ok := a.(string); ok {
				paths = append(paths, s)
			}
		}
		if len(paths) > 0 {
			lines = append(lines, fmt.Sprintf("ENV EXTRA_PATH=%s", strings.Join(paths, ":")))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// RequiredContextFiles emits the auxiliary files a given spec's runtime_deps
// block needs: package.json for npm/yarn/pnpm, requirements.txt for pip/pip3.
func RequiredContextFiles(spec models.SandboxSpec) []ContextFile {
	switch spec.RuntimeDeps.Manager {
	case "npm", "yarn", "pnpm":
		return []ContextFile{packageJSON(spec.RuntimeDeps.Packages)}
	case "pip", "pip3":
		return []ContextFile{requirementsTxt(spec.RuntimeDeps.Packages)}
	default:
		return nil
	}
}

func packageJSON(packages map[string]string) ContextFile {
	doc := map[string]any{
		"name":         "sandbox",
		"version":      "1.0.0",
		"private":      true,
		"dependencies": packages,
	}
	// Marshal with sorted keys for determinism; json.Marshal already sorts
	// map keys, so this is just documenting the guarantee RequiredContextFiles
	// relies on.
	raw, _ := json.MarshalIndent(doc, "", "  ")
	return ContextFile{RelativePath: "package.json", Content: append(raw, '\n')}
}

func requirementsTxt(packages map[string]string) ContextFile {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(normalizeVersion(packages[name]))
		b.WriteString("\n")
	}
	return ContextFile{RelativePath: "requirements.txt", Content: []byte(b.String())}
}

// normalizeVersion converts a package.json-style version constraint into a
// pip requirement specifier: ^X -> >=X, ~X -> ~=X, bare X -> ==X, and any
// other operator is preserved verbatim.
func normalizeVersion(v string) string {
	switch {
	case strings.HasPrefix(v, "^"):
		return ">=" + v[1:]
	case strings.HasPrefix(v, "~"):
		return "~=" + v[1:]
	case strings.ContainsAny(v, "<>=!"):
		return v
	default:
		return "==" + v
	}
}
