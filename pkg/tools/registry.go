// Package tools declares the closed, build-time set of container-callable
// tools and renders the in-container manifest, per §6 and §3 (Tool).
package tools

import (
	"skillforge/pkg/models"
)

// cliExecutionScript and webSearchScript are the shell entry points shipped
// at /tools/<name>.sh. Each proxies to the host for anything needing
// privileges the container itself doesn't have (e.g. the search API key).
const cliExecutionScript = `#!/bin/bash
set -euo pipefail
WORKDIR="${2:-/workspace}"
cd "$WORKDIR"
exec /bin/bash -c "$1"
`

const webSearchScript = `#!/bin/bash
set -euo pipefail
QUERY="$1"
MAX_RESULTS="${2:-5}"
curl -fsS -X POST "http://host.docker.internal:${SEARCH_PROXY_PORT:-8080}/api/tools/search" \
  -H "content-type: application/json" \
  -d "$(printf '{"query":%q,"max_results":%s}' "$QUERY" "$MAX_RESULTS")"
`

// Registry returns the closed set of standard tools, in stable order.
func Registry() []models.Tool {
	return []models.Tool{
		{
			Name:        "cli_execution",
			Description: "Runs a shell command inside the sandbox.",
			ParameterSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command":     map[string]any{"type": "string"},
					"working_dir": map[string]any{"type": "string", "default": "/workspace"},
				},
				"required": []string{"command"},
			},
			ContainerSetupScript: cliExecutionScript,
		},
		{
			Name:        "web_search",
			Description: "Searches the web via the host-side search proxy.",
			ParameterSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"max_results": map[string]any{"type": "integer", "default": 5},
				},
				"required": []string{"query"},
			},
			ContainerSetupScript: webSearchScript,
		},
	}
}

// Lookup finds a registered tool by name.
func Lookup(name string) (models.Tool, bool) {
	for _, t := range Registry() {
		if t.Name == name {
			return t, true
		}
	}
	return models.Tool{}, false
}
