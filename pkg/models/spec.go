package models

// SpecStatus is the monotonic lifecycle of a SandboxSpec: draft -> approved
// -> building -> built, with failed as a sink reachable from any state.
type SpecStatus string

const (
	SpecDraft    SpecStatus = "draft"
	SpecApproved SpecStatus = "approved"
	SpecBuilding SpecStatus = "building"
	SpecBuilt    SpecStatus = "built"
	SpecFailed   SpecStatus = "failed"
)

// RuntimeDeps names a package manager and the packages it should install.
type RuntimeDeps struct {
	Manager  string            `json:"manager"`
	Packages map[string]string `json:"packages"`
}

// SandboxSpec is the structured plan the Analyzer derives from a Skill.
type SandboxSpec struct {
	ID                string            `json:"id"`
	SkillID           string            `json:"skill_id"`
	BaseImage         string            `json:"base_image"`
	SystemPackages    []string          `json:"system_packages"`
	RuntimeDeps       RuntimeDeps       `json:"runtime_deps"`
	ToolConfigs       map[string]any    `json:"tool_configs"`
	EvalGoals         []string          `json:"eval_goals"`
	DockerfileContent string            `json:"dockerfile_content,omitempty"`
	Status            SpecStatus        `json:"status"`
}

// CLIToolConfig is the expected shape of tool_configs["cli"].
type CLIToolConfig struct {
	Shell         string   `json:"shell"`
	WorkingDir    string   `json:"working_dir"`
	TimeoutSecs   int      `json:"timeout_seconds"`
	PathAdditions []string `json:"path_additions,omitempty"`
}

// WebSearchToolConfig is the expected shape of tool_configs["web_search"].
type WebSearchToolConfig struct {
	Enabled bool `json:"enabled"`
}
