// Package models defines the five core entities shared by every component:
// Skill, SandboxSpec, PipelineRun, Sandbox, and the static Tool registry.
package models

import "time"

// Skill is the stable, user-visible unit of input: a Markdown document plus
// whatever the Parser could extract from it.
type Skill struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SourceURL   string     `json:"source_url,omitempty"`
	RawContent  string     `json:"raw_content"`
	ParsedData  ParsedData `json:"parsed_data"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ParsedData is everything the Parser extracts from a Skill's raw content.
type ParsedData struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	Frontmatter           map[string]any    `json:"frontmatter"`
	Sections              []string          `json:"sections"`
	MentionedTools        []string          `json:"mentioned_tools"`
	MentionedFrameworks   []string          `json:"mentioned_frameworks"`
	MentionedDependencies []string          `json:"mentioned_dependencies"`
	RawGuidelines         string            `json:"raw_guidelines"`
}

// Validate enforces the Skill invariant from the data model: name and
// raw_content are non-empty.
func (s Skill) Validate() error {
	if s.Name == "" {
		return errEmptyField("name")
	}
	if s.RawContent == "" {
		return errEmptyField("raw_content")
	}
	return nil
}

func errEmptyField(field string) error {
	return &fieldError{field: field}
}

type fieldError struct{ field string }

func (e *fieldError) Error() string { return "models: " + e.field + " must not be empty" }
