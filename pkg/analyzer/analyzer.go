// Package analyzer builds the prompt sent to the LLM client, extracts and
// validates its JSON reply into a models.SandboxSpec, per §4.3.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"skillforge/pkg/errors"
	"skillforge/pkg/models"
)

const domain = "analyzer"

// Chatter is the subset of llm.Client the analyzer depends on, so tests can
// stub it without a network round trip.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Analyzer turns a Skill into a validated SandboxSpec via an LLM call.
type Analyzer struct {
	llm    Chatter
	schema *jsonschema.Schema
}

// New builds an Analyzer. Panics only if the embedded schema fails to
// compile, which would be a programming error, not a runtime condition.
func New(llm Chatter) *Analyzer {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sandbox-spec.json", strings.NewReader(specSchema)); err != nil {
		panic(fmt.Sprintf("analyzer: invalid embedded schema: %v", err))
	}
	schema, err := compiler.Compile("sandbox-spec.json")
	if err != nil {
		panic(fmt.Sprintf("analyzer: schema did not compile: %v", err))
	}
	return &Analyzer{llm: llm, schema: schema}
}

const systemPrompt = `You generate a strict JSON sandbox specification for a coding agent's runtime environment.
Respond with ONLY a single JSON object, no markdown code fences, no commentary.
The object MUST contain these exact top-level keys:
  base_image (string), system_packages (array of strings),
  runtime_deps (object: {manager: string, packages: object mapping name to version}),
  tool_configs (object containing at least "cli" and "web_search" sub-objects),
  eval_goals (array of 8 to 12 strings, each labelled Easy/Medium/Hard and covering
  diverse capabilities of the resulting sandbox).
Do not omit any key. Do not wrap the object in a list.`

func buildUserPrompt(skill models.Skill) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skill name: %s\n", skill.ParsedData.Name)
	fmt.Fprintf(&b, "Description: %s\n", skill.ParsedData.Description)
	fmt.Fprintf(&b, "Mentioned tools: %s\n", strings.Join(skill.ParsedData.MentionedTools, ", "))
	fmt.Fprintf(&b, "Mentioned frameworks: %s\n", strings.Join(skill.ParsedData.MentionedFrameworks, ", "))
	fmt.Fprintf(&b, "Mentioned dependencies: %s\n", strings.Join(skill.ParsedData.MentionedDependencies, ", "))
	b.WriteString("\nFull skill document:\n")
	b.WriteString(skill.RawContent)
	return b.String()
}

// Analyze calls the LLM client, extracts the fenced JSON, and validates it.
// It never persists a partial spec: callers decide whether to store the
// returned spec.
func (a *Analyzer) Analyze(ctx context.Context, skill models.Skill) (models.SandboxSpec, error) {
	text, err := a.llm.Chat(ctx, systemPrompt, buildUserPrompt(skill))
	if err != nil {
		return models.SandboxSpec{}, err
	}

	stripped := StripFences(text)

	var decoded map[string]any
	if err := json.Unmarshal([]byte(stripped), &decoded); err != nil {
		return models.SandboxSpec{}, errors.New(errors.CodeSchemaInvalid, domain,
			fmt.Sprintf("response is not a JSON object: %v", err), err)
	}

	if err := a.schema.Validate(decoded); err != nil {
		return models.SandboxSpec{}, errors.New(errors.CodeSchemaInvalid, domain,
			fmt.Sprintf("spec failed validation: %v", err), err)
	}

	spec, err := toSandboxSpec(decoded)
	if err != nil {
		return models.SandboxSpec{}, errors.New(errors.CodeSchemaInvalid, domain, err.Error(), err)
	}
	spec.SkillID = skill.ID
	spec.Status = models.SpecDraft
	return spec, nil
}

// StripFences implements the fence-stripping step from §4.3.1: trim, then
// remove a leading ```json / ``` opener (case-insensitive language tag) and a
// trailing ``` closer, if present. Idempotent over identity/```/```json/```JSON.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

func toSandboxSpec(m map[string]any) (models.SandboxSpec, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return models.SandboxSpec{}, fmt.Errorf("re-encoding decoded spec: %w", err)
	}
	var spec models.SandboxSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return models.SandboxSpec{}, fmt.Errorf("decoding spec into model: %w", err)
	}
	return spec, nil
}
