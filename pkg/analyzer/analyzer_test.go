package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/pkg/errors"
	"skillforge/pkg/models"
)

type stubChatter struct {
	reply string
	err   error
}

func (s stubChatter) Chat(ctx context.Context, system, user string) (string, error) {
	return s.reply, s.err
}

const validSpecJSON = `{"base_image":"node:20-slim","system_packages":["git","curl"],"runtime_deps":{"manager":"npm","packages":{"react":"^18.0.0"}},"tool_configs":{"cli":{"shell":"/bin/bash","working_dir":"/workspace","timeout_seconds":30},"web_search":{"enabled":true}},"eval_goals":["Easy: one","Easy: two","Medium: three","Medium: four","Hard: five"]}`

func TestAnalyze_HappyPath(t *testing.T) {
	a := New(stubChatter{reply: validSpecJSON})
	spec, err := a.Analyze(context.Background(), models.Skill{ID: "skill-1"})
	require.NoError(t, err)
	assert.Equal(t, "node:20-slim", spec.BaseImage)
	assert.Equal(t, "skill-1", spec.SkillID)
	assert.Equal(t, models.SpecDraft, spec.Status)
	assert.Equal(t, "npm", spec.RuntimeDeps.Manager)
}

func TestAnalyze_FenceStripping(t *testing.T) {
	a := New(stubChatter{reply: "```json\n" + validSpecJSON + "\n```"})
	spec, err := a.Analyze(context.Background(), models.Skill{ID: "skill-1"})
	require.NoError(t, err)
	assert.Equal(t, "node:20-slim", spec.BaseImage)
}

func TestStripFences_Idempotent(t *testing.T) {
	json := `{"a":1}`
	wraps := []string{json, "```json\n" + json + "\n```", "```\n" + json + "\n```", "```JSON\n" + json + "\n```"}
	for _, w := range wraps {
		assert.Equal(t, StripFences(json), StripFences(w))
	}
}

func TestAnalyze_ValidationFailure(t *testing.T) {
	invalid := `{"base_image":"","system_packages":["git"],"runtime_deps":{"manager":"pip","packages":{}},"tool_configs":{"cli":{},"web_search":{}},"eval_goals":["a","b","c"]}`
	a := New(stubChatter{reply: invalid})
	_, err := a.Analyze(context.Background(), models.Skill{ID: "skill-1"})
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSchemaInvalid, code)
}

func TestAnalyze_LLMError(t *testing.T) {
	a := New(stubChatter{err: errors.New(errors.CodeLLMTimeout, "llm", "boom", nil)})
	_, err := a.Analyze(context.Background(), models.Skill{ID: "skill-1"})
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeLLMTimeout, code)
}
