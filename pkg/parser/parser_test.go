package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/pkg/errors"
)

func TestParse_EmptyContent(t *testing.T) {
	_, err := Parse("   \n\t  ")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeEmptyContent, code)
}

func TestParse_FrontmatterRoundTrip(t *testing.T) {
	doc := "---\nname: Research Assistant\ndescription: |\n  Does research.\n  Multi-line.\n---\n# Research Assistant\n\nUse React and Node.js; search the web for docs; run shell commands.\n"

	parsed, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "Research Assistant", parsed.Name)
	assert.Contains(t, parsed.Description, "Does research.")
	assert.Equal(t, "Research Assistant", parsed.Frontmatter["name"])
	assert.Contains(t, parsed.MentionedFrameworks, "React")
	assert.Contains(t, parsed.MentionedFrameworks, "Node.js")
	assert.Contains(t, parsed.MentionedTools, "web_search")
	assert.Contains(t, parsed.MentionedTools, "cli_execution")
}

func TestParse_InvalidFrontmatter(t *testing.T) {
	doc := "---\nname: [unterminated\n---\nbody\n"
	_, err := Parse(doc)
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidFrontmatter, code)
}

func TestParse_FrontmatterNonMappingListFallsBackToEmpty(t *testing.T) {
	doc := "---\n- a\n- b\n---\n# Heading\n\nbody text\n"
	parsed, err := Parse(doc)
	require.NoError(t, err)
	assert.Empty(t, parsed.Frontmatter)
	assert.Equal(t, "Heading", parsed.Name)
	assert.Contains(t, parsed.RawGuidelines, "---")
}

func TestParse_FrontmatterNonMappingScalarFallsBackToEmpty(t *testing.T) {
	doc := "---\nhello world\n---\n# Heading\n\nbody text\n"
	parsed, err := Parse(doc)
	require.NoError(t, err)
	assert.Empty(t, parsed.Frontmatter)
	assert.Equal(t, "Heading", parsed.Name)
}

func TestParse_HeadingsDeduplicated(t *testing.T) {
	doc := "## Setup\n\nSome text.\n\n## Setup\n\n### Details\n"
	parsed, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Setup", "Details"}, parsed.Sections)
}

func TestParse_S1Scenario(t *testing.T) {
	doc := "# Agent\n\nUse React and Node.js; search the web for docs; run shell commands."
	parsed, err := Parse(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"React", "Node.js"}, parsed.MentionedFrameworks)
	assert.Contains(t, parsed.MentionedTools, "web_search")
	assert.Contains(t, parsed.MentionedTools, "cli_execution")
}
