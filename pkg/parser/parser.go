// Package parser turns a raw skill Markdown document into a models.ParsedData
// record: front-matter, section headings, and keyword-scanned mentions of
// tools, frameworks, and dependencies.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"skillforge/pkg/errors"
	"skillforge/pkg/models"
)

var delimiter = regexp.MustCompile(`(?m)^---[ \t]*$`)

var headingRe = regexp.MustCompile(`(?m)^(#{2,3})\s+(.+?)\s*$`)

var properNounDependency = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_.+-]*(?:\s[A-Z][A-Za-z0-9_.+-]*)*)\s+(?:library|package|framework)\b`)

// toolKeywords and frameworkKeywords map a detection regex to the canonical
// name recorded in ParsedData. Order defines output order; duplicates are
// removed on first match.
var toolKeywords = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)\bweb[\s_-]?search\b|\bsearch the web\b`), "web_search"},
	{regexp.MustCompile(`(?i)\brun shell commands\b|\bshell command(s)?\b|\bcli\b|\bcommand[\s_-]?line\b`), "cli_execution"},
	{regexp.MustCompile(`(?i)\bfile (read|write|system)\b`), "filesystem"},
}

var frameworkKeywords = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)\breact\b`), "React"},
	{regexp.MustCompile(`(?i)\bnode\.js\b|\bnodejs\b`), "Node.js"},
	{regexp.MustCompile(`(?i)\bdjango\b`), "Django"},
	{regexp.MustCompile(`(?i)\bflask\b`), "Flask"},
	{regexp.MustCompile(`(?i)\bfastapi\b`), "FastAPI"},
	{regexp.MustCompile(`(?i)\bexpress\b`), "Express"},
	{regexp.MustCompile(`(?i)\bnext\.js\b|\bnextjs\b`), "Next.js"},
	{regexp.MustCompile(`(?i)\bvue\b`), "Vue"},
}

var dependencyKeywords = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)\bpandas\b`), "pandas"},
	{regexp.MustCompile(`(?i)\bnumpy\b`), "numpy"},
	{regexp.MustCompile(`(?i)\brequests\b`), "requests"},
	{regexp.MustCompile(`(?i)\baxios\b`), "axios"},
}

const domain = "parser"

// Parse implements the algorithm in §4.1: split front-matter, enumerate
// headings, scan for keyword mentions, and resolve name/description.
func Parse(raw string) (models.ParsedData, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.ParsedData{}, errors.New(errors.CodeEmptyContent, domain, "skill content is empty", nil)
	}

	frontmatter := map[string]any{}
	body := raw

	if locs := delimiter.FindAllStringIndex(raw, -1); len(locs) == 2 && strings.TrimSpace(raw[:locs[0][0]]) == "" {
		fmText := raw[locs[0][1]:locs[1][0]]
		rest := raw[locs[1][1]:]

		var decoded any
		if err := yaml.Unmarshal([]byte(fmText), &decoded); err != nil {
			return models.ParsedData{}, errors.New(errors.CodeInvalidFrontmatter, domain,
				fmt.Sprintf("front-matter YAML failed to decode: %v", err), err)
		}
		// A syntactically valid YAML document that isn't a mapping (a list,
		// a bare scalar, or nothing at all) is not a decode failure — fall
		// back to empty frontmatter and the original content as body.
		if m, ok := decoded.(map[string]any); ok {
			frontmatter = m
			body = rest
		}
	}

	sections := enumerateHeadings(body)
	tools := scanKeywords(body, toolKeywords)
	frameworks := scanKeywords(body, frameworkKeywords)
	dependencies := scanKeywords(body, dependencyKeywords)
	dependencies = append(dependencies, scanProperNounDependencies(body, dependencies)...)

	name := stringField(frontmatter, "name")
	if name == "" {
		name = firstH1(body)
	}
	description := stringField(frontmatter, "description")

	return models.ParsedData{
		Name:                  name,
		Description:           description,
		Frontmatter:           frontmatter,
		Sections:              sections,
		MentionedTools:        tools,
		MentionedFrameworks:   frameworks,
		MentionedDependencies: dependencies,
		RawGuidelines:         strings.TrimSpace(body),
	}, nil
}

func enumerateHeadings(body string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range headingRe.FindAllStringSubmatch(body, -1) {
		heading := strings.TrimSpace(m[2])
		if heading == "" || seen[heading] {
			continue
		}
		seen[heading] = true
		out = append(out, heading)
	}
	return out
}

func scanKeywords(body string, table []struct {
	pattern *regexp.Regexp
	name    string
}) []string {
	seen := map[string]bool{}
	var out []string
	for _, entry := range table {
		if entry.pattern.MatchString(body) && !seen[entry.name] {
			seen[entry.name] = true
			out = append(out, entry.name)
		}
	}
	return out
}

func scanProperNounDependencies(body string, already []string) []string {
	seen := map[string]bool{}
	for _, d := range already {
		seen[d] = true
	}
	var out []string
	for _, m := range properNounDependency.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)

func firstH1(body string) string {
	m := h1Re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
