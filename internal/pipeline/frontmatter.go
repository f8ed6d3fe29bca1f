package pipeline

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter splits a "---\nYAML\n---\nbody" document into its
// metadata block and markdown body. Pages written by the agent are
// expected to carry this shape; a document without a leading "---"
// line has no frontmatter and its entire content is the body.
func splitFrontmatter(doc string) (yamlBlock, body string) {
	const delim = "---"
	lines := strings.Split(doc, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", doc
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			yamlBlock = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return yamlBlock, strings.TrimPrefix(body, "\n")
		}
	}
	return "", doc
}

// parseFrontmatterFields extracts the title/section/summary fields a
// written wiki page's frontmatter is expected to carry (spec §4.9
// Phase 5 / the AGENTS.md writing directive).
func parseFrontmatterFields(yamlBlock string) (title, section, summary string) {
	if yamlBlock == "" {
		return "", "", ""
	}
	var meta struct {
		Title   string `yaml:"title"`
		Section string `yaml:"section"`
		Summary string `yaml:"summary"`
	}
	if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
		return "", "", ""
	}
	return meta.Title, meta.Section, meta.Summary
}
