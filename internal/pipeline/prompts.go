package pipeline

import "fmt"

// agentsMDAnalysis and agentsMDWriting are the directive files
// written into the sandbox's working directory before invoking the
// agent runner for each phase (grounded on app/pipeline/agents_md.py's
// get_analysis_agents_md / get_writing_agents_md — the original
// templates are opaque, so these restate the phase's job plainly).
const (
	agentsMDAnalysis = `# Analysis phase

Read this repository and produce a JSON analysis plan describing its
architecture, modules, and the wiki pages that should be written about
it. Break pages into sections named "architecture", "modules",
"guides", or "api-reference".
`

	agentsMDWriting = `# Writing phase

Write one markdown wiki page per analysis-plan entry, with YAML
frontmatter carrying at least "title" and "section". Cite the source
files each page documents.
`
)

func analysisPrompt(owner, repo, description string, languages map[string]float64) string {
	return fmt.Sprintf(
		"Analyze %s/%s.\nDescription: %s\nLanguages: %v\n\nEmit a JSON analysis plan per AGENTS.md.",
		owner, repo, description, languages,
	)
}

func writingPrompt(page Page, plan AnalysisPlan) string {
	return fmt.Sprintf(
		"Write the wiki page %q (section %q) for %s/%s per AGENTS.md.",
		page.Slug, page.Section, plan.Repository.Owner, plan.Repository.Name,
	)
}

func indexingPrompt(plan AnalysisPlan, meta repoMetadata) string {
	return fmt.Sprintf(
		"Produce manifest.json for %s/%s summarizing every written wiki page, "+
			"its key exports, and the source files it documents.",
		meta.Owner, meta.Name,
	)
}
