package pipeline

import "encoding/json"

// AnalysisPlan is Phase 2's output: the opaque shape spec §9's Open
// Question leaves undefined beyond "sections break down into pages".
// Raw holds the agent's original output in memory; it is excluded
// from JSON encoding, so fields not declared here are dropped when
// the plan is saved.
type AnalysisPlan struct {
	Repository RepoRef          `json:"repository"`
	Sections   []Section        `json:"sections"`
	Modules    []json.RawMessage `json:"modules,omitempty"`
	Raw        json.RawMessage  `json:"-"`
}

type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

type Section struct {
	ID    string `json:"id"`
	Pages []Page `json:"pages"`
}

// Page is one page the analysis plan names; Section is filled in by
// _organize_waves's equivalent once the page is flattened out of its
// owning Section.
type Page struct {
	Slug    string `json:"slug"`
	Title   string `json:"title,omitempty"`
	Section string `json:"section,omitempty"`
}

// TotalPages sums every section's page count (grounded on
// orchestrator.py's sum(len(s.get("pages", [])) for s in sections)).
func (p AnalysisPlan) TotalPages() int {
	n := 0
	for _, s := range p.Sections {
		n += len(s.Pages)
	}
	return n
}

// FlattenPages stamps each page with its owning section id and
// returns them in section order.
func (p AnalysisPlan) FlattenPages() []Page {
	var out []Page
	for _, s := range p.Sections {
		for _, pg := range s.Pages {
			pg.Section = s.ID
			out = append(out, pg)
		}
	}
	return out
}

// Manifest is Phase 4's output, written as manifest.json in the
// wiki's storage directory (grounded on indexer.py's
// _build_fallback_manifest).
type Manifest struct {
	Version       string                 `json:"version"`
	Repository    ManifestRepo           `json:"repository"`
	FalconVersion string                 `json:"falcon_version"`
	Sections      []Section              `json:"sections"`
	Pages         []ManifestPage         `json:"pages"`
	SourceIndex   map[string]any         `json:"source_index"`
	Graph         Graph                  `json:"graph"`
	Stats         Stats                  `json:"stats"`
}

type ManifestRepo struct {
	Owner         string             `json:"owner"`
	Name          string             `json:"name"`
	URL           string             `json:"url"`
	DefaultBranch string             `json:"default_branch"`
	CommitSHA     string             `json:"commit_sha"`
	Languages     map[string]float64 `json:"languages"`
	Description   string             `json:"description"`
}

// ManifestPage is one entry in manifest.json's "pages" array — the
// row shape wiki_pages is populated from in Phase 5, plus the fields
// the context selector (internal/context) scores against.
type ManifestPage struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Section     string   `json:"section"`
	SortOrder   int      `json:"sort_order"`
	Summary     string   `json:"summary"`
	FilePath    string   `json:"file_path"`
	KeyExports  []string `json:"key_exports,omitempty"`
	SourceFiles []string `json:"source_files,omitempty"`
}

type Graph struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

type Stats struct {
	TotalPages                int     `json:"total_pages"`
	TotalSourceFilesCovered   int     `json:"total_source_files_covered"`
	TotalSourceFilesInRepo    int     `json:"total_source_files_in_repo"`
	CoveragePercent           float64 `json:"coverage_percent"`
}

// buildFallbackManifest constructs a manifest purely from metadata
// and the analysis plan, for when the agent's own manifest-generation
// invocation fails (grounded on indexer.py's _build_fallback_manifest).
func buildFallbackManifest(plan AnalysisPlan, meta repoMetadata, appVersion string) Manifest {
	return Manifest{
		Version: "1.0",
		Repository: ManifestRepo{
			Owner:         meta.Owner,
			Name:          meta.Name,
			URL:           meta.HTMLURL,
			DefaultBranch: meta.DefaultBranch,
			CommitSHA:     meta.LatestCommitSHA,
			Languages:     meta.Languages,
			Description:   meta.Description,
		},
		FalconVersion: appVersion,
		Sections:      plan.Sections,
		Pages:         nil,
		SourceIndex:   map[string]any{},
		Graph:         Graph{Nodes: []json.RawMessage{}, Edges: []json.RawMessage{}},
		Stats:         Stats{},
	}
}

// repoMetadata is the subset of sourcehost.Metadata the pipeline
// needs, kept local to avoid an import cycle with internal/sourcehost
// in test doubles.
type repoMetadata struct {
	Owner           string
	Name            string
	Description     string
	DefaultBranch   string
	LatestCommitSHA string
	Languages       map[string]float64
	HTMLURL         string
}
