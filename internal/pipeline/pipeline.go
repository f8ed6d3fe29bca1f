// Package pipeline drives the five-phase wiki generation state
// machine (spec §4.9), grounded on app/pipeline/orchestrator.py's
// WikiGenerationPipeline together with its analyzer.py, writer.py,
// and indexer.py collaborators.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/falconwiki/falcon/internal/agentrunner"
	"github.com/falconwiki/falcon/internal/analyzer"
	"github.com/falconwiki/falcon/internal/eventbus"
	"github.com/falconwiki/falcon/internal/sandbox"
	"github.com/falconwiki/falcon/internal/sourcehost"
	"github.com/falconwiki/falcon/internal/store"
)

// Pipeline executes one wiki's generation end to end.
type Pipeline struct {
	Store           *store.Store
	Events          *eventbus.Bus
	Sandboxes       sandbox.Provider
	Agent           *agentrunner.Runner
	SourceHost      *sourcehost.Client
	WikiStorageRoot string
	AgentTimeout    time.Duration
	MaxConcurrent   int
	AppVersion      string
	Logger          *slog.Logger
}

// Execute runs Phases 1–5 for wikiID. Each phase's state transition
// is persisted before the phase body runs, so a crash observes a
// consistent status (spec §4.9's closing guarantee). The sandbox is
// destroyed on every exit path once Phase 1 provisions it.
func (p *Pipeline) Execute(ctx context.Context, wikiID string) error {
	wiki, err := p.Store.GetWiki(ctx, wikiID)
	if err != nil {
		return fmt.Errorf("load wiki: %w", err)
	}

	if err := p.Store.UpdateWikiStatus(ctx, wikiID, store.WikiCloning); err != nil {
		return err
	}
	p.publish(wikiID, "status_change", map[string]any{"status": string(store.WikiCloning)})

	sb, err := p.Sandboxes.Create(ctx, wiki.GithubURL, wiki.Branch)
	if err != nil {
		return fmt.Errorf("phase 1 (cloning): %w", err)
	}
	defer p.Sandboxes.Destroy(context.Background(), sb)

	meta, err := p.SourceHost.GetMetadata(ctx, wiki.Owner, wiki.Repo)
	if err != nil {
		return fmt.Errorf("phase 1 (metadata): %w", err)
	}
	languagesJSON, _ := json.Marshal(meta.Languages)
	if err := p.Store.UpdateWikiCommitInfo(ctx, wikiID, meta.LatestCommitSHA, string(languagesJSON), meta.Description); err != nil {
		return err
	}
	rmeta := repoMetadata{
		Owner: meta.Owner, Name: meta.Name, Description: meta.Description,
		DefaultBranch: meta.DefaultBranch, LatestCommitSHA: meta.LatestCommitSHA,
		Languages: meta.Languages, HTMLURL: meta.HTMLURL,
	}

	plan, err := p.runAnalysis(ctx, wikiID, sb, wiki.Owner, wiki.Repo, meta.Description, meta.Languages)
	if err != nil {
		return fmt.Errorf("phase 2 (analyzing): %w", err)
	}

	if err := p.runGeneration(ctx, wikiID, sb, plan); err != nil {
		return fmt.Errorf("phase 3 (generating): %w", err)
	}

	manifest, err := p.runIndexing(ctx, wikiID, sb, plan, rmeta)
	if err != nil {
		return fmt.Errorf("phase 4 (indexing): %w", err)
	}

	if err := p.runCompletion(ctx, wikiID, sb, wiki.StoragePath, manifest); err != nil {
		return fmt.Errorf("phase 5 (completed): %w", err)
	}

	p.publish(wikiID, "complete", map[string]any{"wiki_id": wikiID})
	return nil
}

func (p *Pipeline) publish(wikiID, eventType string, data map[string]any) {
	p.Events.Publish(wikiID, eventbus.Event{Type: eventType, Data: data})
}

// runAnalysis is Phase 2: write the analysis directive, invoke the
// agent runner, and persist whatever plan it returns.
func (p *Pipeline) runAnalysis(ctx context.Context, wikiID string, sb *sandbox.Sandbox, owner, repo, description string, languages map[string]float64) (AnalysisPlan, error) {
	if err := p.Store.UpdateWikiStatus(ctx, wikiID, store.WikiAnalyzing); err != nil {
		return AnalysisPlan{}, err
	}
	p.publish(wikiID, "status_change", map[string]any{"status": string(store.WikiAnalyzing)})

	if err := os.WriteFile(filepath.Join(sb.WorkingDir, "AGENTS.md"), []byte(agentsMDAnalysis), 0o644); err != nil {
		return AnalysisPlan{}, fmt.Errorf("write AGENTS.md: %w", err)
	}

	prompt := analysisPrompt(owner, repo, description, languages)
	result, err := p.Agent.Run(ctx, sb.WorkingDir, prompt, "", p.AgentTimeout)
	if err != nil {
		return AnalysisPlan{}, err
	}
	if result.ExitCode != 0 {
		return AnalysisPlan{}, fmt.Errorf("agent analysis failed: %s", result.Stderr)
	}

	plan := parseAnalysisPlan(result.Output, owner, repo)
	planJSON, _ := json.Marshal(plan)
	if err := p.Store.SaveAnalysisPlan(ctx, wikiID, string(planJSON)); err != nil {
		return AnalysisPlan{}, err
	}

	total := plan.TotalPages()
	if err := p.Store.UpdatePageCounts(ctx, wikiID, total, 0); err != nil {
		return AnalysisPlan{}, err
	}
	return plan, nil
}

// parseAnalysisPlan decodes the agent's JSON output into an
// AnalysisPlan; a plan the agent couldn't produce structurally still
// carries its raw text forward (spec's Open Question: the plan shape
// stays opaque beyond "sections break into pages").
func parseAnalysisPlan(output, owner, repo string) AnalysisPlan {
	var plan AnalysisPlan
	if err := json.Unmarshal([]byte(output), &plan); err != nil {
		plan = AnalysisPlan{Repository: RepoRef{Owner: owner, Name: repo}}
	}
	plan.Raw = json.RawMessage(output)
	if plan.Repository.Owner == "" {
		plan.Repository = RepoRef{Owner: owner, Name: repo}
	}
	return plan
}

// runGeneration is Phase 3: organize pages into waves and generate
// each wave's pages concurrently under a semaphore (grounded on
// writer.py's write_pages, ported from asyncio.Semaphore +
// as_completed to errgroup.Group with SetLimit).
func (p *Pipeline) runGeneration(ctx context.Context, wikiID string, sb *sandbox.Sandbox, plan AnalysisPlan) error {
	if err := p.Store.UpdateWikiStatus(ctx, wikiID, store.WikiGenerating); err != nil {
		return err
	}
	p.publish(wikiID, "status_change", map[string]any{"status": string(store.WikiGenerating)})

	if err := os.WriteFile(filepath.Join(sb.WorkingDir, "AGENTS.md"), []byte(agentsMDWriting), 0o644); err != nil {
		return fmt.Errorf("write AGENTS.md: %w", err)
	}

	waves := organizeWaves(plan)
	total := plan.TotalPages()

	var mu sync.Mutex
	completed := 0

	for _, w := range waves {
		p.Logger.Info("generating wave", "wiki_id", wikiID, "wave", w.name, "pages", len(w.pages))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.MaxConcurrent)

		for _, page := range w.pages {
			page := page
			g.Go(func() error {
				prompt := writingPrompt(page, plan)
				result, err := p.Agent.Run(gctx, sb.WorkingDir, prompt, "", p.AgentTimeout)
				if err != nil {
					p.Logger.Error("generate page failed", "wiki_id", wikiID, "slug", page.Slug, "error", err)
				} else if result.ExitCode != 0 {
					p.Logger.Error("generate page failed", "wiki_id", wikiID, "slug", page.Slug, "stderr", result.Stderr)
				}

				mu.Lock()
				completed++
				n := completed
				mu.Unlock()

				if err := p.Store.UpdatePageCounts(gctx, wikiID, total, n); err != nil {
					return err
				}
				p.publish(wikiID, "page_complete", map[string]any{
					"slug":     page.Slug,
					"progress": fmt.Sprintf("%d/%d", n, total),
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// runIndexing is Phase 4: invoke the agent to produce manifest.json,
// falling back to a metadata-derived manifest on failure (grounded on
// indexer.py's generate_manifest / _build_fallback_manifest).
func (p *Pipeline) runIndexing(ctx context.Context, wikiID string, sb *sandbox.Sandbox, plan AnalysisPlan, meta repoMetadata) (Manifest, error) {
	if err := p.Store.UpdateWikiStatus(ctx, wikiID, store.WikiIndexing); err != nil {
		return Manifest{}, err
	}
	p.publish(wikiID, "status_change", map[string]any{"status": string(store.WikiIndexing)})

	prompt := indexingPrompt(plan, meta)
	result, err := p.Agent.Run(ctx, sb.WorkingDir, prompt, "", p.AgentTimeout)
	if err != nil || result.ExitCode != 0 {
		p.Logger.Error("manifest generation failed, using fallback", "wiki_id", wikiID)
		return p.fallbackManifest(plan, meta, sb), nil
	}

	var manifest Manifest
	if err := json.Unmarshal([]byte(result.Output), &manifest); err != nil {
		return p.fallbackManifest(plan, meta, sb), nil
	}
	return manifest, nil
}

// fallbackManifest builds the metadata-derived manifest and enriches
// its source_index with exported Go signatures scanned straight out
// of the sandbox, resolving spec §9's Unresolved Behavior (b) for the
// case where the agent never produces its own manifest.
func (p *Pipeline) fallbackManifest(plan AnalysisPlan, meta repoMetadata, sb *sandbox.Sandbox) Manifest {
	m := buildFallbackManifest(plan, meta, p.AppVersion)
	exports := analyzer.BuildSourceIndex(sb.WorkingDir)
	if len(exports) > 0 {
		idx := make(map[string]any, len(exports))
		for _, fe := range exports {
			idx[fe.Path] = fe.Exports
		}
		m.SourceIndex = idx
	}
	return m
}

// runCompletion is Phase 5: copy the sandbox's markdown output and
// manifest.json into permanent storage, populate the wiki_pages
// index, and mark the wiki completed (resolves spec §9's Open
// Questions on copy strategy and page-index population).
func (p *Pipeline) runCompletion(ctx context.Context, wikiID string, sb *sandbox.Sandbox, storagePath string, manifest Manifest) error {
	storageDir := filepath.Join(p.WikiStorageRoot, storagePath)
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	copiedFiles, err := copyWikiOutput(sb.WorkingDir, storageDir)
	if err != nil {
		return fmt.Errorf("copy wiki output: %w", err)
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(storageDir, "manifest.json"), manifestJSON, 0o644); err != nil {
		return fmt.Errorf("write manifest.json: %w", err)
	}

	pages, err := buildWikiPages(storageDir, manifest, copiedFiles)
	if err != nil {
		return fmt.Errorf("build page index: %w", err)
	}
	if err := p.Store.ReplaceWikiPages(ctx, wikiID, pages); err != nil {
		return err
	}

	return p.Store.UpdateWikiStatus(ctx, wikiID, store.WikiCompleted)
}

// copyWikiOutput copies every *.md file the agent wrote from the
// sandbox into storageDir, preserving relative paths, and returns the
// list of relative paths copied.
func copyWikiOutput(sandboxDir, storageDir string) ([]string, error) {
	var copied []string
	err := filepath.WalkDir(sandboxDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(sandboxDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(storageDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dest); err != nil {
			return err
		}
		copied = append(copied, rel)
		return nil
	})
	return copied, err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// buildWikiPages derives the wiki_pages rows. When manifest.json's
// "pages" array is non-empty, every row comes from it alone and the
// copied files' frontmatter is not read; otherwise each copied
// markdown file yields one row from its own frontmatter, slugged by
// file name.
func buildWikiPages(storageDir string, manifest Manifest, copiedFiles []string) ([]store.WikiPage, error) {
	if len(manifest.Pages) > 0 {
		pages := make([]store.WikiPage, 0, len(manifest.Pages))
		for i, mp := range manifest.Pages {
			summary := mp.Summary
			pages = append(pages, store.WikiPage{
				Slug: mp.Slug, Title: mp.Title, Section: mp.Section,
				SortOrder: orDefault(mp.SortOrder, i), Summary: strPtr(summary), FilePath: mp.FilePath,
			})
		}
		return pages, nil
	}

	// No manifest pages: fall back to deriving the index from each
	// copied file's own frontmatter.
	pages := make([]store.WikiPage, 0, len(copiedFiles))
	for i, rel := range copiedFiles {
		content, err := os.ReadFile(filepath.Join(storageDir, rel))
		if err != nil {
			continue
		}
		yamlBlock, _ := splitFrontmatter(string(content))
		title, section, summary := parseFrontmatterFields(yamlBlock)
		slug := strings.TrimSuffix(filepath.Base(rel), ".md")
		pages = append(pages, store.WikiPage{
			Slug: slug, Title: title, Section: section,
			SortOrder: i, Summary: strPtr(summary), FilePath: rel,
		})
	}
	return pages, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
