// Package wikisvc is the service-layer surface HTTP handlers call
// into for wiki CRUD and read access (grounded on
// app/services/wiki_service.py's WikiService).
package wikisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/falconwiki/falcon/internal/apperrors"
	"github.com/falconwiki/falcon/internal/store"
)

// Service wraps the store with wiki-facing operations.
type Service struct {
	Store           *store.Store
	WikiStorageRoot string
}

// New constructs a Service.
func New(st *store.Store, wikiStorageRoot string) *Service {
	return &Service{Store: st, WikiStorageRoot: wikiStorageRoot}
}

var githubURLPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseGitHubURL extracts (owner, repo) from a github.com URL
// (grounded on wikis.py's _parse_github_url).
func ParseGitHubURL(url string) (owner, repo string, err error) {
	m := githubURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", apperrors.New(apperrors.InvalidInput, "invalid GitHub URL")
	}
	return m[1], m[2], nil
}

// CreateWiki enrolls a wiki and its generation job.
func (s *Service) CreateWiki(ctx context.Context, githubURL, branch string) (store.CreateWikiResult, error) {
	owner, repo, err := ParseGitHubURL(githubURL)
	if err != nil {
		return store.CreateWikiResult{}, err
	}
	if branch == "" {
		branch = "main"
	}
	return s.Store.CreateWiki(ctx, owner, repo, githubURL, branch, uuid.NewString(), uuid.NewString())
}

// GetWiki loads one wiki row.
func (s *Service) GetWiki(ctx context.Context, wikiID string) (*store.Wiki, error) {
	return s.Store.GetWiki(ctx, wikiID)
}

// FindWikis lists wikis optionally filtered by owner/repo.
func (s *Service) FindWikis(ctx context.Context, owner, repo string) ([]*store.Wiki, error) {
	return s.Store.FindWikis(ctx, owner, repo)
}

// DeleteWiki removes a wiki's storage directory and database rows.
func (s *Service) DeleteWiki(ctx context.Context, wikiID string) error {
	wiki, err := s.Store.GetWiki(ctx, wikiID)
	if err != nil {
		return err
	}
	if wiki.StoragePath != "" {
		os.RemoveAll(filepath.Join(s.WikiStorageRoot, wiki.StoragePath))
	}
	return s.Store.DeleteWiki(ctx, wikiID)
}

// GetManifest reads manifest.json from a completed wiki's storage
// directory.
func (s *Service) GetManifest(ctx context.Context, wikiID string) (map[string]any, error) {
	wiki, err := s.Store.GetWiki(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	if wiki.Status != store.WikiCompleted {
		return nil, apperrors.New(apperrors.NotFound, "manifest not found")
	}

	path := filepath.Join(s.WikiStorageRoot, wiki.StoragePath, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.NotFound, "manifest not found")
	}
	var manifest map[string]any
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return manifest, nil
}

// PageSummary is one entry in a wiki's page listing.
type PageSummary struct {
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Section string  `json:"section"`
	Order   int     `json:"order"`
	Summary *string `json:"summary"`
}

// ListPages returns a wiki's page index ordered by sort_order.
func (s *Service) ListPages(ctx context.Context, wikiID string) ([]PageSummary, error) {
	rows, err := s.Store.ListWikiPages(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	out := make([]PageSummary, len(rows))
	for i, r := range rows {
		out[i] = PageSummary{Slug: r.Slug, Title: r.Title, Section: r.Section, Order: r.SortOrder, Summary: r.Summary}
	}
	return out, nil
}

// PageDetail is one page's full rendered content.
type PageDetail struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Section     string         `json:"section"`
	ContentMD   string         `json:"content_md"`
	Frontmatter map[string]any `json:"frontmatter"`
}

// GetPage reads a page's markdown file and splits its frontmatter
// from its body.
func (s *Service) GetPage(ctx context.Context, wikiID, slug string) (*PageDetail, error) {
	wiki, err := s.Store.GetWiki(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	page, err := s.Store.GetWikiPage(ctx, wikiID, slug)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.WikiStorageRoot, wiki.StoragePath, page.FilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.NotFound, "page file not found")
	}

	yamlBlock, body := splitFrontmatter(string(data))
	fm := parseFrontmatterMap(yamlBlock)
	title, _ := fm["title"].(string)
	section, _ := fm["section"].(string)
	if title == "" {
		title = page.Title
	}
	if section == "" {
		section = page.Section
	}

	return &PageDetail{Slug: slug, Title: title, Section: section, ContentMD: body, Frontmatter: fm}, nil
}

// StatusResponse mirrors WikiStatusResponse.
type StatusResponse struct {
	Status    string  `json:"status"`
	Progress  *progress `json:"progress,omitempty"`
	StartedAt *string `json:"started_at,omitempty"`
}

type progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// GetStatus reports a wiki's phase and page-generation progress.
func (s *Service) GetStatus(ctx context.Context, wikiID string) (*StatusResponse, error) {
	wiki, err := s.Store.GetWiki(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	resp := &StatusResponse{Status: string(wiki.Status), StartedAt: wiki.StartedAt}
	if wiki.TotalPages > 0 {
		resp.Progress = &progress{Completed: wiki.CompletedPages, Total: wiki.TotalPages}
	}
	return resp, nil
}

// splitFrontmatter splits a "---\nYAML\n---\nbody" document.
func splitFrontmatter(doc string) (yamlBlock, body string) {
	const delim = "---"
	lines := strings.Split(doc, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", doc
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.Join(lines[1:i], "\n"), strings.TrimPrefix(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return "", doc
}

func parseFrontmatterMap(yamlBlock string) map[string]any {
	if yamlBlock == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
