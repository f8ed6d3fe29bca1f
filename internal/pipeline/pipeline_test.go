package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFallbackManifest_DerivesFromPlanAndMetadata(t *testing.T) {
	plan := AnalysisPlan{
		Sections: []Section{{ID: "architecture", Pages: []Page{{Slug: "overview"}}}},
	}
	meta := repoMetadata{
		Owner: "octocat", Name: "Hello-World", Description: "a demo repo",
		DefaultBranch: "main", LatestCommitSHA: "abc123",
		Languages: map[string]float64{"Go": 1.0}, HTMLURL: "https://github.com/octocat/Hello-World",
	}

	m := buildFallbackManifest(plan, meta, "0.1.0")

	require.Equal(t, "1.0", m.Version)
	require.Equal(t, "0.1.0", m.FalconVersion)
	require.Equal(t, "octocat", m.Repository.Owner)
	require.Equal(t, "abc123", m.Repository.CommitSHA)
	require.Equal(t, plan.Sections, m.Sections)
	require.Nil(t, m.Pages)
	require.NotNil(t, m.SourceIndex)
}

func TestBuildWikiPages_PrefersManifestPagesOverFrontmatter(t *testing.T) {
	storageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "overview.md"), []byte("# Overview\n"), 0o644))

	manifest := Manifest{
		Pages: []ManifestPage{
			{Slug: "overview", Title: "Overview", Section: "architecture", SortOrder: 1, Summary: "the big picture", FilePath: "overview.md"},
		},
	}

	pages, err := buildWikiPages(storageDir, manifest, []string{"overview.md"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "overview", pages[0].Slug)
	require.Equal(t, "architecture", pages[0].Section)
	require.Equal(t, 1, pages[0].SortOrder)
	require.NotNil(t, pages[0].Summary)
	require.Equal(t, "the big picture", *pages[0].Summary)
}

func TestBuildWikiPages_FallsBackToFileFrontmatterWhenManifestHasNoPages(t *testing.T) {
	storageDir := t.TempDir()
	content := "---\ntitle: Getting Started\nsection: guides\nsummary: how to begin\n---\n# Getting Started\n"
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "getting-started.md"), []byte(content), 0o644))

	pages, err := buildWikiPages(storageDir, Manifest{}, []string{"getting-started.md"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "getting-started", pages[0].Slug)
	require.Equal(t, "Getting Started", pages[0].Title)
	require.Equal(t, "guides", pages[0].Section)
	require.Equal(t, 0, pages[0].SortOrder)
}
