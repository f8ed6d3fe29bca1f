package wikisvc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	cases := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"https://github.com/octocat/Hello-World", "octocat", "Hello-World", false},
		{"https://github.com/octocat/Hello-World.git", "octocat", "Hello-World", false},
		{"https://github.com/octocat/Hello-World/", "octocat", "Hello-World", false},
		{"http://github.com/octocat/Hello-World", "octocat", "Hello-World", false},
		{"https://gitlab.com/octocat/Hello-World", "", "", true},
		{"not a url", "", "", true},
	}
	for _, c := range cases {
		owner, repo, err := ParseGitHubURL(c.url)
		if c.wantErr {
			require.Errorf(t, err, "url %s", c.url)
			continue
		}
		require.NoErrorf(t, err, "url %s", c.url)
		require.Equal(t, c.wantOwner, owner)
		require.Equal(t, c.wantRepo, repo)
	}
}

func TestSplitFrontmatter_WithYAMLBlock(t *testing.T) {
	doc := "---\ntitle: Overview\nsection: guides\n---\n# Hello\n\nBody text.\n"
	yamlBlock, body := splitFrontmatter(doc)
	require.Equal(t, "title: Overview\nsection: guides", yamlBlock)
	require.Equal(t, "# Hello\n\nBody text.\n", body)

	fm := parseFrontmatterMap(yamlBlock)
	require.Equal(t, "Overview", fm["title"])
	require.Equal(t, "guides", fm["section"])
}

func TestSplitFrontmatter_NoDelimiterReturnsWholeDocAsBody(t *testing.T) {
	doc := "# Just a heading\n\nNo frontmatter here.\n"
	yamlBlock, body := splitFrontmatter(doc)
	require.Empty(t, yamlBlock)
	require.Equal(t, doc, body)
}
