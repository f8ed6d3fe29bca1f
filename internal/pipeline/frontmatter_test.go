package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitFrontmatter_ExtractsYAMLBlockAndBody(t *testing.T) {
	doc := "---\ntitle: Overview\nsection: architecture\nsummary: high level tour\n---\n# Overview\n\nBody content.\n"
	yamlBlock, body := splitFrontmatter(doc)
	require.Equal(t, "title: Overview\nsection: architecture\nsummary: high level tour", yamlBlock)
	require.Equal(t, "# Overview\n\nBody content.\n", body)

	title, section, summary := parseFrontmatterFields(yamlBlock)
	require.Equal(t, "Overview", title)
	require.Equal(t, "architecture", section)
	require.Equal(t, "high level tour", summary)
}

func TestSplitFrontmatter_NoDelimiterKeepsWholeDocAsBody(t *testing.T) {
	doc := "# No frontmatter\n\njust body text\n"
	yamlBlock, body := splitFrontmatter(doc)
	require.Empty(t, yamlBlock)
	require.Equal(t, doc, body)
}

func TestParseFrontmatterFields_EmptyBlock(t *testing.T) {
	title, section, summary := parseFrontmatterFields("")
	require.Empty(t, title)
	require.Empty(t, section)
	require.Empty(t, summary)
}
