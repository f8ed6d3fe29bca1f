package shelltools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falconwiki/falcon/internal/store"
)

func newTestTools(t *testing.T) *Tools {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateRepo(ctx, "repo-1", "https://github.com/o/r", "r"))

	content := func(s string) *string { return &s }
	ext := func(s string) *string { return &s }

	rows := []store.FileRow{
		{RepoID: "repo-1", Path: "src", Name: "src", ParentPath: "", Depth: 1, IsDirectory: true},
		{RepoID: "repo-1", Path: "src/main.go", Name: "main.go", Extension: ext(".go"), ParentPath: "src", Depth: 2, IsDirectory: false, Content: content("package main\n\nfunc main() {\n\tprintln(\"hello\")\n}")},
		{RepoID: "repo-1", Path: "src/util.go", Name: "util.go", Extension: ext(".go"), ParentPath: "src", Depth: 2, IsDirectory: false, Content: content("package main\n\nfunc helper() int {\n\treturn 42\n}")},
		{RepoID: "repo-1", Path: "README.md", Name: "README.md", Extension: ext(".md"), ParentPath: "", Depth: 1, IsDirectory: false, Content: content("# Title\n\nDocs mentioning helper usage.\n")},
	}
	require.NoError(t, st.InsertFiles(ctx, rows))

	return New(st, "repo-1")
}

func TestListFiles_DirectoryMode(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ListFiles(context.Background(), "src")
	require.NoError(t, err)
	require.Equal(t, "main.go\nutil.go", out)
}

func TestListFiles_DirectoryMode_RootUsesEmptyParentPath(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ListFiles(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "src/\nREADME.md", out)
}

func TestListFiles_GlobMode_DoubleStarMatchesAcrossSegments(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ListFiles(context.Background(), "**/*.go")
	require.NoError(t, err)
	require.Equal(t, "src/main.go\nsrc/util.go", out)
}

func TestListFiles_GlobMode_NoMatches(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ListFiles(context.Background(), "**/*.rs")
	require.NoError(t, err)
	require.Equal(t, "No files matching: **/*.rs", out)
}

func TestReadFile_TailMode(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ReadFile(context.Background(), "src/main.go", -2, 0)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "4 | ")
	require.Contains(t, lines[0], `println("hello")`)
	require.Contains(t, lines[1], "5 | ")
	require.Contains(t, lines[1], "}")
}

func TestReadFile_FullFile(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ReadFile(context.Background(), "src/util.go", 0, 0)
	require.NoError(t, err)
	require.Contains(t, out, "1 | package main")
	require.Contains(t, out, "4 | \treturn 42")
}

func TestReadFile_MissingFile(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ReadFile(context.Background(), "src/missing.go", 0, 0)
	require.NoError(t, err)
	require.Equal(t, "Error: src/missing.go: No such file or directory", out)
}

func TestReadFile_Directory(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.ReadFile(context.Background(), "src", 0, 0)
	require.NoError(t, err)
	require.Equal(t, "Error: src: Is a directory", out)
}

func TestSearchCode_LiteralMatch(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.SearchCode(context.Background(), "helper", "")
	require.NoError(t, err)
	require.Contains(t, out, "src/util.go:3:func helper() int {")
	require.Contains(t, out, "README.md")
}

func TestSearchCode_NoMatch(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.SearchCode(context.Background(), "doesnotexistanywhere", "")
	require.NoError(t, err)
	require.Equal(t, "No matches found for pattern: doesnotexistanywhere", out)
}

func TestSearchCode_GlobNarrowsToExtension(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.SearchCode(context.Background(), "helper", "*.md")
	require.NoError(t, err)
	require.Contains(t, out, "README.md")
	require.NotContains(t, out, "util.go")
}

func TestSearchCode_InvalidRegex(t *testing.T) {
	tools := newTestTools(t)
	out, err := tools.SearchCode(context.Background(), "([unterminated", "")
	require.NoError(t, err)
	require.Contains(t, out, "Invalid regex")
}

// TestSearchCode_AddingLiteralNeverIncreasesMatches is the monotonicity
// property: narrowing a pattern with an additional literal can only
// shrink (never grow) the set of matched lines.
func TestSearchCode_AddingLiteralNeverIncreasesMatches(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	broad, err := tools.SearchCode(ctx, "func", "")
	require.NoError(t, err)
	broadLines := strings.Split(broad, "\n")

	narrow, err := tools.SearchCode(ctx, "func helper", "")
	require.NoError(t, err)
	narrowLines := strings.Split(narrow, "\n")

	require.LessOrEqual(t, len(narrowLines), len(broadLines))
	for _, line := range narrowLines {
		require.Contains(t, broad, line)
	}
}

func TestMatchGlob_ExtMatchRecognizesBareExtensionGlob(t *testing.T) {
	require.True(t, matchGlob("*.go", "src/main.go"))
	require.True(t, matchGlob("*.go", "main.go"))
	require.False(t, matchGlob("*.go", "main.py"))
}
