package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildSourceIndex_ExtractsExportedSignatures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/util.go", `package pkg

func Helper(name string, count int) error {
	return nil
}

func unexported() {}
`)
	writeFile(t, root, "pkg/util_test.go", `package pkg

func TestHelper(t *testing.T) {}
`)

	index := BuildSourceIndex(root)
	require.Len(t, index, 1)
	require.Equal(t, "pkg/util.go", index[0].Path)
	require.Equal(t, []string{"Helper(string, int)"}, index[0].Exports)
}

func TestBuildSourceIndex_SkipsVendorAndGitDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/dep/dep.go", `package dep

func Exported() {}
`)
	writeFile(t, root, ".git/hooks/fake.go", `package fake

func Exported() {}
`)
	writeFile(t, root, "main.go", `package main

func Run() {}
`)

	index := BuildSourceIndex(root)
	require.Len(t, index, 1)
	require.Equal(t, "main.go", index[0].Path)
}

func TestBuildSourceIndex_SortedByPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.go", "package p\n\nfunc Z() {}\n")
	writeFile(t, root, "a.go", "package p\n\nfunc A() {}\n")

	index := BuildSourceIndex(root)
	require.Len(t, index, 2)
	require.Equal(t, "a.go", index[0].Path)
	require.Equal(t, "z.go", index[1].Path)
}
