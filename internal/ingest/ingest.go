// Package ingest clones a git repository, walks its tree, and batch
// loads file rows into the store (grounded on
// backend/services/ingestion.py's ingest_repo).
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/falconwiki/falcon/internal/apperrors"
	"github.com/falconwiki/falcon/internal/store"
	"github.com/google/uuid"
)

// skipDirs mirrors SKIP_DIRS: directory names os.walk never descends
// into.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true, ".venv": true,
	"venv": true, ".env": true, "vendor": true, "dist": true, "build": true,
	".next": true, ".nuxt": true, "target": true, "bin": true, "obj": true,
	".idea": true, ".vscode": true, ".DS_Store": true, ".svn": true, ".hg": true,
	"coverage": true, ".cache": true, ".parcel-cache": true, ".turbo": true,
}

// skipExtensions mirrors SKIP_EXTENSIONS.
var skipExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true, ".bmp": true, ".webp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true, ".webm": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true, ".bz2": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true, ".obj": true, ".wasm": true,
	".sqlite": true, ".db": true, ".pickle": true, ".pkl": true,
	".map": true,
}

// skipFilenames mirrors SKIP_FILENAMES.
var skipFilenames = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"poetry.lock": true, "Cargo.lock": true, "composer.lock": true,
	"Gemfile.lock": true, "go.sum": true,
	".DS_Store": true, "Thumbs.db": true,
}

// Result reports the outcome of an ingestion run.
type Result struct {
	RepoID        string
	AlreadyExists bool
	FileCount     int
}

// Ingester clones, walks, and loads a repo into the store.
type Ingester struct {
	Store       *store.Store
	MaxFileSize int64
	Logger      *slog.Logger
}

// New constructs an Ingester.
func New(st *store.Store, maxFileSize int64, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{Store: st, MaxFileSize: maxFileSize, Logger: logger}
}

// Ingest clones url, walks its tree, and loads every eligible file
// and directory row, in one transaction per batch (grounded on
// ingest_repo's dedup-check / insert / clone-walk-insert / status
// update sequence).
func (ig *Ingester) Ingest(ctx context.Context, url string) (Result, error) {
	if existing, err := ig.Store.GetRepoByURL(ctx, url); err == nil {
		return Result{RepoID: existing.ID, AlreadyExists: true}, nil
	} else if e, ok := apperrors.As(err); !ok || e.Kind != apperrors.NotFound {
		return Result{}, err
	}

	repoID := uuid.NewString()
	repoName := extractRepoName(url)
	if err := ig.Store.CreateRepo(ctx, repoID, url, repoName); err != nil {
		return Result{}, fmt.Errorf("create repo row: %w", err)
	}

	rows, err := ig.cloneAndCollect(ctx, repoID, url)
	if err != nil {
		ig.Store.UpdateRepoStatus(ctx, repoID, "error")
		return Result{}, err
	}

	if len(rows) > 0 {
		if err := ig.Store.InsertFiles(ctx, rows); err != nil {
			ig.Store.UpdateRepoStatus(ctx, repoID, "error")
			return Result{}, fmt.Errorf("insert files: %w", err)
		}
	}

	if err := ig.Store.UpdateRepoStatus(ctx, repoID, "ready"); err != nil {
		return Result{}, err
	}
	return Result{RepoID: repoID, FileCount: len(rows)}, nil
}

func (ig *Ingester) cloneAndCollect(ctx context.Context, repoID, url string) ([]store.FileRow, error) {
	tmpDir, err := os.MkdirTemp("", "falcon-ingest-")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Acquisition, "create ingest tmpdir", err)
	}
	defer os.RemoveAll(tmpDir)

	clonePath := filepath.Join(tmpDir, "repo")
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", url, clonePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, apperrors.Wrap(apperrors.SourceHost, fmt.Sprintf("git clone failed: %s", strings.TrimSpace(stderr.String())), err)
	}

	return ig.collectFileRecords(clonePath, repoID)
}

func (ig *Ingester) collectFileRecords(root, repoID string) ([]store.FileRow, error) {
	var rows []store.FileRow

	err := walkFiltered(root, func(relDir string, dirs []string, files []string, absDir string) error {
		if relDir != "" {
			rows = append(rows, directoryRow(repoID, relDir))
		}
		for _, name := range files {
			if skipFilenames[name] {
				continue
			}
			ext := extensionOf(name)
			if skipExtensions[ext] {
				continue
			}
			absPath := filepath.Join(absDir, name)
			info, err := os.Stat(absPath)
			if err != nil {
				continue
			}
			if info.Size() > ig.MaxFileSize {
				continue
			}
			content, err := os.ReadFile(absPath)
			if err != nil || !utf8.Valid(content) {
				continue
			}

			relPath := name
			if relDir != "" {
				relPath = relDir + "/" + name
			}
			rows = append(rows, fileRow(repoID, relPath, name, ext, string(content)))
		}
		return nil
	})
	return rows, err
}

func directoryRow(repoID, relDir string) store.FileRow {
	parent, name, depth := splitRel(relDir)
	return store.FileRow{RepoID: repoID, Path: relDir, Name: name, ParentPath: parent, Depth: depth, IsDirectory: true}
}

func fileRow(repoID, relPath, name, ext, content string) store.FileRow {
	parent, _, depth := splitRel(relPath)
	var extPtr *string
	if ext != "" {
		extPtr = &ext
	}
	c := content
	return store.FileRow{RepoID: repoID, Path: relPath, Name: name, Extension: extPtr, ParentPath: parent, Depth: depth, IsDirectory: false, Content: &c}
}

// splitRel returns (parent_path, base_name, depth) for a slash-joined
// relative path, matching Path(rel).parent / .name / len(.parts).
func splitRel(rel string) (parent, name string, depth int) {
	parts := strings.Split(rel, "/")
	depth = len(parts)
	name = parts[len(parts)-1]
	if len(parts) > 1 {
		parent = strings.Join(parts[:len(parts)-1], "/")
	}
	return parent, name, depth
}

func extensionOf(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(ext)
}

// extractRepoName mirrors _extract_repo_name: strips a trailing .git,
// and keeps the last two path segments for HTTPS URLs, or everything
// after the last colon for SSH URLs.
func extractRepoName(url string) string {
	clean := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")

	if strings.Contains(clean, "://") {
		parts := strings.Split(clean, "/")
		if len(parts) >= 2 {
			return strings.Join(parts[len(parts)-2:], "/")
		}
		return parts[len(parts)-1]
	}

	if idx := strings.LastIndex(clean, ":"); idx != -1 {
		return clean[idx+1:]
	}
	return clean
}

// walkFn is invoked once per directory (including the repo root, for
// which relDir is "") with its filtered subdirectory and file names.
type walkFn func(relDir string, dirs, files []string, absDir string) error

// walkFiltered walks root depth-first, pruning skipDirs before
// recursing, mirroring os.walk(root) with dirnames[:] filtered
// in-place.
func walkFiltered(root string, fn walkFn) error {
	return walkDir(root, root, fn)
}

func walkDir(root, dir string, fn walkFn) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			if !skipDirs[e.Name()] {
				dirs = append(dirs, e.Name())
			}
			continue
		}
		files = append(files, e.Name())
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return err
	}
	if rel == "." {
		rel = ""
	} else {
		rel = filepath.ToSlash(rel)
	}

	if err := fn(rel, dirs, files, dir); err != nil {
		return err
	}
	for _, d := range dirs {
		if err := walkDir(root, filepath.Join(dir, d), fn); err != nil {
			return err
		}
	}
	return nil
}
