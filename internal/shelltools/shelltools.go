// Package shelltools implements the three virtual shell tools the
// ReAct agent calls against an ingested repo's indexed file tree
// (grounded on tools/shell.py): list_files clubs ls/find/rg --files,
// read_file clubs cat/head/tail/sed, search_code is rg.
package shelltools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/falconwiki/falcon/internal/apperrors"
	"github.com/falconwiki/falcon/internal/store"
)

// Output caps — prevent flooding the agent's context window.
const (
	MaxListResults   = 200
	MaxFileLines     = 500
	MaxSearchMatches = 50
)

// Tools executes the three virtual shell tools against one repo's
// indexed rows.
type Tools struct {
	Store  *store.Store
	RepoID string
}

// New constructs a Tools bound to repoID.
func New(st *store.Store, repoID string) *Tools {
	return &Tools{Store: st, RepoID: repoID}
}

// ListFiles clubs ls, find, and rg --files. A bare path lists one
// directory level; a path containing '*' or '?' is treated as a glob
// and matched against every indexed path (grounded on list_files).
func (t *Tools) ListFiles(ctx context.Context, path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "." {
		path = ""
	}

	if strings.ContainsAny(path, "*?") {
		return t.listGlob(ctx, path)
	}
	return t.listDirectory(ctx, path)
}

func (t *Tools) listGlob(ctx context.Context, pattern string) (string, error) {
	rows, err := t.Store.ListAllPaths(ctx, t.RepoID)
	if err != nil {
		return "", err
	}

	var matched []store.FileRow
	for _, r := range rows {
		if matchGlob(pattern, r.Path) {
			matched = append(matched, r)
		}
	}

	if len(matched) == 0 {
		return fmt.Sprintf("No files matching: %s", pattern), nil
	}

	var lines []string
	limit := len(matched)
	if limit > MaxListResults {
		limit = MaxListResults
	}
	for _, r := range matched[:limit] {
		lines = append(lines, entryName(r.Path, r.IsDirectory))
	}
	if len(matched) > MaxListResults {
		lines = append(lines, fmt.Sprintf("\n... %d more results. Narrow your glob.", len(matched)-MaxListResults))
	}
	return strings.Join(lines, "\n"), nil
}

func (t *Tools) listDirectory(ctx context.Context, path string) (string, error) {
	rows, err := t.Store.ListDirectory(ctx, t.RepoID, path)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		display := path
		if display == "" {
			display = "."
		}
		return fmt.Sprintf("ls: cannot access '%s': No such file or directory", display), nil
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, entryName(r.Name, r.IsDirectory))
	}
	return strings.Join(lines, "\n"), nil
}

func entryName(name string, isDirectory bool) string {
	if isDirectory {
		return name + "/"
	}
	return name
}

// ReadFile clubs cat, head, tail, and sed -n. start==0,end==0 reads
// the whole file; a negative start reads the last -start lines (tail
// mode); otherwise start/end (1-indexed, both inclusive: the slice
// lines[start-1:end]) select a range (grounded on read_file).
func (t *Tools) ReadFile(ctx context.Context, path string, start, end int) (string, error) {
	path = strings.TrimPrefix(strings.Trim(path, "/"), "./")

	f, err := t.Store.GetFileByPath(ctx, t.RepoID, path)
	if err != nil {
		if e, ok := apperrors.As(err); ok && e.Kind == apperrors.NotFound {
			return fmt.Sprintf("Error: %s: No such file or directory", path), nil
		}
		return "", err
	}
	if f.IsDirectory {
		return fmt.Sprintf("Error: %s: Is a directory", path), nil
	}
	content := ""
	if f.Content != nil {
		content = *f.Content
	}

	lines := strings.Split(content, "\n")
	total := len(lines)

	var selected []string
	var firstNum int
	if start < 0 {
		idx := total + start
		if idx < 0 {
			idx = 0
		}
		selected = lines[idx:]
		firstNum = total + start + 1
	} else {
		s := start - 1
		if start == 0 {
			s = 0
		}
		if s < 0 {
			s = 0
		}
		e := end
		if end == 0 {
			e = total
		}
		if e > total {
			e = total
		}
		if s > e {
			s = e
		}
		selected = lines[s:e]
		firstNum = s + 1
	}

	truncated := false
	if len(selected) > MaxFileLines {
		selected = selected[:MaxFileLines]
		truncated = true
	}

	width := len(strconv.Itoa(firstNum + len(selected) - 1))
	if width < 1 {
		width = 1
	}
	var out strings.Builder
	for i, line := range selected {
		num := firstNum + i
		fmt.Fprintf(&out, "%*d | %s\n", width, num, line)
	}
	result := strings.TrimRight(out.String(), "\n")
	if truncated {
		result += fmt.Sprintf("\n\n... truncated (%d total lines). Use start_line/end_line to read specific sections.", total)
	}
	return result, nil
}

// literalPattern extracts 3+ character alphanumeric/underscore runs
// from a regex for the trigram pre-filter (grounded on
// _extract_literals).
var literalPattern = regexp.MustCompile(`[a-zA-Z0-9_]{3,}`)

// extMatchGlob recognizes a bare "*.ext" glob (grounded on
// search_code's ext_match).
var extMatchGlob = regexp.MustCompile(`^\*(\.\w+)$`)

// SearchCode is the only tool that searches across files: a
// trigram FTS5 MATCH pre-filter narrows candidates, then a full Go
// regexp.Regexp scans candidate files line by line (grounded on
// search_code; internal/store.SearchContentCandidates stands in for
// the original's pg_trgm LIKE pre-filter).
func (t *Tools) SearchCode(ctx context.Context, pattern, glob string) (string, error) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("Invalid regex: %v", err), nil
	}

	literals := literalPattern.FindAllString(pattern, -1)
	literal := ""
	if len(literals) > 0 {
		literal = literals[0]
	}

	globLike := ""
	if glob != "" {
		if m := extMatchGlob.FindStringSubmatch(glob); m != nil {
			globLike = "%" + escapeLike(m[1])
		} else {
			globLike = globToLike(glob)
		}
	}

	var rows []store.FileRow
	if literal != "" {
		rows, err = t.Store.SearchContentCandidates(ctx, t.RepoID, literal, globLike)
	} else {
		rows, err = t.scanAllContent(ctx, globLike)
	}
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No matches found for pattern: %s", pattern), nil
	}

	// Further narrow by any additional literals the trigram index
	// itself can't AND together in one MATCH query.
	if len(literals) > 1 {
		rows = filterByAllLiterals(rows, literals[1:])
	}

	var out []string
	matchCount := 0
	for _, row := range rows {
		content := ""
		if row.Content != nil {
			content = *row.Content
		}
		for lineNum, line := range strings.Split(content, "\n") {
			if compiled.MatchString(line) {
				out = append(out, fmt.Sprintf("%s:%d:%s", row.Path, lineNum+1, line))
				matchCount++
				if matchCount >= MaxSearchMatches {
					out = append(out, fmt.Sprintf("\n... truncated at %d matches. Narrow with glob or a more specific pattern.", MaxSearchMatches))
					return strings.Join(out, "\n"), nil
				}
			}
		}
	}
	if len(out) == 0 {
		return fmt.Sprintf("No matches found for pattern: %s", pattern), nil
	}
	return strings.Join(out, "\n"), nil
}

func (t *Tools) scanAllContent(ctx context.Context, globLike string) ([]store.FileRow, error) {
	if globLike != "" {
		return t.Store.ListGlob(ctx, t.RepoID, globLike)
	}
	all, err := t.Store.ListAllPaths(ctx, t.RepoID)
	if err != nil {
		return nil, err
	}
	rows := make([]store.FileRow, 0, len(all))
	for _, f := range all {
		if f.IsDirectory {
			continue
		}
		full, err := t.Store.GetFileByPath(ctx, t.RepoID, f.Path)
		if err != nil {
			continue
		}
		rows = append(rows, *full)
	}
	return rows, nil
}

func filterByAllLiterals(rows []store.FileRow, literals []string) []store.FileRow {
	var out []store.FileRow
	for _, r := range rows {
		content := ""
		if r.Content != nil {
			content = *r.Content
		}
		ok := true
		for _, lit := range literals {
			if !strings.Contains(content, lit) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// globToLike translates a shell glob with '*'/'?' into a SQL LIKE
// pattern (grounded on search_code's like_glob translation for the
// non-extension --glob case).
func globToLike(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchGlob implements fnmatch-equivalent matching for list_files'
// glob mode, including '**' matching across path segments the way
// Python's fnmatch (applied to the whole path string, where '*'
// already matches '/') does.
func matchGlob(pattern, name string) bool {
	return globMatch([]rune(pattern), []rune(name))
}

func globMatch(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	switch pattern[0] {
	case '*':
		// fnmatch's '*' matches any sequence including '/', so a
		// single '*' already behaves like '**' here.
		if globMatch(pattern[1:], name) {
			return true
		}
		if len(name) > 0 {
			return globMatch(pattern, name[1:])
		}
		return false
	case '?':
		if len(name) == 0 {
			return false
		}
		return globMatch(pattern[1:], name[1:])
	default:
		if len(name) == 0 || pattern[0] != name[0] {
			return false
		}
		return globMatch(pattern[1:], name[1:])
	}
}
