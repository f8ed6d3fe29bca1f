// Package analyzer builds the fallback source_index (spec §9
// Unresolved Behavior (b)): when Phase 4's agent invocation fails to
// produce its own manifest, the pipeline falls back to a
// metadata-derived one whose per-file exported-symbol list still
// needs to come from somewhere. BuildSourceIndex scans a sandbox's Go
// files for exported top-level function signatures and renders each
// as a short "Name(type, type)" summary, cheap enough to run against
// every wiki generation without a full parser.
package analyzer

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// funcDeclRe matches the start of a top-level Go func declaration up
// to its parameter list's opening paren, capturing the optional
// receiver and the function name.
var funcDeclRe = regexp.MustCompile(`^func\s+(\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// FileExports is the exported-symbol summary for one source file.
type FileExports struct {
	Path    string   `json:"path"`
	Exports []string `json:"exports"`
}

// BuildSourceIndex walks root for .go files and extracts exported
// top-level function signatures, producing the source_index the spec
// leaves as an Unresolved Behavior (§9b). Only Go is covered; other
// languages are omitted rather than guessed at.
func BuildSourceIndex(root string) []FileExports {
	var out []FileExports

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "node_modules":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		exports := exportedSignatures(path)
		if len(exports) == 0 {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		out = append(out, FileExports{Path: filepath.ToSlash(rel), Exports: exports})
		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// exportedSignatures scans one file line-by-line (tolerant of files
// too large or malformed to fully parse) for exported func
// declarations and renders a "Name(type, type)" summary per match.
func exportedSignatures(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var sigs []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := funcDeclRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[2]
		if !isExported(name) {
			continue
		}
		types := paramTypes(line)
		sigs = append(sigs, name+"("+strings.Join(types, ", ")+")")
	}
	return sigs
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// paramTypes extracts the base type of each parameter in a Go
// function signature, skipping a method receiver if present and
// resolving Go's grouped-parameter shorthand ("a, b int" carries
// "int" for both a and b). Only types are kept — exportedSignatures
// has no use for parameter names — so unlike a full parameter parser
// this returns one string per parameter, left to right.
//
//	"func foo(name string, age int) error"          -> [string int]
//	"func foo(a, b int) error"                       -> [int int]
//	"func (s *Server) Run(ctx context.Context) error" -> [Context]
//	"func foo(q *tools.Querier, items []Thing) error" -> [Querier Thing]
//	"func foo(fn func(int) error) error"              -> [func]
func paramTypes(signature string) []string {
	paramList := paramListOf(signature)
	if paramList == "" {
		return nil
	}

	segments := splitTopLevel(paramList)
	types := make([]string, len(segments))
	pending := ""

	for i := len(segments) - 1; i >= 0; i-- {
		tokens := paramTokens(segments[i])
		switch len(tokens) {
		case 0:
			continue
		case 1:
			types[i] = pending
		default:
			pending = normalizeType(tokens[len(tokens)-1])
			types[i] = pending
		}
	}

	out := types[:0]
	for _, t := range types {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// paramListOf extracts the parenthesized parameter list following the
// function name in sig, skipping a receiver's own parens if present.
// Given "func (r *Type) Name(ctx Context, q Querier) error" this
// returns "ctx Context, q Querier".
func paramListOf(sig string) string {
	pos := strings.Index(sig, "func")
	if pos == -1 {
		return ""
	}
	pos = skipSpace(sig, pos+len("func"))

	if pos < len(sig) && sig[pos] == '(' {
		end := matchParen(sig, pos)
		if end == -1 {
			return ""
		}
		pos = skipSpace(sig, end+1)
	}

	for pos < len(sig) && sig[pos] != '(' {
		pos++
	}
	if pos >= len(sig) {
		return ""
	}

	end := matchParen(sig, pos)
	if end == -1 {
		return ""
	}
	return sig[pos+1 : end]
}

// normalizeType strips pointer/slice/variadic decoration and package
// qualification down to a bare type name.
//
//	"*Querier" -> "Querier"; "[]Querier" -> "Querier"
//	"tools.Querier" -> "Querier"; "...string" -> "string"
//	"func(int) error" -> "func"
func normalizeType(t string) string {
	t = strings.TrimLeft(t, "*")
	if strings.HasPrefix(t, "[]") {
		t = strings.TrimLeft(t[2:], "*")
	}
	t = strings.TrimPrefix(t, "...")
	if strings.HasPrefix(t, "func") {
		return "func"
	}
	if dot := strings.LastIndex(t, "."); dot >= 0 {
		t = t[dot+1:]
	}
	return t
}

// splitTopLevel splits s on commas that sit outside any parens, so
// "a, b int" and "fn func(int, string) error, n int" each split into
// their two top-level parameters rather than breaking inside fn's
// argument list.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// paramTokens splits one parameter segment ("name *Type", "a, b",
// "fn func(int) error") into whitespace-delimited tokens, treating a
// leading "*"/"[" or "func" run as one token that swallows any nested
// parens it introduces.
func paramTokens(segment string) []string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(segment), "..."))
	if s == "" {
		return nil
	}

	var tokens []string
	i := 0
	for i < len(s) {
		i = skipSpace(s, i)
		if i >= len(s) {
			break
		}

		start := i
		if s[i] == '*' || s[i] == '[' || strings.HasPrefix(s[i:], "func") {
			tokens = append(tokens, s[start:])
			break
		}

		for i < len(s) && s[i] != ' ' && s[i] != '\t' {
			if s[i] == '(' {
				if end := matchParen(s, i); end != -1 {
					i = end + 1
					continue
				}
				i = len(s)
				continue
			}
			i++
		}
		if tok := s[start:i]; tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n') {
		pos++
	}
	return pos
}
