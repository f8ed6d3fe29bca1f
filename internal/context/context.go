// Package context selects which wiki pages are most relevant to a
// chat question, by lexical overlap against the manifest's page
// metadata (grounded on app/services/chat_service.py's
// _select_context_pages).
package context

import (
	"sort"
	"strings"
)

// Page is the subset of manifest page metadata the selector scores
// against.
type Page struct {
	Slug        string
	Title       string
	Summary     string
	KeyExports  []string
	SourceFiles []string
}

// scored pairs a page slug with its relevance score for sorting.
type scored struct {
	slug  string
	score float64
}

// SelectPages scores manifest pages against question and returns the
// top maxPages slugs, highest score first (ties keep manifest order,
// matching Python's stable sort).
func SelectPages(pages []Page, question string, maxPages int) []string {
	questionLower := strings.ToLower(question)
	questionTerms := termSet(questionLower)
	denom := float64(len(questionTerms))
	if denom == 0 {
		denom = 1
	}

	var results []scored
	for _, p := range pages {
		score := 0.0

		if overlap := len(questionTerms.intersect(termSet(strings.ToLower(p.Title)))); overlap > 0 {
			score += 3.0 * float64(overlap) / denom
		}
		if overlap := len(questionTerms.intersect(termSet(strings.ToLower(p.Summary)))); overlap > 0 {
			score += 2.0 * float64(overlap) / denom
		}
		for _, export := range p.KeyExports {
			if strings.Contains(questionLower, strings.ToLower(export)) {
				score += 5.0
			}
		}
		for _, f := range p.SourceFiles {
			filename := baseNameNoExt(f)
			for term := range questionTerms {
				if strings.Contains(strings.ToLower(filename), term) {
					score += 2.0
					break
				}
			}
		}

		if score > 0 {
			results = append(results, scored{slug: p.Slug, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > maxPages {
		results = results[:maxPages]
	}
	slugs := make([]string, len(results))
	for i, r := range results {
		slugs[i] = r.slug
	}
	return slugs
}

type set map[string]struct{}

func termSet(s string) set {
	out := make(set)
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}

func (s set) intersect(other set) set {
	out := make(set)
	for t := range s {
		if _, ok := other[t]; ok {
			out[t] = struct{}{}
		}
	}
	return out
}

// baseNameNoExt mirrors f.split("/")[-1].replace("_", " ").replace(".py", "").
func baseNameNoExt(path string) string {
	base := path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		base = path[idx+1:]
	}
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, ".py", "")
	return base
}
