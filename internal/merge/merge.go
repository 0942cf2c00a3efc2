// Package merge collapses articles reported by several providers into one
// duplicate-free list.
package merge

import (
	"strings"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/relevance"
)

// minTitleTokens keeps short generic headlines ("Live updates") from being collapsed by title.
const minTitleTokens = 3

// Options tunes Merge.
type Options struct {
	// CollapseTitles additionally merges articles whose normalized titles are identical.
	CollapseTitles bool
}

// DefaultOptions enables title collapsing.
func DefaultOptions() Options {
	return Options{CollapseTitles: true}
}

// Merge is MergeWith using DefaultOptions.
func Merge(results []domain.ProviderResult) []domain.Article {
	return MergeWith(results, DefaultOptions())
}

// MergeWith flattens results, which must be given in provider priority order,
// and groups articles by normalized URL. Each group is represented by the
// member with the longest summary; ties go to the earliest seen. Groups keep
// the position of their first appearance. Merging an already merged list
// returns it unchanged.
func MergeWith(results []domain.ProviderResult, opts Options) []domain.Article {
	flat := make([]domain.Article, 0, countArticles(results))
	for _, r := range results {
		flat = append(flat, r.Articles...)
	}

	out := collapse(flat, urlKey)
	if opts.CollapseTitles {
		out = collapse(out, titleKey)
	}
	return out
}

func countArticles(results []domain.ProviderResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Articles)
	}
	return n
}

// collapse groups articles by key, preserving first-appearance order. Articles
// with an empty key are kept as-is.
func collapse(articles []domain.Article, key func(domain.Article) string) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	groupIdx := make(map[string]int, len(articles))

	for _, a := range articles {
		k := key(a)
		if k == "" {
			out = append(out, a)
			continue
		}
		if i, ok := groupIdx[k]; ok {
			if richer(a, out[i]) {
				out[i] = a
			}
			continue
		}
		groupIdx[k] = len(out)
		out = append(out, a)
	}
	return out
}

// richer reports whether candidate should replace the current group winner.
// Only a strictly longer summary wins, so earlier articles keep ties.
func richer(candidate, current domain.Article) bool {
	return len([]rune(strings.TrimSpace(candidate.Summary))) > len([]rune(strings.TrimSpace(current.Summary)))
}

func urlKey(a domain.Article) string {
	return domain.NormalizeURL(a.URL)
}

func titleKey(a domain.Article) string {
	tokens := relevance.Tokenize(a.Title)
	if len(tokens) < minTitleTokens {
		return ""
	}
	return strings.Join(tokens, " ")
}
