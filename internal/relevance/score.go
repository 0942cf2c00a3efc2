// Package relevance scores articles against a free-text query and applies
// category keyword filters.
package relevance

import (
	"sort"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

const (
	weightTitle   = 3.0
	weightSummary = 1.5
	weightSource  = 0.5

	bonusPerMatch   = 0.5
	maxBonusMatches = 4
)

// Score rates how well article matches query. Each distinct query token earns
// 3 for a title hit, 1.5 for a summary hit and 0.5 for a source hit; a further
// 0.5 is added per distinct token found in title or summary, counting at most
// four tokens. A query with no tokens scores 0.
func Score(article domain.Article, query string) float64 {
	return scoreTokens(article, distinctTokens(query))
}

func scoreTokens(article domain.Article, queryTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	title := TokenSet(article.Title)
	summary := TokenSet(article.Summary)
	source := TokenSet(article.Source)

	var score float64
	matched := 0
	for _, tok := range queryTokens {
		_, inTitle := title[tok]
		_, inSummary := summary[tok]
		if _, inSource := source[tok]; inSource {
			score += weightSource
		}
		if inTitle {
			score += weightTitle
		}
		if inSummary {
			score += weightSummary
		}
		if inTitle || inSummary {
			matched++
		}
	}
	if matched > maxBonusMatches {
		matched = maxBonusMatches
	}
	return score + float64(matched)*bonusPerMatch
}

// Scored pairs an article with its score.
type Scored struct {
	Article domain.Article
	Score   float64
}

// Rank scores every article against query and sorts by score descending.
// Equal scores keep their input order.
func Rank(articles []domain.Article, query string) []Scored {
	tokens := distinctTokens(query)
	out := make([]Scored, len(articles))
	for i, a := range articles {
		out[i] = Scored{Article: a, Score: scoreTokens(a, tokens)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Articles unwraps a ranked slice.
func Articles(scored []Scored) []domain.Article {
	out := make([]domain.Article, len(scored))
	for i, s := range scored {
		out[i] = s.Article
	}
	return out
}
