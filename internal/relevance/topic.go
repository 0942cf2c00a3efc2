package relevance

import (
	"regexp"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// Keyword patterns run against folded (lowercase, accent-free) title+summary text.
var topicPatterns = map[domain.Category]*regexp.Regexp{
	domain.CategorySports: regexp.MustCompile(`\b(sports?|football|soccer|basketball|baseball|hockey|tennis|golf|cricket|rugby|olympics?|athletes?|league|tournament|championship|playoffs?|coach|match|goal|nba|nfl|mlb|nhl|fifa|uefa|ufc|boxing|formula 1|f1|grand prix|world cup|super bowl|stadium|quarterback|striker)\b`),
	domain.CategoryHealth: regexp.MustCompile(`\b(health|healthcare|medical|medicine|hospitals?|doctors?|nurses?|patients?|disease|diseases|virus|vaccines?|vaccination|covid|flu|cancer|diabetes|obesity|nutrition|diet|fitness|wellness|mental health|therapy|clinical|fda|cdc|pandemic|outbreak|surgery|drug|drugs)\b`),
}

// FilterTopic keeps articles whose text matches the category's keyword
// pattern. Categories without a pattern pass through. If filtering would
// leave nothing, the input is returned unfiltered so a too-strict pattern
// degrades to an unfiltered page instead of an empty one.
func FilterTopic(category domain.Category, articles []domain.Article) []domain.Article {
	re, ok := topicPatterns[category]
	if !ok || len(articles) == 0 {
		return articles
	}

	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if MatchesTopic(re, a) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return articles
	}
	return out
}

// MatchesTopic reports whether the folded title or summary of a matches re.
func MatchesTopic(re *regexp.Regexp, a domain.Article) bool {
	return re.MatchString(Fold(a.Title + " " + a.Summary))
}

// HasTopicFilter reports whether category applies a keyword post-filter.
func HasTopicFilter(category domain.Category) bool {
	_, ok := topicPatterns[category]
	return ok
}
