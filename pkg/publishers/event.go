package publishers

import (
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// Event announces an article that newly entered a category's ranking.
type Event struct {
	Category   string         `json:"category"`
	Timeframe  string         `json:"timeframe"`
	Rank       int            `json:"rank"`
	Article    domain.Article `json:"article"`
	DetectedAt time.Time      `json:"detected_at"`
}

// NewEvent constructs an Event; rank is the 1-based position in the ranking.
func NewEvent(category, timeframe string, rank int, article domain.Article, at time.Time) Event {
	return Event{
		Category:   category,
		Timeframe:  timeframe,
		Rank:       rank,
		Article:    article,
		DetectedAt: at.UTC(),
	}
}

// Attributes are the routing keys copied onto broker message attributes.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{
		"category":   e.Category,
		"article_id": e.Article.ID,
	}
	if e.Article.Source != "" {
		attrs["source"] = e.Article.Source
	}
	return attrs
}
