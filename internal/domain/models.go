package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"strings"
	"time"
)

// Article is the provider-neutral shape every adapter normalizes into.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Source      string    `json:"source"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// ArticleID derives the stable article id from the normalized form of rawURL.
func ArticleID(rawURL string) string {
	sum := sha1.Sum([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// NewArticle fills ID from url and trims the text fields.
func NewArticle(title, summary, url, imageURL, source string, publishedAt time.Time) Article {
	url = strings.TrimSpace(url)
	return Article{
		ID:          ArticleID(url),
		Title:       strings.TrimSpace(title),
		Summary:     strings.TrimSpace(summary),
		URL:         url,
		ImageURL:    strings.TrimSpace(imageURL),
		Source:      strings.TrimSpace(source),
		PublishedAt: publishedAt,
	}
}

// ProviderResult is the ordered output of one adapter call. Articles is empty
// when the provider failed; Err then carries the reason.
type ProviderResult struct {
	Provider string    `json:"provider"`
	Articles []Article `json:"articles"`
	Err      error     `json:"-"`
}
