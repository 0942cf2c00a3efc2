package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// googleNewsRSSFetcher implements Fetcher for the Google News RSS search feed.
type googleNewsRSSFetcher struct {
	client HTTPClient
}

// NewGoogleNewsRSSFetcher builds the Google News RSS fetcher.
func NewGoogleNewsRSSFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &googleNewsRSSFetcher{client: client}
}

func (f *googleNewsRSSFetcher) ID() string {
	return ProviderTypeGoogleNewsRSS
}

func (f *googleNewsRSSFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeGoogleNewsRSS) {
		return nil, fmt.Errorf("google news fetcher received incompatible provider type %q", cfg.Type)
	}

	feedURL, err := googleNewsFeedURL(cfg, q)
	if err != nil {
		return nil, err
	}

	raw, err := getBody(ctx, f.client, feedURL, cfg.ID, Headers(cfg))
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s rss: %w", ErrAdapterParse, cfg.ID, err)
	}
	return articlesFromFeed(feed, q.Limit), nil
}

// googleNewsFeedURL builds either the top-stories feed (general category, no
// text) or a search feed restricted to the timeframe with "when:Nd".
func googleNewsFeedURL(cfg Provider, q Query) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.SourceURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse %s source_url: %w", cfg.ID, err)
	}

	lang := ConfigString(cfg, ConfigLanguageKey, "en-US")
	country := ConfigString(cfg, ConfigCountryKey, "US")
	params := url.Values{}
	params.Set("hl", lang)
	params.Set("gl", country)
	params.Set("ceid", country+":"+strings.SplitN(lang, "-", 2)[0])

	if q.Text == "" && q.Category == domain.CategoryGeneral {
		base.RawQuery = params.Encode()
		return base.String(), nil
	}

	days := q.Timeframe.Days()
	if days < 1 {
		days = 1
	}
	params.Set("q", fmt.Sprintf("%s when:%dd", q.SearchTerms(), days))
	base.Path = strings.TrimSuffix(base.Path, "/") + "/search"
	base.RawQuery = params.Encode()
	return base.String(), nil
}

func articlesFromFeed(feed *gofeed.Feed, limit int) []domain.Article {
	if feed == nil {
		return nil
	}
	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		if limit > 0 && len(articles) >= limit {
			break
		}

		headline, publisher := splitPublisher(item.Title)
		summary := stripHTML(firstNonEmpty(item.Description, item.Content))
		// Google repeats "headline publisher" as the description; that is not a summary.
		if headline != "" && strings.HasPrefix(summary, headline) {
			summary = ""
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		art := domain.NewArticle(headline, truncateRunes(summary, maxSummaryRunes), item.Link, itemImage(item), publisher, published)
		if art.Source == "" && feed.Title != "" {
			art.Source = feed.Title
		}
		articles = append(articles, art)
	}
	return articles
}

// splitPublisher splits Google's "Headline - Publisher" title format.
func splitPublisher(title string) (string, string) {
	title = strings.TrimSpace(title)
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
