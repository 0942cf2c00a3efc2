package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // dated sitemaps resolve publisher zones on minimal images

	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/relevance"
)

const (
	// ConfigDatedKey enables yyyy/mm/dd query templating of the sitemap URL.
	ConfigDatedKey = "dated"
	// ConfigTimezoneKey names the IANA zone used for the dated URL.
	ConfigTimezoneKey = "timezone"

	maxSitemapIndexDepth = 2
	maxSitemapChildren   = 3
)

// sitemapFetcher reads a publisher's Google News sitemap.
type sitemapFetcher struct {
	client HTTPClient
	now    func() time.Time
}

// NewSitemapFetcher builds a fetcher for Google News sitemap providers.
func NewSitemapFetcher(client HTTPClient) Fetcher {
	return newSitemapFetcherWithClock(client, time.Now)
}

func newSitemapFetcherWithClock(client HTTPClient, now func() time.Time) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if now == nil {
		now = time.Now
	}
	return &sitemapFetcher{client: client, now: now}
}

func (f *sitemapFetcher) ID() string {
	return ProviderTypeNewsSitemap
}

func (f *sitemapFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeNewsSitemap) {
		return nil, fmt.Errorf("sitemap fetcher received incompatible provider type %q", cfg.Type)
	}

	sourceURL := cfg.SourceURL
	if ConfigBool(cfg, ConfigDatedKey, false) {
		var err error
		sourceURL, err = datedSourceURL(sourceURL, ConfigString(cfg, ConfigTimezoneKey, "UTC"), f.now)
		if err != nil {
			return nil, err
		}
	}

	urls, err := f.collect(ctx, cfg, sourceURL, 0)
	if err != nil {
		return nil, err
	}

	articles := buildArticlesFromSitemap(cfg.Name, urls)
	return filterByText(articles, sitemapFilterText(q), q.Limit), nil
}

// sitemapFilterText narrows on the free text, or on the category label when a
// specific category was asked for. General keeps every entry.
func sitemapFilterText(q Query) string {
	if q.Text == "" && (q.Category == "" || q.Category == domain.CategoryGeneral) {
		return ""
	}
	return q.SearchTerms()
}

// collect fetches a urlset, following a sitemapindex a bounded number of levels.
func (f *sitemapFetcher) collect(ctx context.Context, cfg Provider, target string, depth int) ([]sitemapURL, error) {
	raw, err := getBody(ctx, f.client, target, cfg.ID, Headers(cfg))
	if err != nil {
		return nil, err
	}

	doc, err := parseSitemap(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s sitemap: %w", ErrAdapterParse, cfg.ID, err)
	}
	if len(doc.Children) == 0 || depth >= maxSitemapIndexDepth {
		return doc.URLs, nil
	}

	urls := doc.URLs
	for i, child := range doc.Children {
		if i >= maxSitemapChildren {
			break
		}
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		more, err := f.collect(ctx, cfg, loc, depth+1)
		if err != nil {
			return nil, err
		}
		urls = append(urls, more...)
	}
	return urls, nil
}

// datedSourceURL sets yyyy, mm and dd query params to today's date in tz.
func datedSourceURL(raw, tz string, now func() time.Time) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse sitemap source_url: %w", err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", tz, err)
	}

	y, m, d := now().In(loc).Date()
	params := parsed.Query()
	params.Set("yyyy", fmt.Sprintf("%04d", y))
	params.Set("mm", fmt.Sprintf("%02d", int(m)))
	params.Set("dd", fmt.Sprintf("%02d", d))
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}

// sitemapDoc covers both <urlset> and <sitemapindex>; the root name is not checked.
type sitemapDoc struct {
	URLs     []sitemapURL   `xml:"url"`
	Children []sitemapChild `xml:"sitemap"`
}

type sitemapChild struct {
	Loc string `xml:"loc"`
}

type sitemapURL struct {
	Loc     string         `xml:"loc"`
	LastMod string         `xml:"lastmod"`
	News    sitemapNews    `xml:"news"`
	Images  []sitemapImage `xml:"image"`
}

type sitemapNews struct {
	Title           string `xml:"title"`
	PublicationDate string `xml:"publication_date"`
	Keywords        string `xml:"keywords"`
	Publication     struct {
		Name string `xml:"name"`
	} `xml:"publication"`
}

type sitemapImage struct {
	Loc string `xml:"loc"`
}

func parseSitemap(data []byte) (sitemapDoc, error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return sitemapDoc{}, err
	}
	return doc, nil
}

func buildArticlesFromSitemap(fallbackSource string, urls []sitemapURL) []domain.Article {
	articles := make([]domain.Article, 0, len(urls))
	for _, entry := range urls {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		title := strings.TrimSpace(entry.News.Title)
		if title == "" {
			title = loc
		}
		source := firstNonEmpty(entry.News.Publication.Name, fallbackSource)
		published := parsePublished(entry.News.PublicationDate)
		if published.IsZero() {
			published = parsePublished(entry.LastMod)
		}
		var image string
		if len(entry.Images) > 0 {
			image = strings.TrimSpace(entry.Images[0].Loc)
		}
		articles = append(articles, domain.NewArticle(title, strings.TrimSpace(entry.News.Keywords), loc, image, source, published))
	}
	return articles
}

// filterByText keeps entries sharing at least one token with text. Sitemaps
// have no server-side search, so this is the only narrowing they get.
func filterByText(articles []domain.Article, text string, limit int) []domain.Article {
	want := relevance.TokenSet(text)
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if limit > 0 && len(out) >= limit {
			break
		}
		if len(want) > 0 && relevance.Score(a, text) == 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}
