package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// newsDataCategories maps our slugs to NewsData.io category names.
var newsDataCategories = map[domain.Category]string{
	domain.CategoryGeneral:       "top",
	domain.CategoryWorld:         "world",
	domain.CategoryBusiness:      "business",
	domain.CategoryTechnology:    "technology",
	domain.CategoryScience:       "science",
	domain.CategoryHealth:        "health",
	domain.CategorySports:        "sports",
	domain.CategoryEntertainment: "entertainment",
	domain.CategoryPolitics:      "politics",
}

// newsDataFetcher implements Fetcher for the NewsData.io REST API.
type newsDataFetcher struct {
	client HTTPClient
}

// NewNewsDataFetcher builds the NewsData.io fetcher.
func NewNewsDataFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &newsDataFetcher{client: client}
}

func (f *newsDataFetcher) ID() string {
	return ProviderTypeNewsData
}

func (f *newsDataFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeNewsData) {
		return nil, fmt.Errorf("newsdata fetcher received incompatible provider type %q", cfg.Type)
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q has no api key", cfg.ID)
	}

	endpoint, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s source_url: %w", cfg.ID, err)
	}
	params := endpoint.Query()
	params.Set("apikey", apiKey)
	params.Set("language", ConfigString(cfg, ConfigLanguageKey, "en"))
	if country := ConfigString(cfg, ConfigCountryKey, ""); country != "" {
		params.Set("country", country)
	}
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if cat, ok := newsDataCategories[q.Category]; ok {
		params.Set("category", cat)
	}
	if size := ConfigInt(cfg, "page_size", 0); size > 0 {
		params.Set("size", strconv.Itoa(size))
	}
	endpoint.RawQuery = params.Encode()

	body, err := getBody(ctx, f.client, endpoint.String(), cfg.ID, Headers(cfg))
	if err != nil {
		return nil, err
	}
	return parseNewsData(body, cfg.ID, q.Limit)
}

func parseNewsData(body []byte, providerID string, limit int) ([]domain.Article, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s returned invalid json: %s", ErrAdapterParse, providerID, responseSnippet(body))
	}
	doc := gjson.ParseBytes(body)
	if status := doc.Get("status").String(); status != "" && status != "success" {
		return nil, fmt.Errorf("%w: %s status %q: %s", ErrAdapterHTTP, providerID, status, doc.Get("results.message").String())
	}
	results := doc.Get("results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: %s response has no results array", ErrAdapterParse, providerID)
	}

	var articles []domain.Article
	results.ForEach(func(_, item gjson.Result) bool {
		if limit > 0 && len(articles) >= limit {
			return false
		}
		link := item.Get("link").String()
		if strings.TrimSpace(link) == "" {
			return true
		}
		source := firstNonEmpty(item.Get("source_name").String(), item.Get("source_id").String())
		summary := stripHTML(firstNonEmpty(item.Get("description").String(), item.Get("content").String()))
		art := domain.NewArticle(
			item.Get("title").String(),
			truncateRunes(summary, maxSummaryRunes),
			link,
			item.Get("image_url").String(),
			source,
			parsePublished(item.Get("pubDate").String()),
		)
		art.Category = item.Get("category.0").String()
		articles = append(articles, art)
		return true
	})
	return articles, nil
}
