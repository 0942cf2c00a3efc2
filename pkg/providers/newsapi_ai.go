package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// newsAPIAICategories maps our slugs to Event Registry category URIs.
var newsAPIAICategories = map[domain.Category]string{
	domain.CategoryBusiness:      "news/Business",
	domain.CategoryTechnology:    "news/Technology",
	domain.CategoryScience:       "news/Science",
	domain.CategoryHealth:        "news/Health",
	domain.CategorySports:        "news/Sports",
	domain.CategoryEntertainment: "news/Arts_and_Entertainment",
	domain.CategoryPolitics:      "news/Politics",
}

// newsAPIAIFetcher implements Fetcher for NewsAPI.ai (Event Registry) getArticles.
type newsAPIAIFetcher struct {
	client HTTPClient
	now    func() time.Time
}

// NewNewsAPIAIFetcher builds the NewsAPI.ai fetcher.
func NewNewsAPIAIFetcher(client HTTPClient) Fetcher {
	return newNewsAPIAIFetcherWithClock(client, time.Now)
}

func newNewsAPIAIFetcherWithClock(client HTTPClient, now func() time.Time) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if now == nil {
		now = time.Now
	}
	return &newsAPIAIFetcher{client: client, now: now}
}

func (f *newsAPIAIFetcher) ID() string {
	return ProviderTypeNewsAPIAI
}

func (f *newsAPIAIFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeNewsAPIAI) {
		return nil, fmt.Errorf("newsapi.ai fetcher received incompatible provider type %q", cfg.Type)
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q has no api key", cfg.ID)
	}

	resp, err := f.client.Post(ctx, cfg.SourceURL, Headers(cfg), f.requestBody(cfg, q, apiKey))
	body, err := checkResponse(resp, err, cfg.ID)
	if err != nil {
		return nil, err
	}
	return parseNewsAPIAI(body, cfg.ID, q.Limit)
}

func (f *newsAPIAIFetcher) requestBody(cfg Provider, q Query, apiKey string) map[string]any {
	count := q.Limit
	if count <= 0 || count > 100 {
		count = 100
	}
	body := map[string]any{
		"action":            "getArticles",
		"resultType":        "articles",
		"articlesPage":      1,
		"articlesCount":     count,
		"articlesSortBy":    "date",
		"articlesSortByAsc": false,
		"dataType":          []string{"news"},
		"lang":              ConfigString(cfg, ConfigLanguageKey, "eng"),
		"dateStart":         f.now().UTC().Add(-q.Timeframe.Window()).Format("2006-01-02"),
		"apiKey":            apiKey,
	}
	if q.Text != "" {
		body["keyword"] = q.Text
	}
	if uri, ok := newsAPIAICategories[q.Category]; ok {
		body["categoryUri"] = uri
	} else if q.Text == "" && q.Category != domain.CategoryGeneral {
		body["keyword"] = q.Category.Label()
	}
	return body
}

func parseNewsAPIAI(body []byte, providerID string, limit int) ([]domain.Article, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s returned invalid json: %s", ErrAdapterParse, providerID, responseSnippet(body))
	}
	doc := gjson.ParseBytes(body)
	if msg := doc.Get("error").String(); msg != "" {
		return nil, fmt.Errorf("%w: %s error: %s", ErrAdapterHTTP, providerID, msg)
	}
	results := doc.Get("articles.results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: %s response has no articles.results array", ErrAdapterParse, providerID)
	}

	var articles []domain.Article
	results.ForEach(func(_, item gjson.Result) bool {
		if limit > 0 && len(articles) >= limit {
			return false
		}
		link := item.Get("url").String()
		if strings.TrimSpace(link) == "" {
			return true
		}
		published := parsePublished(item.Get("dateTimePub").String())
		if published.IsZero() {
			published = parsePublished(item.Get("dateTime").String())
		}
		articles = append(articles, domain.NewArticle(
			item.Get("title").String(),
			truncateRunes(stripHTML(item.Get("body").String()), maxSummaryRunes),
			link,
			item.Get("image").String(),
			item.Get("source.title").String(),
			published,
		))
		return true
	})
	return articles, nil
}
