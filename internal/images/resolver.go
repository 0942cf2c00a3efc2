// Package images fills in missing article images from the article page's
// Open Graph and Twitter card tags.
package images

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/newsdesk/internal/cache"
	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/metrics"
	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

const (
	maxHTMLBodyBytes   = 1 << 20 // 1 MiB
	DefaultTTL         = 72 * time.Hour
	DefaultConcurrency = 4
	defaultUserAgent   = "Mozilla/5.0 (compatible; newsdesk/1.0; +https://github.com/Adda-Baaj/newsdesk)"
)

// imageSelectors are tried in order; the first non-empty content wins.
var imageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[property="og:image:url"]`,
	`meta[property="og:image:secure_url"]`,
	`meta[name="twitter:image"]`,
	`meta[name="twitter:image:src"]`,
	`meta[property="twitter:image"]`,
}

// Options tunes a Resolver.
type Options struct {
	TTL         time.Duration
	Concurrency int
	UserAgent   string
	Metrics     *metrics.Metrics
}

// Resolver looks up images for articles that arrived without one. Lookups,
// including ones that found nothing, are cached per article id.
type Resolver struct {
	client      httpclient.Client
	cache       *cache.TTL[string]
	ttl         time.Duration
	concurrency int
	headers     map[string]string
	metrics     *metrics.Metrics
	log         logger.Logger
}

// NewResolver constructs a resolver with the provided HTTP client (or default).
func NewResolver(client httpclient.Client, store *cache.TTL[string], opts Options, log logger.Logger) *Resolver {
	if client == nil {
		client = httpclient.NewRestyClient(10 * time.Second)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	headers := map[string]string{
		"User-Agent": opts.UserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}
	return &Resolver{
		client:      client,
		cache:       store,
		ttl:         opts.TTL,
		concurrency: opts.Concurrency,
		headers:     headers,
		metrics:     opts.Metrics,
		log:         logger.Ensure(log),
	}
}

// Resolve returns a copy of articles where the first limit entries lacking an
// image have been looked up. Articles past limit are returned untouched.
func (r *Resolver) Resolve(ctx context.Context, articles []domain.Article, limit int) []domain.Article {
	out := append([]domain.Article(nil), articles...)
	if limit <= 0 || limit > len(out) {
		limit = len(out)
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < limit; i++ {
		if out[i].ImageURL != "" || out[i].URL == "" {
			continue
		}
		if img, ok := r.cached(out[i].ID); ok {
			out[i].ImageURL = img
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return out
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i].ImageURL = r.lookup(ctx, out[i])
		}(i)
	}
	wg.Wait()
	return out
}

func (r *Resolver) cached(id string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	img, ok := r.cache.Get(id)
	r.metrics.ObserveCacheLookup(r.cache.Name(), ok)
	return img, ok
}

func (r *Resolver) lookup(ctx context.Context, art domain.Article) string {
	img, err := r.fetchImage(ctx, art.URL)
	if err != nil {
		r.log.DebugObj("article image lookup failed", "image_error", map[string]any{
			"article_id": art.ID,
			"url":        art.URL,
			"error":      err.Error(),
		})
		// A cancelled request says nothing about the page; try again next time.
		if ctx.Err() != nil {
			return ""
		}
	}
	if r.cache != nil {
		r.cache.Put(art.ID, img, r.ttl)
	}
	return img
}

func (r *Resolver) fetchImage(ctx context.Context, pageURL string) (string, error) {
	resp, err := r.client.Get(ctx, pageURL, r.headers)
	if err != nil {
		return "", fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return parseImage(body, pageURL)
}

// parseImage extracts the preview image from page markup, resolved against pageURL.
func parseImage(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var raw string
	for _, sel := range imageSelectors {
		if val, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(val) != "" {
			raw = strings.TrimSpace(val)
			break
		}
	}
	if raw == "" {
		if val, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok {
			raw = strings.TrimSpace(val)
		}
	}
	if raw == "" {
		return "", nil
	}
	return resolveURL(pageURL, raw), nil
}

func resolveURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
