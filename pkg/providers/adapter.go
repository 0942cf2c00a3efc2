package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

// Failure classes reported by adapters. They never escape Adapter.Fetch as
// errors; they are attached to the ProviderResult for logging and metrics.
var (
	ErrAdapterTimeout = errors.New("adapter timeout")
	ErrAdapterHTTP    = errors.New("adapter http error")
	ErrAdapterParse   = errors.New("adapter parse error")
)

// DefaultMaxResults caps how many articles one provider call may contribute.
const DefaultMaxResults = 50

// Outcome labels a fetch error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAdapterTimeout):
		return "timeout"
	case errors.Is(err, ErrAdapterHTTP):
		return "http_error"
	case errors.Is(err, ErrAdapterParse):
		return "parse_error"
	default:
		return "error"
	}
}

// Adapter binds a fetcher to its provider config and enforces the adapter
// contract: bounded latency, bounded result size, and no error return.
type Adapter struct {
	cfg        Provider
	fetcher    Fetcher
	timeout    time.Duration
	maxResults int
	log        Logger
}

// AdapterOptions carries the service-wide defaults a provider may override.
type AdapterOptions struct {
	Timeout    time.Duration
	MaxResults int
}

// NewAdapter builds an adapter; zero options fall back to package defaults.
func NewAdapter(cfg Provider, fetcher Fetcher, opts AdapterOptions, log Logger) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &Adapter{
		cfg:        cfg,
		fetcher:    fetcher,
		timeout:    cfg.Timeout(opts.Timeout),
		maxResults: cfg.ResultCap(opts.MaxResults),
		log:        ensureLogger(log),
	}
}

// ID returns the provider id.
func (a *Adapter) ID() string { return a.cfg.ID }

// Provider returns the provider config.
func (a *Adapter) Provider() Provider { return a.cfg }

// Fetch calls the provider under its own timeout. Any failure yields an empty
// result with Err set; it is never returned as an error.
func (a *Adapter) Fetch(ctx context.Context, q Query) domain.ProviderResult {
	result := domain.ProviderResult{Provider: a.cfg.ID, Articles: []domain.Article{}}

	if q.Limit <= 0 || q.Limit > a.maxResults {
		q.Limit = a.maxResults
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	articles, err := a.safeFetch(callCtx, q)
	if err != nil {
		if callCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrAdapterTimeout, a.timeout, err)
		}
		result.Err = err
		a.log.WarnObj("provider fetch failed", "provider_error", map[string]any{
			"provider_id": a.cfg.ID,
			"outcome":     Outcome(err),
			"elapsed_ms":  time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return result
	}

	if len(articles) > a.maxResults {
		articles = articles[:a.maxResults]
	}
	for i := range articles {
		if articles[i].Category == "" && q.Category != domain.CategoryGeneral {
			articles[i].Category = string(q.Category)
		}
	}
	result.Articles = articles

	a.log.DebugObj("provider fetch completed", "provider_result", map[string]any{
		"provider_id": a.cfg.ID,
		"articles":    len(articles),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	return result
}

// safeFetch converts a panicking fetcher into an error so one bad payload
// cannot take down the whole fan-out.
func (a *Adapter) safeFetch(ctx context.Context, q Query) (articles []domain.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: fetcher panic: %v", ErrAdapterParse, r)
		}
	}()
	return a.fetcher.Fetch(ctx, a.cfg, q)
}

// BuildAdapters resolves a fetcher for every usable provider in priority
// order. Providers without credentials are skipped with a warning; an
// unknown provider type is a configuration error.
func BuildAdapters(reg *Registry, fetchers FetcherRegistry, opts AdapterOptions, log Logger) ([]*Adapter, error) {
	log = ensureLogger(log)
	if fetchers == nil {
		fetchers = DefaultFetcherRegistry(nil)
	}

	var adapters []*Adapter
	for _, p := range reg.All() {
		if reason := p.DisabledReason(); reason != "" {
			log.WarnObj("provider adapter disabled", "provider_disabled", map[string]any{
				"provider_id": p.ID,
				"reason":      reason,
			})
			continue
		}
		f, err := fetchers.FetcherFor(p)
		if err != nil {
			return nil, fmt.Errorf("resolve fetcher for provider %s: %w", p.ID, err)
		}
		adapters = append(adapters, NewAdapter(p, f, opts, log))
	}
	return adapters, nil
}
