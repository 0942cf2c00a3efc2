// Package aggregator answers "what is trending" queries by fanning out to
// every provider adapter, merging and ranking the results, and caching them.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adda-Baaj/newsdesk/internal/cache"
	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/merge"
	"github.com/Adda-Baaj/newsdesk/internal/metrics"
	"github.com/Adda-Baaj/newsdesk/internal/relevance"
	"github.com/Adda-Baaj/newsdesk/pkg/providers"
)

const (
	DefaultCacheTTL     = 24 * time.Hour
	DefaultImageLimit   = 12
	DefaultImageTimeout = 5 * time.Second
)

// Source is one provider adapter. *providers.Adapter satisfies it.
type Source interface {
	ID() string
	Fetch(ctx context.Context, q providers.Query) domain.ProviderResult
}

// ImageResolver fills missing images on the leading articles.
type ImageResolver interface {
	Resolve(ctx context.Context, articles []domain.Article, limit int) []domain.Article
}

// Request is an unvalidated query as it arrives from a caller.
type Request struct {
	Category  string
	Timeframe string
	Query     string
	// MaxAge, when positive, rejects cached results older than it even if
	// their own ttl has not run out.
	MaxAge time.Duration
}

// Result is the ranked article list plus per-provider contribution counts.
type Result struct {
	Items          []domain.Article `json:"items"`
	ProviderCounts map[string]int   `json:"providerCounts"`
	Cached         bool             `json:"cached"`
}

// Empty reports whether no provider produced anything usable.
func (r Result) Empty() bool { return len(r.Items) == 0 }

// Options tunes an Aggregator.
type Options struct {
	CacheTTL     time.Duration
	ImageLimit   int
	// ImageTimeout caps the whole image pass of one aggregate; articles not
	// resolved by then keep an empty image.
	ImageTimeout time.Duration
	Images       ImageResolver
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Aggregator owns the raw result cache. Safe for concurrent use.
type Aggregator struct {
	sources      []Source
	cache        *cache.TTL[Result]
	cacheTTL     time.Duration
	imageLimit   int
	imageTimeout time.Duration
	images       ImageResolver
	metrics      *metrics.Metrics
	now          func() time.Time
	log          logger.Logger
	group        singleflight.Group
}

// New builds an aggregator over sources, in provider priority order.
func New(sources []Source, store *cache.TTL[Result], opts Options, log logger.Logger) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("aggregator requires a result cache")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.ImageLimit <= 0 {
		opts.ImageLimit = DefaultImageLimit
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = DefaultImageTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		sources:      append([]Source(nil), sources...),
		cache:        store,
		cacheTTL:     opts.CacheTTL,
		imageLimit:   opts.ImageLimit,
		imageTimeout: opts.ImageTimeout,
		images:       opts.Images,
		metrics:      opts.Metrics,
		now:          opts.Now,
		log:          logger.Ensure(log),
	}, nil
}

// FromAdapters adapts a provider adapter list to sources.
func FromAdapters(adapters []*providers.Adapter) []Source {
	out := make([]Source, len(adapters))
	for i, a := range adapters {
		out[i] = a
	}
	return out
}

// Sources returns the provider ids in priority order.
func (a *Aggregator) Sources() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ID()
	}
	return ids
}

// Aggregate returns the ranked result for req, from cache when possible. Only
// a malformed request is an error; provider failures just reduce coverage.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (Result, error) {
	cat, err := domain.ParseCategory(req.Category)
	if err != nil {
		return Result{}, err
	}
	tf, err := domain.ParseTimeframe(req.Timeframe)
	if err != nil {
		return Result{}, err
	}

	key := domain.NewQueryKey(cat, tf, req.Query, a.now())
	if res, ok := a.lookup(key.String(), req.MaxAge); ok {
		return res, nil
	}

	// Callers that arrive while the same key is being computed share the
	// run. It is detached from any one caller's cancellation; the adapters'
	// own timeouts bound it.
	v, _, _ := a.group.Do(key.String(), func() (any, error) {
		return a.compute(context.WithoutCancel(ctx), key), nil
	})
	return v.(Result).clone(), nil
}

func (a *Aggregator) lookup(key string, maxAge time.Duration) (Result, bool) {
	var (
		res Result
		ok  bool
	)
	if maxAge > 0 {
		res, ok = a.cache.GetFresh(key, maxAge)
	} else {
		res, ok = a.cache.Get(key)
	}
	a.metrics.ObserveCacheLookup(a.cache.Name(), ok)
	if !ok {
		return Result{}, false
	}
	res = res.clone()
	res.Cached = true
	return res, true
}

func (a *Aggregator) compute(ctx context.Context, key domain.QueryKey) Result {
	start := time.Now()
	q := providers.Query{Category: key.Category, Text: key.Query, Timeframe: key.Timeframe}

	results := a.fanOut(ctx, q)
	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[r.Provider] = len(r.Articles)
	}

	merged := merge.Merge(results)
	recent := withinTimeframe(merged, key.Timeframe, a.now())

	terms := key.Query
	if terms == "" {
		terms = key.Category.Label()
	}
	ranked := relevance.Articles(relevance.Rank(recent, terms))
	items := relevance.FilterTopic(key.Category, ranked)

	if a.images != nil && len(items) > 0 {
		items = a.resolveImages(ctx, items)
	}

	res := Result{Items: items, ProviderCounts: counts}
	if res.Items == nil {
		res.Items = []domain.Article{}
	}

	// Nothing came back, so leave the key open for the next request to retry.
	if !res.Empty() {
		a.cache.Put(key.String(), res, a.cacheTTL)
	}

	elapsed := time.Since(start)
	a.metrics.ObserveAggregate(elapsed)
	a.log.InfoObj("aggregate computed", "aggregate", map[string]any{
		"key":             key.String(),
		"merged":          len(merged),
		"items":           len(res.Items),
		"provider_counts": counts,
		"elapsed_ms":      elapsed.Milliseconds(),
	})
	return res
}

// resolveImages runs the image pass under one deadline so a slow batch of
// article pages cannot hold the response past imageTimeout.
func (a *Aggregator) resolveImages(ctx context.Context, items []domain.Article) []domain.Article {
	ctx, cancel := context.WithTimeout(ctx, a.imageTimeout)
	defer cancel()
	return a.images.Resolve(ctx, items, a.imageLimit)
}

// fanOut calls every source concurrently and waits for all of them. Results
// keep source order so merge priority follows provider priority.
func (a *Aggregator) fanOut(ctx context.Context, q providers.Query) []domain.ProviderResult {
	results := make([]domain.ProviderResult, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			res := src.Fetch(ctx, q)
			if res.Provider == "" {
				res.Provider = src.ID()
			}
			results[i] = res
			a.metrics.ObserveProviderFetch(res.Provider, providers.Outcome(res.Err), len(res.Articles))
		}(i, src)
	}
	wg.Wait()
	return results
}

// withinTimeframe drops articles published before the window. Articles with
// no publish time are kept.
func withinTimeframe(articles []domain.Article, tf domain.Timeframe, now time.Time) []domain.Article {
	cutoff := now.Add(-tf.Window())
	out := articles[:0:0]
	for _, art := range articles {
		if !art.PublishedAt.IsZero() && art.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, art)
	}
	return out
}

// clone copies the slices and map so callers cannot mutate cached state.
func (r Result) clone() Result {
	out := Result{Cached: r.Cached}
	out.Items = append([]domain.Article{}, r.Items...)
	out.ProviderCounts = make(map[string]int, len(r.ProviderCounts))
	for k, v := range r.ProviderCounts {
		out.ProviderCounts[k] = v
	}
	return out
}
