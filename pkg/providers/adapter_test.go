package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

type stubFetcher struct {
	id       string
	articles []domain.Article
	err      error
	block    bool
	panicMsg string
	calls    int
	lastQ    Query
}

func (s *stubFetcher) ID() string { return s.id }

func (s *stubFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error) {
	s.calls++
	s.lastQ = q
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.articles, s.err
}

func makeArticles(n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = domain.NewArticle(fmt.Sprintf("story %d", i), "", fmt.Sprintf("https://example.com/%d", i), "", "Example", time.Time{})
	}
	return out
}

func TestAdapterFetchCapsResults(t *testing.T) {
	f := &stubFetcher{id: "stub", articles: makeArticles(80)}
	a := NewAdapter(Provider{ID: "stub"}, f, AdapterOptions{}, nil)

	res := a.Fetch(context.Background(), Query{Category: domain.CategorySports})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Articles) != DefaultMaxResults {
		t.Fatalf("expected %d articles, got %d", DefaultMaxResults, len(res.Articles))
	}
	if f.lastQ.Limit != DefaultMaxResults {
		t.Fatalf("expected limit passed to fetcher, got %d", f.lastQ.Limit)
	}
	if res.Articles[0].Category != string(domain.CategorySports) {
		t.Fatalf("expected category stamped, got %q", res.Articles[0].Category)
	}
}

func TestAdapterFetchProviderOverrides(t *testing.T) {
	f := &stubFetcher{id: "stub", articles: makeArticles(10)}
	a := NewAdapter(Provider{ID: "stub", MaxResults: 3}, f, AdapterOptions{MaxResults: 50}, nil)

	res := a.Fetch(context.Background(), Query{Limit: 20})
	if len(res.Articles) != 3 {
		t.Fatalf("expected provider cap of 3, got %d", len(res.Articles))
	}
}

func TestAdapterFetchTimeout(t *testing.T) {
	f := &stubFetcher{id: "slow", block: true}
	a := NewAdapter(Provider{ID: "slow"}, f, AdapterOptions{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	res := a.Fetch(context.Background(), Query{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected fetch to give up quickly, took %v", elapsed)
	}
	if !errors.Is(res.Err, ErrAdapterTimeout) {
		t.Fatalf("expected ErrAdapterTimeout, got %v", res.Err)
	}
	if res.Articles == nil || len(res.Articles) != 0 {
		t.Fatalf("expected empty non-nil articles, got %v", res.Articles)
	}
	if Outcome(res.Err) != "timeout" {
		t.Fatalf("unexpected outcome %q", Outcome(res.Err))
	}
}

func TestAdapterDeadlineGovernsDefaultClient(t *testing.T) {
	delay := 150 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			_, _ = w.Write([]byte(sampleGoogleNewsRSS))
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	provider := Provider{ID: "google", Type: ProviderTypeGoogleNewsRSS, SourceURL: srv.URL, TimeoutSeconds: 2}
	fetcher := NewGoogleNewsRSSFetcher(DefaultHTTPClient())

	// The provider's own timeout outlives the service default and the reply.
	a := NewAdapter(provider, fetcher, AdapterOptions{Timeout: 50 * time.Millisecond}, nil)
	res := a.Fetch(context.Background(), Query{Category: domain.CategoryGeneral})
	if res.Err != nil {
		t.Fatalf("expected provider timeout to allow the slow reply, got %v", res.Err)
	}
	if len(res.Articles) == 0 {
		t.Fatal("expected articles from the slow feed")
	}

	provider.TimeoutSeconds = 0
	a = NewAdapter(provider, fetcher, AdapterOptions{Timeout: 50 * time.Millisecond}, nil)
	res = a.Fetch(context.Background(), Query{Category: domain.CategoryGeneral})
	if !errors.Is(res.Err, ErrAdapterTimeout) {
		t.Fatalf("expected ErrAdapterTimeout, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "after 50ms") {
		t.Fatalf("expected the adapter deadline in the error, got %v", res.Err)
	}
}

func TestAdapterFetchErrorIsContained(t *testing.T) {
	f := &stubFetcher{id: "bad", err: fmt.Errorf("%w: boom", ErrAdapterParse)}
	a := NewAdapter(Provider{ID: "bad"}, f, AdapterOptions{}, nil)

	res := a.Fetch(context.Background(), Query{})
	if res.Provider != "bad" || len(res.Articles) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if Outcome(res.Err) != "parse_error" {
		t.Fatalf("unexpected outcome %q", Outcome(res.Err))
	}
}

func TestAdapterFetchRecoversPanic(t *testing.T) {
	f := &stubFetcher{id: "panicky", panicMsg: "nil map"}
	a := NewAdapter(Provider{ID: "panicky"}, f, AdapterOptions{}, nil)

	res := a.Fetch(context.Background(), Query{})
	if !errors.Is(res.Err, ErrAdapterParse) {
		t.Fatalf("expected panic converted to ErrAdapterParse, got %v", res.Err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":         nil,
		"timeout":    ErrAdapterTimeout,
		"http_error": fmt.Errorf("wrap: %w", ErrAdapterHTTP),
		"error":      errors.New("other"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestBuildAdaptersSkipsDisabled(t *testing.T) {
	off := false
	t.Setenv("NEWSDESK_TEST_MISSING_KEY", "")
	reg, err := NewRegistry([]Provider{
		{ID: "a", Type: "stub", SourceURL: "https://a.example.com"},
		{ID: "b", Type: "stub", SourceURL: "https://b.example.com", Enabled: &off},
		{ID: "c", Type: "stub", SourceURL: "https://c.example.com", APIKeyEnv: "NEWSDESK_TEST_MISSING_KEY"},
	})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	fetchers := NewTypeFetcherRegistry(map[string]Fetcher{"stub": &stubFetcher{id: "stub"}})
	adapters, err := BuildAdapters(reg, fetchers, AdapterOptions{}, nil)
	if err != nil {
		t.Fatalf("BuildAdapters returned error: %v", err)
	}
	if len(adapters) != 1 || adapters[0].ID() != "a" {
		t.Fatalf("expected only adapter a, got %d adapters", len(adapters))
	}
}

func TestBuildAdaptersUnknownType(t *testing.T) {
	reg, err := NewRegistry([]Provider{{ID: "x", Type: "mystery", SourceURL: "https://x.example.com"}})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	if _, err := BuildAdapters(reg, NewFetcherRegistry(), AdapterOptions{}, nil); err == nil {
		t.Fatalf("expected error for unknown provider type")
	}
}
