package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/config"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Top stories - Google News</title>
    <item>
      <title>Markets rally on rate cut hopes - Reuters</title>
      <link>https://www.reuters.com/markets/rally?utm_source=rss</link>
      <description>Stocks climbed across Asia and Europe.</description>
    </item>
    <item>
      <title>Markets rally on rate cut hopes - Reuters</title>
      <link>https://www.reuters.com/markets/rally</link>
    </item>
    <item>
      <title>New telescope images released - BBC</title>
      <link>https://www.bbc.co.uk/news/science-1</link>
    </item>
  </channel>
</rss>`

func writeProviders(t *testing.T, feedURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	body := fmt.Sprintf(`providers:
  - id: google
    name: Google News
    type: google_news_rss
    source_url: %s
  - id: newsdata
    name: NewsData
    type: newsdata
    api_key_env: NEWSDESK_TEST_MISSING_KEY
`, feedURL)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	return path
}

func testConfig(providersFile string) *config.Config {
	return &config.Config{
		AppName:            "newsdesk",
		Env:                "test",
		HTTPAddr:           "127.0.0.1:0",
		ProvidersFile:      providersFile,
		ProviderTimeout:    2 * time.Second,
		ProviderMaxResults: 50,
		RawCacheTTL:        time.Hour,
		ImageCacheTTL:      time.Hour,
		CacheMaxEntries:    16,
		WarmCron:           "*/30 * * * *",
		WarmMaxAge:         time.Minute,
		StorageType:        "none",
	}
}

type apiBody struct {
	Items []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Source string `json:"source"`
	} `json:"items"`
	ProviderCounts map[string]int `json:"providerCounts"`
	Cached         bool           `json:"cached"`
}

func fetchNews(t *testing.T, h http.Handler, target string) apiBody {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d: %s", target, rec.Code, rec.Body.String())
	}
	var body apiBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestServerServesAggregatedNews(t *testing.T) {
	var hits atomic.Int32
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer feed.Close()

	srv, err := NewServer(context.Background(), testConfig(writeProviders(t, feed.URL)), logger.NopLogger{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.close()

	first := fetchNews(t, srv.Handler(), "/api/news")
	if first.Cached {
		t.Fatal("first request should not be cached")
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected duplicate links to collapse into 2 items, got %+v", first.Items)
	}
	if first.Items[0].Source != "Reuters" {
		t.Fatalf("unexpected first item %+v", first.Items[0])
	}
	// Providers without credentials are not part of the fan-out.
	if len(first.ProviderCounts) != 1 || first.ProviderCounts["google"] != 3 {
		t.Fatalf("providerCounts = %v", first.ProviderCounts)
	}

	second := fetchNews(t, srv.Handler(), "/api/news?limit=1")
	if !second.Cached || len(second.Items) != 1 {
		t.Fatalf("expected cached single item, got %+v", second)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream fetch, got %d", hits.Load())
	}
}

func TestNewServerRequiresProvidersFile(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := NewServer(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing providers file")
	}
	if _, err := NewServer(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewServerWiresWarmerAndPublishing(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	defer feed.Close()

	dir := t.TempDir()
	pubFile := filepath.Join(dir, "publishers.yaml")
	pubBody := fmt.Sprintf(`publishers:
  - id: digest-webhook
    type: http
    http:
      url: %s/hook
`, feed.URL)
	if err := os.WriteFile(pubFile, []byte(pubBody), 0o600); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}

	cfg := testConfig(writeProviders(t, feed.URL))
	cfg.PublishersFile = pubFile
	cfg.WarmCategories = []string{"general"}
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(dir, "seen.db")
	cfg.StorageTTL = time.Hour
	cfg.StorageCleanupInterval = time.Hour

	srv, err := NewServer(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.close()

	if srv.warmer == nil {
		t.Fatal("warmer not configured")
	}
	if srv.fanout.Size() != 1 {
		t.Fatalf("expected 1 publisher, got %d", srv.fanout.Size())
	}
	if srv.store == nil {
		t.Fatal("seen store not configured")
	}
}

func TestServerRunShutsDownOnCancel(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	defer feed.Close()

	srv, err := NewServer(context.Background(), testConfig(writeProviders(t, feed.URL)), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
