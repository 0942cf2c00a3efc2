package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/cache"
	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

type fakeResponse struct {
	body   []byte
	status int
}

func (r fakeResponse) Body() []byte    { return r.body }
func (r fakeResponse) StatusCode() int { return r.status }

type fakeClient struct {
	mu     sync.Mutex
	pages  map[string]string
	status int
	err    error
	calls  map[string]int
}

func (f *fakeClient) Get(ctx context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return fakeResponse{body: []byte(f.pages[url]), status: status}, nil
}

func (f *fakeClient) Post(ctx context.Context, url string, headers map[string]string, body any) (httpclient.Response, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func newImageCache(t *testing.T) *cache.TTL[string] {
	t.Helper()
	c, err := cache.NewTTL[string]("images", 100)
	if err != nil {
		t.Fatalf("NewTTL returned error: %v", err)
	}
	return c
}

func article(u string) domain.Article {
	return domain.NewArticle("title", "", u, "", "src", time.Time{})
}

func TestParseImagePrefersOpenGraph(t *testing.T) {
	html := `<html><head>
<meta name="twitter:image" content="https://cdn.example.com/tw.jpg">
<meta property="og:image" content="/img/og.jpg">
</head></html>`
	got, err := parseImage([]byte(html), "https://news.example.com/world/story")
	if err != nil {
		t.Fatalf("parseImage returned error: %v", err)
	}
	if got != "https://news.example.com/img/og.jpg" {
		t.Fatalf("unexpected image %q", got)
	}
}

func TestParseImageFallbacks(t *testing.T) {
	cases := []struct {
		html string
		want string
	}{
		{html: `<meta name="twitter:image" content="https://cdn.example.com/tw.jpg">`, want: "https://cdn.example.com/tw.jpg"},
		{html: `<link rel="image_src" href="pic.png">`, want: "https://news.example.com/world/pic.png"},
		{html: `<title>nothing here</title>`, want: ""},
	}
	for _, tc := range cases {
		got, err := parseImage([]byte(tc.html), "https://news.example.com/world/story")
		if err != nil {
			t.Fatalf("parseImage returned error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("parseImage(%q) = %q, want %q", tc.html, got, tc.want)
		}
	}
}

func TestResolveFillsMissingAndCaches(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://a.example.com/1": `<meta property="og:image" content="https://a.example.com/1.jpg">`,
		"https://a.example.com/2": `<p>no image</p>`,
	}}
	r := NewResolver(client, newImageCache(t), Options{}, nil)

	in := []domain.Article{
		article("https://a.example.com/1"),
		article("https://a.example.com/2"),
		{ID: "x", URL: "https://a.example.com/3", ImageURL: "https://a.example.com/has.jpg"},
	}
	out := r.Resolve(context.Background(), in, 10)
	if out[0].ImageURL != "https://a.example.com/1.jpg" {
		t.Fatalf("expected og image, got %q", out[0].ImageURL)
	}
	if out[1].ImageURL != "" {
		t.Fatalf("expected no image, got %q", out[1].ImageURL)
	}
	if in[0].ImageURL != "" {
		t.Fatalf("expected input slice untouched")
	}
	if client.count("https://a.example.com/3") != 0 {
		t.Fatalf("expected articles with images to be skipped")
	}

	again := r.Resolve(context.Background(), in, 10)
	if again[0].ImageURL != out[0].ImageURL {
		t.Fatalf("expected cached image on second pass")
	}
	if client.count("https://a.example.com/1") != 1 || client.count("https://a.example.com/2") != 1 {
		t.Fatalf("expected hits and misses to be served from cache")
	}
}

func TestResolveRespectsLimit(t *testing.T) {
	client := &fakeClient{pages: map[string]string{}}
	r := NewResolver(client, newImageCache(t), Options{}, nil)

	in := make([]domain.Article, 5)
	for i := range in {
		in[i] = article(fmt.Sprintf("https://b.example.com/%d", i))
	}
	r.Resolve(context.Background(), in, 2)
	for i := 2; i < 5; i++ {
		if client.count(in[i].URL) != 0 {
			t.Fatalf("expected article %d beyond limit to be skipped", i)
		}
	}
}

func TestResolveBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprintf(w, `<meta property="og:image" content="/img%s.jpg">`, req.URL.Path)
	}))
	defer srv.Close()

	r := NewResolver(httpclient.NewRestyClient(5*time.Second), newImageCache(t), Options{Concurrency: 2}, nil)
	in := make([]domain.Article, 6)
	for i := range in {
		in[i] = article(fmt.Sprintf("%s/p%d", srv.URL, i))
	}
	out := r.Resolve(context.Background(), in, 0)

	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", peak.Load())
	}
	for i, a := range out {
		if want := fmt.Sprintf("%s/img/p%d.jpg", srv.URL, i); a.ImageURL != want {
			t.Fatalf("article %d: expected %q, got %q", i, want, a.ImageURL)
		}
	}
}

func TestResolveDoesNotCacheCancelledLookups(t *testing.T) {
	client := &fakeClient{err: context.Canceled}
	store := newImageCache(t)
	r := NewResolver(client, store, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := []domain.Article{article("https://c.example.com/1")}
	r.Resolve(ctx, in, 1)
	if store.Len() != 0 {
		t.Fatalf("expected nothing cached for a cancelled lookup")
	}
}
