package providers

import (
	"context"
	"sync"
	"testing"

	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }

// mockHTTPClient serves canned bodies keyed by URL; an empty key matches any URL.
type mockHTTPClient struct {
	t      *testing.T
	expect map[string]string
	bodies map[string]string
	status int
	err    error

	mu        sync.Mutex
	urls      []string
	postBody  any
	postCalls int
}

func (m *mockHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	return m.respond(url, headers)
}

func (m *mockHTTPClient) Post(ctx context.Context, url string, headers map[string]string, body any) (httpclient.Response, error) {
	m.mu.Lock()
	m.postBody = body
	m.postCalls++
	m.mu.Unlock()
	return m.respond(url, headers)
}

func (m *mockHTTPClient) respond(url string, headers map[string]string) (httpclient.Response, error) {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	m.mu.Unlock()

	for key, want := range m.expect {
		if got := headers[key]; got != want {
			m.t.Fatalf("expected header %s=%q, got %q", key, want, got)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.bodies[url]
	if !ok {
		body, ok = m.bodies[""]
	}
	if !ok {
		m.t.Fatalf("unexpected request url %q", url)
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return mockResponse{body: []byte(body), statusCode: status}, nil
}

func (m *mockHTTPClient) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.urls))
	copy(out, m.urls)
	return out
}
