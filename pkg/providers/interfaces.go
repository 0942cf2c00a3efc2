package providers

import (
	"context"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

// Query is what an adapter is asked for. Text may be empty, in which case the
// adapter falls back to the category.
type Query struct {
	Category  domain.Category
	Text      string
	Timeframe domain.Timeframe
	Limit     int
}

// SearchTerms is the free text, or the category label when no text was given.
func (q Query) SearchTerms() string {
	if q.Text != "" {
		return q.Text
	}
	return q.Category.Label()
}

// Fetcher retrieves and normalizes articles for one provider type.
// Concrete implementations live in provider-specific files (e.g., newsdata.go).
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Article, error)
}

// FetcherRegistry resolves the fetcher implementation for a given provider config.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client

// Logger defines the logging surface providers rely on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
