package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// checkResponse turns transport errors and non-2xx statuses into ErrAdapterHTTP.
func checkResponse(resp httpclient.Response, err error, providerID string) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %w", ErrAdapterHTTP, providerID, err)
	}
	body := resp.Body()
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d body: %s", ErrAdapterHTTP, providerID, resp.StatusCode(), responseSnippet(body))
	}
	return body, nil
}

func getBody(ctx context.Context, client httpclient.Client, url, providerID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	return checkResponse(resp, err, providerID)
}

// stripHTML renders an HTML snippet as plain text with entities decoded and
// whitespace collapsed. Block elements are treated as word breaks.
func stripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6").AfterHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

const maxSummaryRunes = 600

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// parsePublished tries the layouts providers are known to use; naive times are UTC.
func parsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
