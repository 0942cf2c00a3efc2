package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerAttrPrefix     = "X-Newsdesk-"
	maxErrorBodyBytes    = 512
)

// webhookPublisher posts ranking events as JSON to an HTTP endpoint.
type webhookPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	return &webhookPublisher{
		id:      cfg.ID,
		method:  cfg.HTTP.Method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  httpclient.NewRestyHTTPClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second),
		log:     logger.Ensure(log),
	}, nil
}

func (h *webhookPublisher) ID() string   { return h.id }
func (h *webhookPublisher) Type() string { return TypeHTTP }

// Publish sends evt with its routing attributes as X-Newsdesk-* headers and
// an idempotency key, so receivers can drop redeliveries of the same entry.
func (h *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	req := h.client.R().
		SetContext(ctx).
		SetHeaders(h.headers).
		SetHeaders(eventHeaders(evt)).
		SetHeader("Content-Type", "application/json").
		SetBody(evt)

	resp, err := req.Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("%s %s: %w", h.method, h.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s returned status %d: %s", h.method, h.url, resp.StatusCode(), errorBody(resp.Body()))
	}
	h.log.DebugObj("ranking event posted", "webhook_delivery", map[string]any{
		"sink_id":    h.id,
		"category":   evt.Category,
		"rank":       evt.Rank,
		"article_id": evt.Article.ID,
		"status":     resp.StatusCode(),
	})
	return nil
}

func eventHeaders(evt Event) map[string]string {
	headers := map[string]string{
		headerIdempotencyKey: evt.Category + ":" + evt.Timeframe + ":" + evt.Article.ID,
	}
	for k, v := range evt.Attributes() {
		if v == "" {
			continue
		}
		headers[headerAttrPrefix+strings.ReplaceAll(k, "_", "-")] = v
	}
	return headers
}

func errorBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(body))
}
