package publishers

import (
	"context"

	"github.com/Adda-Baaj/newsdesk/internal/logger"
)

// Publisher sends events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// closer is implemented by publishers holding connections.
type closer interface {
	Close() error
}

// Logger is the service logger; sinks report deliveries through it.
type Logger = logger.Logger
