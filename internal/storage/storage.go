// Package storage remembers which articles have already been announced so
// repeated warm runs only publish what is new.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// SeenStore records article ids per scope (typically a category). Entries
// expire after the configured retention.
type SeenStore interface {
	// Unseen returns the subset of ids not recorded under scope, in input order.
	Unseen(scope string, ids []string) ([]string, error)
	// Mark records ids under scope.
	Mark(scope string, ids []string) error
	Close() error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ArticleTTL      time.Duration
	CleanupInterval time.Duration
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

const (
	TypeNone  = "none"
	TypeBBolt = "bbolt"

	defaultArticleTTL      = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (SeenStore, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ArticleTTL <= 0 {
		opts.ArticleTTL = defaultArticleTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

func seenKey(scope, id string) []byte {
	return []byte(scope + "/" + id)
}

// noopStore treats everything as new and remembers nothing.
type noopStore struct{}

func (noopStore) Unseen(_ string, ids []string) ([]string, error) {
	return append([]string(nil), ids...), nil
}
func (noopStore) Mark(string, []string) error { return nil }
func (noopStore) Close() error                { return nil }
