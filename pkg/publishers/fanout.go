package publishers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Adda-Baaj/newsdesk/internal/logger"
)

// Fanout delivers each ranking event to every configured sink.
type Fanout struct {
	publishers []Publisher
	log        Logger
}

// NewFanout drops nil sinks. log may be nil.
func NewFanout(pubs []Publisher, log Logger) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			cp = append(cp, p)
		}
	}
	return &Fanout{publishers: cp, log: logger.Ensure(log)}
}

// Publish sends evt to all sinks concurrently and reports how many accepted
// it. A sink failure never stops delivery to the others.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	errs := make([]error, len(f.publishers))
	var wg sync.WaitGroup
	for i, p := range f.publishers {
		wg.Add(1)
		go func(i int, p Publisher) {
			defer wg.Done()
			if err := p.Publish(ctx, evt); err != nil {
				errs[i] = fmt.Errorf("sink %s[%s]: %w", p.Type(), p.ID(), err)
			}
		}(i, p)
	}
	wg.Wait()

	delivered := 0
	for i, err := range errs {
		if err == nil {
			delivered++
			continue
		}
		f.log.WarnObj("ranking event not delivered", "sink_error", map[string]any{
			"sink_id":    f.publishers[i].ID(),
			"category":   evt.Category,
			"rank":       evt.Rank,
			"article_id": evt.Article.ID,
			"error":      err.Error(),
		})
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close releases sinks that hold broker connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		if c, ok := p.(closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s[%s]: %w", p.Type(), p.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
