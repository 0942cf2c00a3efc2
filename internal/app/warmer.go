package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adda-Baaj/newsdesk/internal/aggregator"
	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/notifier"
)

// Aggregator is the query surface the warmer drives.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregator.Request) (aggregator.Result, error)
}

// Notifier announces new ranking entries after a warm run.
type Notifier interface {
	Notify(ctx context.Context, category, timeframe string, items []domain.Article) (notifier.Report, error)
}

// Warmer refreshes the configured categories on a cron schedule so user
// requests find a warm cache.
type Warmer struct {
	cron       *cron.Cron
	agg        Aggregator
	notify     Notifier
	categories []string
	maxAge     time.Duration
	log        logger.Logger

	mu  sync.Mutex
	ctx context.Context
	wg  sync.WaitGroup
}

// NewWarmer schedules a warm run on schedule (standard 5-field cron). notify may be nil.
func NewWarmer(schedule string, agg Aggregator, notify Notifier, categories []string, maxAge time.Duration, log logger.Logger) (*Warmer, error) {
	if agg == nil {
		return nil, fmt.Errorf("warmer requires an aggregator")
	}
	log = logger.Ensure(log)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	w := &Warmer{
		cron:       c,
		agg:        agg,
		notify:     notify,
		categories: append([]string(nil), categories...),
		maxAge:     maxAge,
		log:        log,
		ctx:        context.Background(),
	}

	if _, err := c.AddFunc(schedule, w.scheduled); err != nil {
		return nil, fmt.Errorf("parse warm_cron %q: %w", schedule, err)
	}
	return w, nil
}

// Start runs the schedule plus one immediate pass. Runs stop when ctx ends.
func (w *Warmer) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.cron.Start()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.RunOnce(ctx)
	}()
}

// Stop halts the schedule and waits for running passes to finish, including
// the one kicked off by Start.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.wg.Wait()
}

func (w *Warmer) scheduled() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	w.RunOnce(ctx)
}

// RunOnce warms every category in order and hands the rankings to the notifier.
func (w *Warmer) RunOnce(ctx context.Context) {
	start := time.Now()
	timeframe := string(domain.DefaultTimeframe)
	warmed := 0

	for _, cat := range w.categories {
		if ctx.Err() != nil {
			break
		}
		res, err := w.agg.Aggregate(ctx, aggregator.Request{
			Category:  cat,
			Timeframe: timeframe,
			MaxAge:    w.maxAge,
		})
		if err != nil {
			w.log.ErrorObj("warm category failed", "warm_error", map[string]any{
				"category": cat,
				"error":    err.Error(),
			})
			continue
		}
		warmed++
		w.log.DebugObj("category warmed", "warm_result", map[string]any{
			"category": cat,
			"items":    len(res.Items),
			"cached":   res.Cached,
		})

		if w.notify == nil || res.Empty() {
			continue
		}
		if _, err := w.notify.Notify(ctx, cat, timeframe, res.Items); err != nil {
			w.log.ErrorObj("notify failed", "notify_error", map[string]any{
				"category": cat,
				"error":    err.Error(),
			})
		}
	}

	w.log.InfoObj("warm run completed", "warm_meta", map[string]any{
		"categories": len(w.categories),
		"warmed":     warmed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}
