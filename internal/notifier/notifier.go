// Package notifier announces articles that newly entered a category's ranking.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/storage"
	"github.com/Adda-Baaj/newsdesk/pkg/publishers"
)

// DefaultTopN is how many leading articles are considered per run.
const DefaultTopN = 10

// EventPublisher publishes an event to every sink and reports how many accepted it.
// *publishers.Fanout satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
}

// Report summarizes one Notify call.
type Report struct {
	Considered int `json:"considered"`
	New        int `json:"new"`
	Published  int `json:"published"`
	Failed     int `json:"failed"`
}

// Options tunes a Notifier.
type Options struct {
	TopN int
	Now  func() time.Time
}

// Notifier publishes unseen articles and records them in the seen store.
type Notifier struct {
	store storage.SeenStore
	pub   EventPublisher
	topN  int
	now   func() time.Time
	log   logger.Logger
}

// New wires a notifier. A nil store announces every article on every run.
func New(store storage.SeenStore, pub EventPublisher, opts Options, log logger.Logger) *Notifier {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{
		store: store,
		pub:   pub,
		topN:  opts.TopN,
		now:   opts.Now,
		log:   logger.Ensure(log),
	}
}

// Enabled reports whether any sink is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.pub != nil && n.pub.Size() > 0
}

// Notify publishes the leading items of a ranking that the store has not seen
// under category. An article is marked seen once at least one sink accepted it.
func (n *Notifier) Notify(ctx context.Context, category, timeframe string, items []domain.Article) (Report, error) {
	var report Report
	if !n.Enabled() {
		return report, nil
	}

	if len(items) > n.topN {
		items = items[:n.topN]
	}
	report.Considered = len(items)

	fresh, err := n.filterUnseen(category, items)
	if err != nil {
		return report, err
	}
	report.New = len(fresh)

	detectedAt := n.now()
	var (
		errs   []error
		marked []string
	)
	for _, c := range fresh {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		evt := publishers.NewEvent(category, timeframe, c.rank, c.article, detectedAt)
		ok, err := n.pub.Publish(ctx, evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish article %s: %w", c.article.ID, err))
		}
		if ok == 0 {
			report.Failed++
			continue
		}
		report.Published++
		marked = append(marked, c.article.ID)
	}

	if n.store != nil && len(marked) > 0 {
		if err := n.store.Mark(category, marked); err != nil {
			errs = append(errs, fmt.Errorf("mark seen articles: %w", err))
		}
	}

	n.log.InfoObj("ranking changes announced", "notify_result", map[string]any{
		"category":   category,
		"timeframe":  timeframe,
		"considered": report.Considered,
		"new":        report.New,
		"published":  report.Published,
		"failed":     report.Failed,
	})
	return report, errors.Join(errs...)
}

type candidate struct {
	rank    int
	article domain.Article
}

func (n *Notifier) filterUnseen(category string, items []domain.Article) ([]candidate, error) {
	all := make([]candidate, len(items))
	ids := make([]string, len(items))
	for i, a := range items {
		all[i] = candidate{rank: i + 1, article: a}
		ids[i] = a.ID
	}
	if n.store == nil {
		return all, nil
	}

	unseen, err := n.store.Unseen(category, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup seen articles: %w", err)
	}
	keep := make(map[string]struct{}, len(unseen))
	for _, id := range unseen {
		keep[id] = struct{}{}
	}

	out := make([]candidate, 0, len(unseen))
	for _, c := range all {
		if _, ok := keep[c.article.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
