package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/storage"
	"github.com/Adda-Baaj/newsdesk/pkg/publishers"
)

// fakePublisher records published events and can reject specific articles.
type fakePublisher struct {
	mu      sync.Mutex
	sinks   int
	events  []publishers.Event
	errOnID string
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if evt.Article.ID == f.errOnID {
		return 0, errors.New("boom")
	}
	return f.sinks, nil
}

func (f *fakePublisher) Size() int { return f.sinks }

// fakeStore tracks seen ids per scope.
type fakeStore struct {
	seen    map[string]bool
	failErr error
}

func (f *fakeStore) Unseen(scope string, ids []string) ([]string, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	var out []string
	for _, id := range ids {
		if !f.seen[scope+"/"+id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) Mark(scope string, ids []string) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	for _, id := range ids {
		f.seen[scope+"/"+id] = true
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func articles(ids ...string) []domain.Article {
	out := make([]domain.Article, len(ids))
	for i, id := range ids {
		out[i] = domain.Article{ID: id, Title: "title " + id}
	}
	return out
}

func fixedNow() time.Time { return time.Date(2025, 11, 17, 8, 0, 0, 0, time.UTC) }

func TestNotifyPublishesUnseenArticlesOnly(t *testing.T) {
	store := &fakeStore{seen: map[string]bool{"sports/a1": true}}
	pub := &fakePublisher{sinks: 1}
	n := New(store, pub, Options{Now: fixedNow}, logger.NopLogger{})

	report, err := n.Notify(context.Background(), "sports", "24h", articles("a1", "a2", "a3"))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if report.Considered != 3 || report.New != 2 || report.Published != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].Article.ID != "a2" || pub.events[0].Rank != 2 {
		t.Fatalf("unexpected first event %+v", pub.events[0])
	}
	if pub.events[1].Rank != 3 || pub.events[1].Category != "sports" || pub.events[1].Timeframe != "24h" {
		t.Fatalf("unexpected second event %+v", pub.events[1])
	}
	if !pub.events[0].DetectedAt.Equal(fixedNow()) {
		t.Fatalf("DetectedAt = %v", pub.events[0].DetectedAt)
	}
	if !store.seen["sports/a2"] || !store.seen["sports/a3"] {
		t.Fatalf("published articles not marked: %v", store.seen)
	}
}

func TestNotifySecondRunIsQuiet(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{sinks: 2}
	n := New(store, pub, Options{}, nil)

	if _, err := n.Notify(context.Background(), "health", "48h", articles("x", "y")); err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	report, err := n.Notify(context.Background(), "health", "48h", articles("x", "y"))
	if err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	if report.New != 0 || len(pub.events) != 2 {
		t.Fatalf("second run should publish nothing, report=%+v events=%d", report, len(pub.events))
	}

	// Seen ids are scoped by category.
	report, err = n.Notify(context.Background(), "world", "48h", articles("x"))
	if err != nil {
		t.Fatalf("other category Notify: %v", err)
	}
	if report.Published != 1 {
		t.Fatalf("expected x to be new under world, got %+v", report)
	}
}

func TestNotifyDoesNotMarkFailedArticles(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{sinks: 1, errOnID: "bad"}
	n := New(store, pub, Options{}, nil)

	report, err := n.Notify(context.Background(), "sports", "24h", articles("good", "bad"))
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error mentioning bad article, got %v", err)
	}
	if report.Published != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if store.seen["sports/bad"] {
		t.Fatal("failed article must stay unseen so the next run retries it")
	}
	if !store.seen["sports/good"] {
		t.Fatal("successful article not marked")
	}
}

func TestNotifyLimitsToTopN(t *testing.T) {
	pub := &fakePublisher{sinks: 1}
	n := New(nil, pub, Options{TopN: 2}, nil)

	report, err := n.Notify(context.Background(), "general", "24h", articles("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if report.Considered != 2 || len(pub.events) != 2 {
		t.Fatalf("expected only top 2, report=%+v", report)
	}
}

func TestNotifyWithoutSinksIsNoop(t *testing.T) {
	store := &fakeStore{}
	n := New(store, publishers.NewFanout(nil, nil), Options{}, nil)
	if n.Enabled() {
		t.Fatal("notifier without sinks should be disabled")
	}

	report, err := n.Notify(context.Background(), "sports", "24h", articles("a"))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if report != (Report{}) || len(store.seen) != 0 {
		t.Fatalf("expected no work, got %+v", report)
	}
}

func TestNotifyPropagatesStoreErrors(t *testing.T) {
	pub := &fakePublisher{sinks: 1}
	n := New(&fakeStore{failErr: errors.New("disk gone")}, pub, Options{}, nil)

	if _, err := n.Notify(context.Background(), "sports", "24h", articles("a")); err == nil {
		t.Fatal("expected store error")
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing should be published when the store lookup fails")
	}
}

func TestNotifyWithBoltStore(t *testing.T) {
	store, err := storage.NewStore(storage.TypeBBolt, filepath.Join(t.TempDir(), "seen.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	pub := &fakePublisher{sinks: 1}
	n := New(store, pub, Options{}, nil)

	for i := 0; i < 2; i++ {
		if _, err := n.Notify(context.Background(), "technology", "7d", articles("k1", "k2")); err != nil {
			t.Fatalf("Notify run %d: %v", i, err)
		}
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events across both runs, got %d", len(pub.events))
	}
}
