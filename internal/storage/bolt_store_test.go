package storage

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestBolt(t *testing.T, clock *fakeClock, opts Options) *boltStore {
	t.Helper()
	opts.Now = clock.now
	store, err := openBolt(filepath.Join(t.TempDir(), "nested", "seen.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func storedKeys(t *testing.T, b *boltStore) int {
	t.Helper()
	n := 0
	if err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(seenBucket)).Stats().KeyN
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return n
}

func TestBoltStoreMarksAndExpiresArticles(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.November, 17, 0, 0, 0, 0, time.UTC)}
	store := openTestBolt(t, clock, Options{ArticleTTL: time.Hour, CleanupInterval: 24 * time.Hour})

	unseen, err := store.Unseen("sports", []string{"a", "b"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"a", "b"}) {
		t.Fatalf("expected both unseen, got %v err=%v", unseen, err)
	}

	if err := store.Mark("sports", []string{"a"}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	unseen, err = store.Unseen("sports", []string{"a", "b", "c"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"b", "c"}) {
		t.Fatalf("expected b and c unseen, got %v err=%v", unseen, err)
	}

	clock.advance(2 * time.Hour)
	unseen, err = store.Unseen("sports", []string{"a"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"a"}) {
		t.Fatalf("expected expired entry to count as unseen, got %v err=%v", unseen, err)
	}
}

func TestBoltStoreScopesAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	store := openTestBolt(t, clock, Options{})

	if err := store.Mark("sports", []string{"x"}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	unseen, err := store.Unseen("general", []string{"x"})
	if err != nil || len(unseen) != 1 {
		t.Fatalf("expected id unseen in another scope, got %v err=%v", unseen, err)
	}
}

func TestBoltStoreCleanupRemovesExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.November, 17, 0, 0, 0, 0, time.UTC)}
	store := openTestBolt(t, clock, Options{ArticleTTL: time.Hour, CleanupInterval: 3 * time.Hour})

	if err := store.Mark("general", []string{"1", "2", "3", "4"}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	clock.advance(2 * time.Hour)
	if err := store.Mark("general", []string{"5"}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if got := storedKeys(t, store); got != 5 {
		t.Fatalf("expected no cleanup before interval, got %d keys", got)
	}

	clock.advance(2 * time.Hour)
	if _, err := store.Unseen("general", []string{"5"}); err != nil {
		t.Fatalf("Unseen: %v", err)
	}
	if got := storedKeys(t, store); got != 0 {
		t.Fatalf("expected all expired keys removed, got %d", got)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore(TypeNone, "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Mark("general", []string{"x"}); err != nil {
		t.Fatalf("noop store Mark: %v", err)
	}
	unseen, err := store.Unseen("general", []string{"x"})
	if err != nil || len(unseen) != 1 {
		t.Fatalf("expected noop store to report everything unseen, got %v", unseen)
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(TypeBBolt, " ", Options{}); err == nil {
		t.Fatalf("expected error for bbolt without path")
	}
	if _, err := NewStore("redis", "x", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
