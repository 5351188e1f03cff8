package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(":memory:", ttl, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCacheMissOnEmptyStore(t *testing.T) {
	s := openTestStore(t, time.Hour)
	_, ok, err := s.Get(context.Background(), "https://example.com/p", "ART-001")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("hit on empty store")
	}
}

func TestCachePutThenGet(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Put(ctx, "https://example.com/p", "ART-001", "page text"); err != nil {
		t.Fatal(err)
	}
	content, ok, err := s.Get(ctx, "https://example.com/p", "ART-001")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || content != "page text" {
		t.Errorf("ok=%v content=%q", ok, content)
	}

	// a different article number for the same url is a separate entry
	_, ok, err = s.Get(ctx, "https://example.com/p", "ART-002")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("hit for a different article number")
	}
}

func TestCachePutOverwrites(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Put(ctx, "u", "a", "old"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "u", "a", "new"); err != nil {
		t.Fatal(err)
	}
	content, ok, err := s.Get(ctx, "u", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || content != "new" {
		t.Errorf("ok=%v content=%q", ok, content)
	}
}

func TestCacheStaleEntryIsMiss(t *testing.T) {
	s := openTestStore(t, time.Millisecond)
	ctx := context.Background()

	if err := s.Put(ctx, "u", "a", "soon stale"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	_, ok, err := s.Get(ctx, "u", "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stale entry served as a hit")
	}
}
