package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CPowerMav/PieSS/internal/clock"
)

func newTestLoader(t *testing.T, url string, now time.Time) (*Loader, *Cache, *Store) {
	t.Helper()
	c := NewCache(t.TempDir(), 3)
	s := NewStore()
	var f *Fetcher
	if url != "" {
		f = NewFetcher(url, testLogger)
	}
	l := NewLoader(LoaderConfig{NORADID: 25544, Name: issName, RefreshInterval: 12 * time.Hour},
		f, c, s, clock.NewManual(now), testLogger)
	return l, c, s
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoaderFreshCacheSkipsNetwork(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	srv, hits := countingServer(t, http.StatusOK, issText)
	l, c, s := newTestLoader(t, srv.URL, now)

	if err := c.Write([]byte(issText), now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	es, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if es.Source != SourceCache {
		t.Errorf("source = %q, want cache", es.Source)
	}
	if hits.Load() != 0 {
		t.Errorf("network hit %d times for a fresh cache", hits.Load())
	}
	if s.Get() == nil || s.Get().Entry.NORADID != 25544 {
		t.Error("store not updated")
	}
}

func TestLoaderStaleCacheRefreshes(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	srv, hits := countingServer(t, http.StatusOK, issText)
	l, c, _ := newTestLoader(t, srv.URL, now)

	if err := c.Write([]byte(issText), now.Add(-13*time.Hour)); err != nil {
		t.Fatal(err)
	}

	es, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if es.Source != SourceNetwork || !es.FetchedAt.Equal(now) {
		t.Errorf("got %s @ %v, want network @ %v", es.Source, es.FetchedAt, now)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}

	_, ts, err := c.LoadLatest()
	if err != nil || !ts.Equal(now) {
		t.Errorf("refresh not cached: ts=%v err=%v", ts, err)
	}
}

func TestLoaderStaleCacheFallbackOnFailure(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	srv, _ := countingServer(t, http.StatusServiceUnavailable, "")
	l, c, _ := newTestLoader(t, srv.URL, now)

	stamp := now.Add(-48 * time.Hour)
	if err := c.Write([]byte(issText), stamp); err != nil {
		t.Fatal(err)
	}

	es, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load should fall back to cache: %v", err)
	}
	if es.Source != SourceCache || !es.FetchedAt.Equal(stamp) {
		t.Errorf("got %s @ %v", es.Source, es.FetchedAt)
	}
}

func TestLoaderNoCacheNoNetwork(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	srv, _ := countingServer(t, http.StatusInternalServerError, "")
	l, _, _ := newTestLoader(t, srv.URL, now)

	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestLoaderParseFailure(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	srv, _ := countingServer(t, http.StatusOK, cssName+"\n"+cssLine1+"\n"+cssLine2+"\n")
	l, _, _ := newTestLoader(t, srv.URL, now)

	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrDataUnavailable) || !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrDataUnavailable wrapping ErrParse", err)
	}
}

func TestLoaderFetchDisabled(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	l, c, _ := newTestLoader(t, "", now)

	if _, err := l.Load(context.Background()); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}

	if err := c.Write([]byte(issText), now.Add(-72*time.Hour)); err != nil {
		t.Fatal(err)
	}
	es, err := l.Load(context.Background())
	if err != nil || es.Source != SourceCache {
		t.Fatalf("Load = %+v, %v", es, err)
	}
}
