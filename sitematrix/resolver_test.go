package sitematrix

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
)

type fixtureServer struct {
	*httptest.Server
	hits     atomic.Int32
	failures atomic.Int32
	lastUA   atomic.Value
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()

	body, err := os.ReadFile("testdata/sitematrix.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		fs.lastUA.Store(r.UserAgent())
		if r.URL.Query().Get("action") != "sitematrix" || r.URL.Query().Get("format") != "json" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if fs.failures.Load() > 0 {
			fs.failures.Add(-1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newTestResolver(t *testing.T, fs *fixtureServer, opts ...Option) *Resolver {
	t.Helper()

	base := []Option{
		WithEndpoint(fs.URL + "/w/api.php"),
		WithHTTPClient(fs.Client()),
		WithRateLimit(0, 0),
		WithLogger(zaptest.NewLogger(t)),
	}
	return New(append(base, opts...)...)
}

func TestDBName(t *testing.T) {
	fs := newFixtureServer(t)
	resolver := newTestResolver(t, fs)

	tests := []struct {
		domain string
		want   string
	}{
		{domain: "en.wikipedia.org", want: "enwiki"},
		{domain: "https://en.wikipedia.org", want: "enwiki"},
		{domain: "en.wikipedia.org/wiki/Foo", want: "enwiki"},
		{domain: "www.wikidata.org", want: "wikidatawiki"},
		{domain: "http://commons.wikimedia.org", want: "commonswiki"},
		{domain: "en.wikisource.org/wiki/Article", want: "enwikisource"},
		{domain: "https://wikimania2018.wikimedia.org", want: "wikimania2018wiki"},
		{domain: "de.wikiquote.org", want: "dewikiquote"},
	}

	for _, tc := range tests {
		t.Run(tc.domain, func(t *testing.T) {
			got, err := resolver.DBName(context.Background(), tc.domain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if hits := fs.hits.Load(); hits != 1 {
		t.Fatalf("expected a single fetch for all lookups, got %d", hits)
	}
}

func TestDBNameUnknownDomain(t *testing.T) {
	fs := newFixtureServer(t)
	resolver := newTestResolver(t, fs)

	_, err := resolver.DBName(context.Background(), "toolforge.org")
	if !errors.Is(err, ErrUnknownDatabase) {
		t.Fatalf("expected ErrUnknownDatabase, got %v", err)
	}
	if !strings.Contains(err.Error(), "toolforge.org") {
		t.Fatalf("expected error to mention the input, got %q", err)
	}
}

func TestFailedFetchIsNotCached(t *testing.T) {
	fs := newFixtureServer(t)
	fs.failures.Store(1)
	resolver := newTestResolver(t, fs)

	_, err := resolver.DBName(context.Background(), "en.wikipedia.org")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError with 503, got %v", err)
	}

	got, err := resolver.DBName(context.Background(), "en.wikipedia.org")
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if got != "enwiki" {
		t.Fatalf("expected enwiki, got %s", got)
	}
	if hits := fs.hits.Load(); hits != 2 {
		t.Fatalf("expected two fetches, got %d", hits)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	fs := newFixtureServer(t)
	resolver := newTestResolver(t, fs)
	fs.Close()

	if _, err := resolver.DBName(context.Background(), "en.wikipedia.org"); err == nil {
		t.Fatalf("expected error from closed server")
	}
}

func TestConcurrentFirstLookupsShareFetch(t *testing.T) {
	fs := newFixtureServer(t)
	resolver := newTestResolver(t, fs)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.DBName(context.Background(), "en.wikipedia.org"); err != nil {
				t.Errorf("DBName failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if hits := fs.hits.Load(); hits != 1 {
		t.Fatalf("expected a single fetch, got %d", hits)
	}
}

func TestSharedCacheAcrossResolvers(t *testing.T) {
	fs := newFixtureServer(t)
	cache := NewMemoryCache()

	first := newTestResolver(t, fs, WithCache(cache))
	second := newTestResolver(t, fs, WithCache(cache))

	if _, err := first.DBName(context.Background(), "en.wikipedia.org"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := second.DBName(context.Background(), "www.wikidata.org"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits := fs.hits.Load(); hits != 1 {
		t.Fatalf("expected a single fetch, got %d", hits)
	}
}

func TestResetRefetches(t *testing.T) {
	fs := newFixtureServer(t)
	resolver := newTestResolver(t, fs)

	if _, err := resolver.Table(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolver.Reset()
	if _, err := resolver.Table(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits := fs.hits.Load(); hits != 2 {
		t.Fatalf("expected two fetches, got %d", hits)
	}
}

func TestUserAgentHeader(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		fs := newFixtureServer(t)
		if _, err := newTestResolver(t, fs).Table(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fs.lastUA.Load(); got != DefaultUserAgent {
			t.Fatalf("expected %q, got %q", DefaultUserAgent, got)
		}
	})

	t.Run("custom", func(t *testing.T) {
		fs := newFixtureServer(t)
		if _, err := newTestResolver(t, fs, WithUserAgent("mytool/1.0")).Table(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fs.lastUA.Load(); got != "mytool/1.0" {
			t.Fatalf("expected mytool/1.0, got %q", got)
		}
	})
}

func TestRateLimitRejectsRapidRefetch(t *testing.T) {
	fs := newFixtureServer(t)
	fs.failures.Store(10)
	resolver := newTestResolver(t, fs, WithRateLimit(0.001, 1))

	var httpErr *HTTPError
	if _, err := resolver.Table(context.Background()); !errors.As(err, &httpErr) {
		t.Fatalf("expected first fetch to fail with HTTPError, got %v", err)
	}
	if _, err := resolver.Table(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if hits := fs.hits.Load(); hits != 1 {
		t.Fatalf("expected limiter to block the second request, got %d hits", hits)
	}
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	body, err := os.ReadFile("testdata/sitematrix.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	var hits atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(arrived)
		}
		<-release
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	resolver := New(
		WithEndpoint(srv.URL+"/w/api.php"),
		WithHTTPClient(srv.Client()),
		WithRateLimit(0, 0),
		WithLogger(zaptest.NewLogger(t)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.DBName(ctx, "en.wikipedia.org")
		firstErr <- err
	}()

	<-arrived
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	// Joining the flight or reading the cache, this caller makes no new request.
	secondErr := make(chan error, 1)
	var got string
	go func() {
		var err error
		got, err = resolver.DBName(context.Background(), "en.wikipedia.org")
		secondErr <- err
	}()

	close(release)
	if err := <-secondErr; err != nil {
		t.Fatalf("live caller failed: %v", err)
	}
	if got != "enwiki" {
		t.Fatalf("expected enwiki, got %q", got)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single fetch, got %d", n)
	}
}
