package enrich

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"projector/internal/enrich/omdb"
	"projector/internal/lookupcache"
)

type stubClient struct {
	byTitle func(ctx context.Context, title string, year int) (*omdb.Payload, error)
	search  func(ctx context.Context, title string, year int) ([]omdb.SearchResult, error)
	byID    func(ctx context.Context, imdbID string) (*omdb.Payload, error)

	byTitleCalls int
	searchCalls  int
	byIDCalls    int
}

func (s *stubClient) ByTitle(ctx context.Context, title string, year int) (*omdb.Payload, error) {
	s.byTitleCalls++
	if s.byTitle == nil {
		return nil, nil
	}
	return s.byTitle(ctx, title, year)
}

func (s *stubClient) Search(ctx context.Context, title string, year int) ([]omdb.SearchResult, error) {
	s.searchCalls++
	if s.search == nil {
		return nil, nil
	}
	return s.search(ctx, title, year)
}

func (s *stubClient) ByID(ctx context.Context, imdbID string) (*omdb.Payload, error) {
	s.byIDCalls++
	if s.byID == nil {
		return nil, nil
	}
	return s.byID(ctx, imdbID)
}

func newTestCache(t *testing.T) *lookupcache.Cache {
	t.Helper()
	return lookupcache.New(filepath.Join(t.TempDir(), "cache.json"), 1, nil)
}

func testOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Sleeper:     func(time.Duration) {},
	}
}

func TestEnrichCacheHitSkipsExternalCalls(t *testing.T) {
	cache := newTestCache(t)
	year := 1995
	key := lookupcache.Key("Toy Story", &year)
	if err := cache.Store(lookupcache.Entry{Key: key, Found: true, Payload: &lookupcache.Payload{IMDbID: "tt0114709"}}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	client := &stubClient{}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "Toy Story", &year)
	if result.Kind != KindHit || !result.FromCache {
		t.Fatalf("expected cached hit, got %#v", result)
	}
	if client.byTitleCalls+client.searchCalls+client.byIDCalls != 0 {
		t.Fatal("cache hit must not issue external calls")
	}
}

func TestEnrichReResolvesFoundEntryWithoutPayload(t *testing.T) {
	cache := newTestCache(t)
	year := 1995
	key := lookupcache.Key("Toy Story", &year)
	// A truncated or hand-edited cache file can leave a found marker with no
	// payload behind; it must never surface as a payload-less hit.
	if err := cache.Store(lookupcache.Entry{Key: key, Found: true}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	client := &stubClient{
		byTitle: func(_ context.Context, title string, _ int) (*omdb.Payload, error) {
			return &omdb.Payload{Title: title, Year: "1995", IMDbID: "tt0114709", Response: "True"}, nil
		},
	}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "Toy Story", &year)
	if result.Kind != KindHit || result.FromCache {
		t.Fatalf("expected fresh hit, got %#v", result)
	}
	if result.Payload == nil || result.Payload.IMDbID != "tt0114709" {
		t.Fatalf("expected a resolved payload, got %#v", result.Payload)
	}
	if client.byTitleCalls == 0 {
		t.Fatal("corrupt entry must be resolved externally")
	}

	entry, ok := cache.Lookup(key)
	if !ok || !entry.Found || entry.Payload == nil {
		t.Fatalf("re-resolution should repair the entry, got %#v ok=%v", entry, ok)
	}
}

func TestEnrichCachedMissSkipsExternalCalls(t *testing.T) {
	cache := newTestCache(t)
	key := lookupcache.Key("Obscure Film", nil)
	if err := cache.Store(lookupcache.Entry{Key: key, Found: false}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	client := &stubClient{}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "Obscure Film", nil)
	if result.Kind != KindMiss || !result.FromCache {
		t.Fatalf("expected cached miss, got %#v", result)
	}
	if client.byTitleCalls != 0 {
		t.Fatal("cached miss must not issue external calls")
	}
}

func TestEnrichExactHitIsCached(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{
		byTitle: func(_ context.Context, title string, year int) (*omdb.Payload, error) {
			return &omdb.Payload{
				Title:    title,
				Year:     "1995",
				Director: "Michael Mann",
				Plot:     omdb.NotAvailable,
				IMDbID:   "tt0113277",
				Response: "True",
			}, nil
		},
	}
	enricher := New(client, cache, testOptions(), nil)

	year := 1995
	result := enricher.Enrich(context.Background(), "Heat", &year)
	if result.Kind != KindHit || result.FromCache {
		t.Fatalf("expected fresh hit, got %#v", result)
	}
	if result.Payload.Director != "Michael Mann" {
		t.Fatalf("unexpected payload %#v", result.Payload)
	}
	if result.Payload.Plot != "" {
		t.Fatalf("N/A fields should be unset, got %q", result.Payload.Plot)
	}

	entry, ok := cache.Lookup(lookupcache.Key("Heat", &year))
	if !ok || !entry.Found {
		t.Fatalf("hit should be cached, got %#v ok=%v", entry, ok)
	}
}

func TestEnrichRetryBound(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{
		byTitle: func(context.Context, string, int) (*omdb.Payload, error) {
			return nil, &omdb.StatusError{StatusCode: http.StatusServiceUnavailable}
		},
	}

	var sleeps int
	opts := testOptions()
	opts.Sleeper = func(time.Duration) { sleeps++ }
	enricher := New(client, cache, opts, nil)

	year := 1995
	result := enricher.Enrich(context.Background(), "Heat", &year)
	if result.Kind != KindTransient {
		t.Fatalf("expected transient result, got %#v", result)
	}
	if client.byTitleCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", client.byTitleCalls)
	}
	if sleeps != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", sleeps)
	}
	if client.searchCalls != 0 {
		t.Fatal("transient exhaustion must not fall through to search")
	}

	// Transient failures are never cached.
	if _, ok := cache.Lookup(lookupcache.Key("Heat", &year)); ok {
		t.Fatal("transient failure must not be cached")
	}
}

func TestEnrichSearchFallback(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{
		search: func(_ context.Context, title string, _ int) ([]omdb.SearchResult, error) {
			return []omdb.SearchResult{{Title: title, IMDbID: "tt0113277"}, {Title: title, IMDbID: "tt0091255"}}, nil
		},
		byID: func(_ context.Context, imdbID string) (*omdb.Payload, error) {
			return &omdb.Payload{Title: "Heat", Year: "1995", IMDbID: imdbID, Response: "True"}, nil
		},
	}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "Heat", nil)
	if result.Kind != KindHit {
		t.Fatalf("expected hit via search, got %#v", result)
	}
	if result.Payload.IMDbID != "tt0113277" {
		t.Fatalf("expected first ranked candidate, got %q", result.Payload.IMDbID)
	}
	if client.byTitleCalls != 1 || client.searchCalls != 1 || client.byIDCalls != 1 {
		t.Fatalf("unexpected call counts: %d %d %d", client.byTitleCalls, client.searchCalls, client.byIDCalls)
	}
}

func TestEnrichDefinitiveMissIsCached(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "No Such Film", nil)
	if result.Kind != KindMiss || result.FromCache {
		t.Fatalf("expected fresh miss, got %#v", result)
	}

	entry, ok := cache.Lookup(lookupcache.Key("No Such Film", nil))
	if !ok || entry.Found {
		t.Fatalf("definitive miss should be cached as not-found, got %#v ok=%v", entry, ok)
	}

	// Second call must come from the cache.
	again := enricher.Enrich(context.Background(), "No Such Film", nil)
	if again.Kind != KindMiss || !again.FromCache {
		t.Fatalf("expected cached miss on repeat, got %#v", again)
	}
	if client.byTitleCalls != 1 {
		t.Fatalf("expected no further external calls, got %d", client.byTitleCalls)
	}
}

func TestEnrichUnauthorizedDisablesLookups(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{
		byTitle: func(context.Context, string, int) (*omdb.Payload, error) {
			return nil, omdb.ErrUnauthorized
		},
	}
	enricher := New(client, cache, testOptions(), nil)

	result := enricher.Enrich(context.Background(), "Heat", nil)
	if result.Kind != KindTransient || !errors.Is(result.Err, omdb.ErrUnauthorized) {
		t.Fatalf("expected unauthorized transient result, got %#v", result)
	}
	if !enricher.Disabled() {
		t.Fatal("enricher should be disabled after credential rejection")
	}

	// Subsequent records never reach the service.
	next := enricher.Enrich(context.Background(), "Another Film", nil)
	if next.Kind != KindTransient || !errors.Is(next.Err, ErrLookupsDisabled) {
		t.Fatalf("expected disabled result, got %#v", next)
	}
	if client.byTitleCalls != 1 {
		t.Fatalf("expected a single external call, got %d", client.byTitleCalls)
	}
}

func TestEnrichCallBudget(t *testing.T) {
	cache := newTestCache(t)
	client := &stubClient{
		byTitle: func(_ context.Context, title string, _ int) (*omdb.Payload, error) {
			return &omdb.Payload{Title: title, Year: "2000", IMDbID: "tt0000001", Response: "True"}, nil
		},
	}
	opts := testOptions()
	opts.CallBudget = 1
	enricher := New(client, cache, opts, nil)

	first := enricher.Enrich(context.Background(), "First", nil)
	if first.Kind != KindHit {
		t.Fatalf("expected hit within budget, got %#v", first)
	}

	second := enricher.Enrich(context.Background(), "Second", nil)
	if second.Kind != KindTransient || !errors.Is(second.Err, ErrBudgetExhausted) {
		t.Fatalf("expected budget exhaustion, got %#v", second)
	}
	if client.byTitleCalls != 1 {
		t.Fatalf("expected one external call, got %d", client.byTitleCalls)
	}
}

func TestTitleCandidates(t *testing.T) {
	candidates := titleCandidates("Mission: Impossible")
	if len(candidates) != 2 || candidates[1] != "Mission" {
		t.Fatalf("unexpected candidates %v", candidates)
	}
	if got := titleCandidates("Heat"); len(got) != 1 {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestIsRetriable(t *testing.T) {
	if IsRetriable(nil) {
		t.Fatal("nil error is not retriable")
	}
	if IsRetriable(omdb.ErrUnauthorized) {
		t.Fatal("unauthorized is not retriable")
	}
	if !IsRetriable(&omdb.StatusError{StatusCode: http.StatusTooManyRequests}) {
		t.Fatal("429 should be retriable")
	}
	if !IsRetriable(&omdb.StatusError{StatusCode: http.StatusBadGateway}) {
		t.Fatal("502 should be retriable")
	}
	if IsRetriable(&omdb.StatusError{StatusCode: http.StatusNotFound}) {
		t.Fatal("404 is not retriable")
	}
	if IsRetriable(errors.New("validation error")) {
		t.Fatal("arbitrary errors are not retriable")
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := 500 * time.Millisecond
	maxDelay := 2 * time.Second
	if got := backoffDelay(base, maxDelay, 1); got != base {
		t.Fatalf("attempt 1: got %v", got)
	}
	if got := backoffDelay(base, maxDelay, 2); got != time.Second {
		t.Fatalf("attempt 2: got %v", got)
	}
	if got := backoffDelay(base, maxDelay, 5); got != maxDelay {
		t.Fatalf("attempt 5: got %v", got)
	}
}
