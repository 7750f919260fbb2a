package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"projector/internal/enrich/omdb"
	"projector/internal/logging"
	"projector/internal/lookupcache"
)

// ResultKind classifies the outcome of an enrichment attempt.
type ResultKind int

const (
	// KindHit means a payload was resolved, from cache or from the service.
	KindHit ResultKind = iota
	// KindMiss means the service definitively knows nothing about the title.
	KindMiss
	// KindTransient means the lookup failed in a retriable way; the record
	// proceeds unenriched and nothing is cached.
	KindTransient
)

// Result is the outcome of Enrich for one record.
type Result struct {
	Kind      ResultKind
	Payload   *lookupcache.Payload
	FromCache bool
	Err       error
}

// Options configures an Enricher.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Pacing is the minimum spacing between external calls.
	Pacing time.Duration
	// CallBudget bounds external calls per run; 0 means unlimited.
	CallBudget int
	// Sleeper overrides how retry backoff sleeps are performed (tests).
	Sleeper func(time.Duration)
}

// matchStep is one stage of the lookup strategy. A nil payload with a nil
// error means the step found no match and the next step should run.
type matchStep func(ctx context.Context, title string, year int) (*omdb.Payload, error)

// Enricher owns all lookup cache mutation and every outbound service call.
// It is not safe for concurrent use; the pipeline is single-threaded.
type Enricher struct {
	client  omdb.Lookuper
	cache   *lookupcache.Cache
	logger  *slog.Logger
	limiter *rate.Limiter
	sleeper func(time.Duration)

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	budget      int
	calls       int
	disabled    bool

	steps []matchStep
}

// New constructs an Enricher around the given client and cache.
func New(client omdb.Lookuper, cache *lookupcache.Cache, opts Options, logger *slog.Logger) *Enricher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Pacing), 1)
	}

	e := &Enricher{
		client:      client,
		cache:       cache,
		logger:      logging.NewComponentLogger(logger, "enrich"),
		limiter:     limiter,
		sleeper:     opts.Sleeper,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		budget:      opts.CallBudget,
	}
	e.steps = []matchStep{e.exactStep, e.searchStep}
	return e
}

// Enrich resolves the enrichment payload for a normalized title and optional
// year. The cache is consulted first; a cached entry, found or not, returns
// without any external call.
func (e *Enricher) Enrich(ctx context.Context, title string, year *int) Result {
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{Kind: KindMiss}
	}

	key := lookupcache.Key(title, year)
	if entry, ok := e.cache.Lookup(key); ok {
		switch {
		case entry.Found && entry.Payload != nil:
			return Result{Kind: KindHit, Payload: entry.Payload, FromCache: true}
		case !entry.Found:
			return Result{Kind: KindMiss, FromCache: true}
		default:
			// A found marker without a payload is a corrupt entry; fall
			// through and resolve the key again.
			e.logger.Warn("discarding corrupt cache entry",
				logging.String(logging.FieldEventType, "lookupcache_entry_corrupt"),
				logging.String(logging.FieldLookupKey, key))
		}
	}

	lookupYear := 0
	if year != nil {
		lookupYear = *year
	}

	for _, step := range e.steps {
		payload, err := e.runStep(ctx, step, title, lookupYear)
		if err != nil {
			// Transient failures and budget/credential stops are never
			// cached so the next run can retry them.
			return Result{Kind: KindTransient, Err: err}
		}
		if payload == nil {
			continue
		}

		cached := toCachePayload(payload, lookupYear)
		if storeErr := e.cache.Store(lookupcache.Entry{Key: key, Found: true, Payload: cached}); storeErr != nil {
			e.logger.Warn("failed to cache lookup hit",
				logging.String(logging.FieldEventType, "lookupcache_store_failed"),
				logging.Error(storeErr),
				logging.String(logging.FieldLookupKey, key))
		}
		e.logger.Debug("lookup hit",
			logging.String(logging.FieldLookupKey, key),
			logging.String("imdb_id", cached.IMDbID))
		return Result{Kind: KindHit, Payload: cached}
	}

	// Every step came back empty: a definitive miss, cached as such.
	if storeErr := e.cache.Store(lookupcache.Entry{Key: key, Found: false}); storeErr != nil {
		e.logger.Warn("failed to cache lookup miss",
			logging.String(logging.FieldEventType, "lookupcache_store_failed"),
			logging.Error(storeErr),
			logging.String(logging.FieldLookupKey, key))
	}
	e.logger.Debug("lookup miss", logging.String(logging.FieldLookupKey, key))
	return Result{Kind: KindMiss}
}

// Calls returns the number of external calls issued so far this run.
func (e *Enricher) Calls() int { return e.calls }

// Disabled reports whether the service rejected the credential this run.
func (e *Enricher) Disabled() bool { return e.disabled }

// runStep executes one strategy step under the retry policy.
func (e *Enricher) runStep(ctx context.Context, step matchStep, title string, year int) (*omdb.Payload, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		payload, err := step(ctx, title, year)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, omdb.ErrUnauthorized) {
			e.disabled = true
			e.logger.Warn("lookup credential rejected",
				logging.String(logging.FieldEventType, "lookup_unauthorized"),
				logging.String(logging.FieldErrorHint, "check omdb.api_key or daily quota"),
				logging.String(logging.FieldImpact, "remaining records proceed unenriched"))
			return nil, err
		}
		if !IsRetriable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == e.maxAttempts {
			break
		}
		delay := backoffDelay(e.baseDelay, e.maxDelay, attempt)
		e.logger.Debug("retrying lookup",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("lookup failed after %d attempts: %w", e.maxAttempts, lastErr)
}

// exactStep looks the title up directly, first with the year filter, then
// without it when the filtered lookup finds nothing.
func (e *Enricher) exactStep(ctx context.Context, title string, year int) (*omdb.Payload, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	payload, err := e.client.ByTitle(ctx, title, year)
	if err != nil || payload != nil {
		return payload, err
	}
	if year <= 0 {
		return nil, nil
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	return e.client.ByTitle(ctx, title, 0)
}

// searchStep falls back to the ranked search endpoint, taking the first
// candidate. Long subtitled names also get a shortened variant, mirroring
// how catalog titles often truncate the official name.
func (e *Enricher) searchStep(ctx context.Context, title string, year int) (*omdb.Payload, error) {
	for _, candidate := range titleCandidates(title) {
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
		results, err := e.client.Search(ctx, candidate, year)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			continue
		}
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
		payload, err := e.client.ByID(ctx, results[0].IMDbID)
		if err != nil || payload != nil {
			return payload, err
		}
	}
	return nil, nil
}

// acquire enforces the pacing and budget policies before an external call.
func (e *Enricher) acquire(ctx context.Context) error {
	if e.disabled {
		return ErrLookupsDisabled
	}
	if e.budget > 0 && e.calls >= e.budget {
		return ErrBudgetExhausted
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	e.calls++
	return nil
}

func (e *Enricher) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// titleCandidates returns the search variants for a title: the title itself
// and, when it carries a ":" or "-" subtitle separator, the leading part.
func titleCandidates(title string) []string {
	candidates := []string{title}
	if idx := strings.IndexAny(title, ":-–"); idx > 0 {
		if short := strings.TrimSpace(title[:idx]); short != "" && short != title {
			candidates = append(candidates, short)
		}
	}
	return candidates
}

// toCachePayload maps a service payload to cache form, treating the
// service's "N/A" placeholder as unset.
func toCachePayload(payload *omdb.Payload, fallbackYear int) *lookupcache.Payload {
	cached := &lookupcache.Payload{
		Director:  cleanField(payload.Director),
		Plot:      cleanField(payload.Plot),
		BoxOffice: cleanField(payload.BoxOffice),
		IMDbID:    cleanField(payload.IMDbID),
	}
	if year, ok := payload.ParsedYear(); ok {
		cached.Year = year
	} else {
		cached.Year = fallbackYear
	}
	return cached
}

func cleanField(value string) string {
	value = strings.TrimSpace(value)
	if value == omdb.NotAvailable {
		return ""
	}
	return value
}
