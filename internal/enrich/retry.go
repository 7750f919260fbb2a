package enrich

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"projector/internal/enrich/omdb"
)

// Retry and pacing defaults. Transient failures are retried with exponential
// backoff; definitive responses and credential rejections never are.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// ErrBudgetExhausted marks the per-run external call budget as spent.
// Remaining records proceed unenriched; nothing is cached.
var ErrBudgetExhausted = errors.New("enrich: call budget exhausted")

// ErrLookupsDisabled is returned once the service has rejected the
// credential; no further external calls are attempted this run.
var ErrLookupsDisabled = errors.New("enrich: lookups disabled after credential rejection")

// IsRetriable reports whether err represents a transient condition that
// warrants an automatic retry (rate limits, timeouts, connection errors).
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, omdb.ErrUnauthorized) ||
		errors.Is(err, ErrBudgetExhausted) ||
		errors.Is(err, ErrLookupsDisabled) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *omdb.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// url.Error wraps connection-level failures (refused, reset) that are
	// worth retrying on the next attempt or the next run.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// backoffDelay returns the delay before the next attempt: base for the first
// retry, doubling each time, capped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}
