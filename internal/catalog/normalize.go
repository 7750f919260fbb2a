package catalog

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// NoGenresSentinel is the literal the source data uses for an empty genre set.
const NoGenresSentinel = "(no genres listed)"

// ErrMalformedTimestamp marks an epoch value outside the accepted range.
// Callers null the field and continue; the anomaly is never fatal.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// maxEpochSeconds is 2100-01-01T00:00:00Z. Anything later is treated as
// corrupt source data rather than a real event time.
const maxEpochSeconds int64 = 4102444800

var yearSuffixPattern = regexp.MustCompile(`\s*\((\d{4})\)\s*$`)

// ParseTitle extracts a trailing "(YYYY)" from a raw title. The returned
// title has the suffix stripped; year is nil when no suffix is present.
func ParseTitle(raw string) (string, *int) {
	trimmed := strings.TrimSpace(raw)
	match := yearSuffixPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return trimmed, nil
	}
	year := 0
	for _, ch := range match[1] {
		year = year*10 + int(ch-'0')
	}
	title := strings.TrimSpace(yearSuffixPattern.ReplaceAllString(trimmed, ""))
	if title == "" {
		// A title that is nothing but a year keeps the raw form.
		return trimmed, nil
	}
	return title, &year
}

// ParseGenres splits a pipe-delimited genre list into trimmed, non-empty
// tokens in source order. The no-genres sentinel maps to an empty slice.
func ParseGenres(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, NoGenresSentinel) {
		return nil
	}
	parts := strings.Split(trimmed, "|")
	genres := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			genres = append(genres, token)
		}
	}
	return genres
}

// ParseEpochSeconds converts a UNIX epoch to UTC time. Negative values and
// values past maxEpochSeconds return ErrMalformedTimestamp.
func ParseEpochSeconds(sec int64) (time.Time, error) {
	if sec < 0 || sec > maxEpochSeconds {
		return time.Time{}, ErrMalformedTimestamp
	}
	return time.Unix(sec, 0).UTC(), nil
}

// CleanString maps whitespace-only strings to the empty string so callers
// can treat them as unset rather than storing placeholder values.
func CleanString(raw string) string {
	return strings.TrimSpace(raw)
}
