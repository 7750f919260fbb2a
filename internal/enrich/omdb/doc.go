// Package omdb provides a thin HTTP client for the OMDb lookup API. It
// reports definitive not-found responses as nil results, surfaces HTTP
// status failures as typed errors for retry classification, and maps
// credential or quota exhaustion to ErrUnauthorized.
package omdb
