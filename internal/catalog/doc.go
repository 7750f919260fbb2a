// Package catalog defines the canonical record types produced by
// normalization and consumed by enrichment and loading. All functions here
// are pure; anomalies are reported as errors for the caller to log.
package catalog
