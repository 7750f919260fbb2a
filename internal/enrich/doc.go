// Package enrich resolves catalog titles against the external lookup
// service. It consults the persistent lookup cache first, walks an ordered
// match strategy (exact title+year, then ranked search) on a miss, retries
// transient failures with bounded exponential backoff, and paces every
// external call to respect the remote rate limit. Definitive misses are
// cached; transient failures are not.
package enrich
