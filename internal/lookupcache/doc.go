// Package lookupcache persists lookup results between runs so repeated
// pipeline executions avoid calling the external enrichment service for
// titles it has already resolved. Entries record either a payload or an
// explicit not-found marker; transient failures are never cached.
package lookupcache
