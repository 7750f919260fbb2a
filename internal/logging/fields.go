package logging

// Standardized attribute keys used across components.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldRunID     = "run_id"
	FieldMovieID   = "movie_id"
	FieldLookupKey = "lookup_key"
	FieldBatch     = "batch"
	FieldAttempt   = "attempt"
)
