// Package pipeline orchestrates one batch run: read the catalog and rating
// files, normalize rows, enrich catalog records through the lookup cache,
// and commit everything idempotently to the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"projector/internal/catalog"
	"projector/internal/config"
	"projector/internal/enrich"
	"projector/internal/ingest"
	"projector/internal/logging"
	"projector/internal/lookupcache"
	"projector/internal/store"
)

// ErrAlreadyRunning indicates another run holds the exclusive lock.
var ErrAlreadyRunning = errors.New("another run is already in progress")

// Options controls a single run.
type Options struct {
	MoviesPath        string
	RatingsPath       string
	RowLimit          int
	EnrichmentEnabled bool
	RecreateRatings   bool
}

// Summary aggregates the per-category outcomes of one run.
type Summary struct {
	RunID    string
	Duration time.Duration

	Movies          store.Counts
	Ratings         store.Counts
	MoviesRejected  int
	RatingsRejected int

	Enriched          int
	EnrichedFromCache int
	Misses            int
	Transient         int
	SkippedRecent     int
	ExternalCalls     int

	MalformedTimestamps int
	RatingsBackupTable  string
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	cache    *lookupcache.Cache
	enricher *enrich.Enricher
	logger   *slog.Logger
}

// New constructs a Runner. enricher may be nil when enrichment is not
// configured; runs then proceed load-only.
func New(cfg *config.Config, st *store.Store, cache *lookupcache.Cache, enricher *enrich.Enricher, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    st,
		cache:    cache,
		enricher: enricher,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes one full pipeline pass under the exclusive run lock.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	lock := flock.New(r.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	defer func() { _ = lock.Unlock() }()

	summary := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With(logging.String(logging.FieldRunID, summary.RunID))
	started := time.Now()

	logger.Info("run started",
		logging.String("movies_path", opts.MoviesPath),
		logging.String("ratings_path", opts.RatingsPath),
		logging.Bool("enrichment", opts.EnrichmentEnabled && r.enricher != nil),
		logging.Int("row_limit", opts.RowLimit))

	if opts.RecreateRatings {
		backup, err := r.store.RecreateRatings(ctx)
		if err != nil {
			return nil, fmt.Errorf("recreate ratings: %w", err)
		}
		summary.RatingsBackupTable = backup
		logger.Info("ratings table recreated", logging.String("backup_table", backup))
	}

	records, err := r.loadCatalog(ctx, opts, summary, logger)
	if err != nil {
		return nil, err
	}

	if opts.EnrichmentEnabled && r.enricher != nil {
		if err := r.enrichCatalog(ctx, records, summary, logger); err != nil {
			return nil, err
		}
	}

	if opts.RatingsPath != "" {
		if err := r.loadRatings(ctx, opts, summary, logger); err != nil {
			return nil, err
		}
	}

	if r.cache != nil {
		if err := r.cache.Flush(); err != nil {
			logger.Warn("failed to flush lookup cache", logging.Error(err))
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("run finished",
		logging.Duration("duration", summary.Duration),
		logging.Int("movies_inserted", summary.Movies.Inserted),
		logging.Int("movies_updated", summary.Movies.Updated),
		logging.Int("ratings_inserted", summary.Ratings.Inserted),
		logging.Int("ratings_updated", summary.Ratings.Updated),
		logging.Int("enriched", summary.Enriched),
		logging.Int("external_calls", summary.ExternalCalls))
	return summary, nil
}

func (r *Runner) loadCatalog(ctx context.Context, opts Options, summary *Summary, logger *slog.Logger) ([]catalog.Record, error) {
	rows, rejected, err := ingest.ReadMovies(opts.MoviesPath, opts.RowLimit)
	if err != nil {
		return nil, fmt.Errorf("read movies: %w", err)
	}
	summary.MoviesRejected = rejected
	if rejected > 0 {
		logger.Warn("unusable catalog rows skipped", logging.Int("rows", rejected))
	}

	records := make([]catalog.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, catalog.NewRecord(row.MovieID, row.Title, row.Genres))
	}

	counts, err := r.store.LoadCatalog(ctx, records, r.cfg.Load.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	summary.Movies = counts
	logger.Info("catalog loaded",
		logging.Int("inserted", counts.Inserted),
		logging.Int("updated", counts.Updated),
		logging.Int("failed", counts.Failed))
	return records, nil
}

func (r *Runner) enrichCatalog(ctx context.Context, records []catalog.Record, summary *Summary, logger *slog.Logger) error {
	stamps, err := r.store.LastEnrichedAt(ctx)
	if err != nil {
		return fmt.Errorf("read enrichment stamps: %w", err)
	}
	// Records whose batch rolled back were counted failed by the load; they
	// have no row to enrich and must not abort the rest of the run.
	committed, err := r.store.MovieIDSet(ctx)
	if err != nil {
		return fmt.Errorf("read movie id set: %w", err)
	}

	var window time.Duration
	if days := r.cfg.Load.ReenrichAfterDays; days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}
	cutoff := time.Now().Add(-window)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := committed[record.MovieID]; !ok {
			logger.Debug("skipping uncommitted record",
				logging.Int64(logging.FieldMovieID, record.MovieID))
			continue
		}
		if window > 0 {
			if stamp, ok := stamps[record.MovieID]; ok && stamp.After(cutoff) {
				summary.SkippedRecent++
				continue
			}
		}

		result := r.enricher.Enrich(ctx, record.Title, record.Year)
		switch result.Kind {
		case enrich.KindHit:
			if result.FromCache {
				summary.EnrichedFromCache++
			}
			enrichment := toEnrichment(result.Payload)
			if err := r.store.ApplyEnrichment(ctx, record.MovieID, enrichment, time.Now()); err != nil {
				return fmt.Errorf("apply enrichment: %w", err)
			}
			summary.Enriched++
		case enrich.KindMiss:
			summary.Misses++
		case enrich.KindTransient:
			summary.Transient++
			logger.Debug("record proceeds unenriched",
				logging.Int64(logging.FieldMovieID, record.MovieID),
				logging.Error(result.Err))
		}

		if processed := i + 1; processed%100 == 0 {
			logger.Info("enrichment progress",
				logging.Int("processed", processed),
				logging.Int("total", len(records)),
				logging.Int("external_calls", r.enricher.Calls()))
		}
	}

	summary.ExternalCalls = r.enricher.Calls()
	logger.Info("enrichment finished",
		logging.Int("enriched", summary.Enriched),
		logging.Int("from_cache", summary.EnrichedFromCache),
		logging.Int("misses", summary.Misses),
		logging.Int("transient", summary.Transient),
		logging.Int("skipped_recent", summary.SkippedRecent),
		logging.Int("external_calls", summary.ExternalCalls),
		logging.Bool("lookups_disabled", r.enricher.Disabled()))
	return nil
}

func (r *Runner) loadRatings(ctx context.Context, opts Options, summary *Summary, logger *slog.Logger) error {
	knownMovies, err := r.store.MovieIDSet(ctx)
	if err != nil {
		return fmt.Errorf("read movie id set: %w", err)
	}

	batch := 0
	total, rejected, err := ingest.ReadRatings(opts.RatingsPath, r.cfg.Load.RatingsChunkSize, func(chunk []ingest.RatingRow) error {
		batch++
		ratings := make([]catalog.Rating, 0, len(chunk))
		for _, row := range chunk {
			rating := catalog.Rating{UserID: row.UserID, MovieID: row.MovieID, Value: row.Rating}
			if row.EpochMalformed {
				summary.MalformedTimestamps++
			} else if row.HasEpoch {
				if stamp, err := catalog.ParseEpochSeconds(row.Epoch); err != nil {
					summary.MalformedTimestamps++
				} else {
					rating.RatedAt = &stamp
				}
			}
			ratings = append(ratings, rating)
		}

		counts, err := r.store.LoadRatings(ctx, ratings, knownMovies, r.cfg.Load.BatchSize)
		if err != nil {
			return err
		}
		summary.Ratings.Add(counts)
		logger.Info("ratings chunk loaded",
			logging.Int(logging.FieldBatch, batch),
			logging.Int("rows", len(ratings)),
			logging.Int("inserted", counts.Inserted),
			logging.Int("updated", counts.Updated),
			logging.Int("failed", counts.Failed))
		return nil
	})
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}

	summary.RatingsRejected = rejected
	if rejected > 0 {
		logger.Warn("unusable rating rows skipped", logging.Int("rows", rejected))
	}
	if summary.MalformedTimestamps > 0 {
		logger.Warn("malformed timestamps nulled", logging.Int("rows", summary.MalformedTimestamps))
	}
	logger.Info("ratings loaded", logging.Int("rows", total))
	return nil
}

func toEnrichment(payload *lookupcache.Payload) catalog.Enrichment {
	enrichment := catalog.Enrichment{
		Director:  payload.Director,
		Plot:      payload.Plot,
		BoxOffice: payload.BoxOffice,
		IMDbID:    payload.IMDbID,
	}
	if payload.Year > 0 {
		year := payload.Year
		enrichment.Year = &year
	}
	return enrichment
}
