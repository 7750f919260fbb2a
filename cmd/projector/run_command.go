package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"projector/internal/enrich"
	"projector/internal/enrich/omdb"
	"projector/internal/logging"
	"projector/internal/lookupcache"
	"projector/internal/pipeline"
	"projector/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		moviesPath      string
		ratingsPath     string
		limit           int
		noEnrich        bool
		recreateRatings bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the catalog and ratings, enriching along the way",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = st.Close() }()

			cache := lookupcache.New(cfg.Cache.Path, cfg.Cache.FlushEvery, logger)

			var enricher *enrich.Enricher
			if !noEnrich {
				if !cfg.EnrichmentConfigured() {
					logger.Warn("no OMDb api key configured; records proceed unenriched",
						logging.String(logging.FieldErrorHint, "set omdb.api_key or export OMDB_API_KEY"))
				} else {
					client, err := omdb.New(cfg.OMDb.APIKey, cfg.OMDb.BaseURL,
						omdb.WithTimeout(time.Duration(cfg.OMDb.TimeoutSeconds)*time.Second))
					if err != nil {
						return fmt.Errorf("init lookup client: %w", err)
					}
					enricher = enrich.New(client, cache, enrich.Options{
						MaxAttempts: cfg.OMDb.MaxAttempts,
						Pacing:      time.Duration(cfg.OMDb.PacingMillis) * time.Millisecond,
						CallBudget:  cfg.OMDb.CallBudget,
					}, logger)
				}
			}

			runner := pipeline.New(cfg, st, cache, enricher, logger)
			summary, err := runner.Run(cmd.Context(), pipeline.Options{
				MoviesPath:        moviesPath,
				RatingsPath:       ratingsPath,
				RowLimit:          limit,
				EnrichmentEnabled: !noEnrich && enricher != nil,
				RecreateRatings:   recreateRatings,
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&moviesPath, "movies", "movies.csv", "Catalog CSV path")
	cmd.Flags().StringVar(&ratingsPath, "ratings", "ratings.csv", "Ratings CSV path (empty to skip)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process only the first N catalog rows (0 = all)")
	cmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Skip enrichment lookups")
	cmd.Flags().BoolVar(&recreateRatings, "recreate-ratings", false, "Back up the ratings table and reload from scratch")

	return cmd
}
