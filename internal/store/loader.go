package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"projector/internal/catalog"
)

// Counts summarizes one load pass. Failed rows include both per-row
// rejections and rows lost to a rolled-back batch.
type Counts struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Failed += other.Failed
}

// Total returns the number of rows accounted for.
func (c Counts) Total() int {
	return c.Inserted + c.Updated + c.Skipped + c.Failed
}

const upsertMovieSQL = `
INSERT INTO movies (movie_id, title, year, genres, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(movie_id) DO UPDATE SET
  title = excluded.title,
  year = excluded.year,
  genres = excluded.genres,
  updated_at = excluded.updated_at`

const upsertRatingSQL = `
INSERT INTO ratings (user_id, movie_id, rating, rated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, movie_id) DO UPDATE SET
  rating = excluded.rating,
  rated_at = COALESCE(excluded.rated_at, ratings.rated_at)`

// LoadCatalog upserts records keyed by movie_id in transactions of batchSize
// rows. A failed batch rolls back, counts its rows failed, and does not
// affect subsequent batches. Enrichment columns are never touched here.
func (s *Store) LoadCatalog(ctx context.Context, records []catalog.Record, batchSize int) (Counts, error) {
	ctx = ensureContext(ctx)
	if batchSize <= 0 {
		return Counts{}, errors.New("batch size must be positive")
	}

	var counts Counts
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		batchCounts, err := s.loadCatalogBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			counts.Failed += len(batch)
			continue
		}
		counts.Add(batchCounts)
	}
	return counts, nil
}

func (s *Store) loadCatalogBatch(ctx context.Context, batch []catalog.Record) (Counts, error) {
	tx, err := s.beginTxWithRetry(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("begin catalog batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counts Counts
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, record := range batch {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE movie_id = ?", record.MovieID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			counts.Inserted++
		case err != nil:
			return Counts{}, fmt.Errorf("check movie %d: %w", record.MovieID, err)
		default:
			counts.Updated++
		}

		if _, err := tx.ExecContext(ctx, upsertMovieSQL,
			record.MovieID,
			record.Title,
			nullableIntPtr(record.Year),
			nullableString(joinGenres(record.Genres)),
			now,
		); err != nil {
			return Counts{}, fmt.Errorf("upsert movie %d: %w", record.MovieID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit catalog batch: %w", err)
	}
	return counts, nil
}

// LoadRatings upserts rating events keyed by (user_id, movie_id). Rows whose
// movie is absent from knownMovies are rejected per-row and counted failed so
// one bad reference never rolls back its batch. A later rating for the same
// pair overwrites the value; a NULL incoming timestamp keeps the stored one.
func (s *Store) LoadRatings(ctx context.Context, ratings []catalog.Rating, knownMovies map[int64]struct{}, batchSize int) (Counts, error) {
	ctx = ensureContext(ctx)
	if batchSize <= 0 {
		return Counts{}, errors.New("batch size must be positive")
	}

	var counts Counts
	for start := 0; start < len(ratings); start += batchSize {
		end := start + batchSize
		if end > len(ratings) {
			end = len(ratings)
		}
		batch := ratings[start:end]

		batchCounts, err := s.loadRatingsBatch(ctx, batch, knownMovies)
		if err != nil {
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			counts.Failed += len(batch)
			continue
		}
		counts.Add(batchCounts)
	}
	return counts, nil
}

func (s *Store) loadRatingsBatch(ctx context.Context, batch []catalog.Rating, knownMovies map[int64]struct{}) (Counts, error) {
	tx, err := s.beginTxWithRetry(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("begin ratings batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counts Counts
	for _, rating := range batch {
		if _, ok := knownMovies[rating.MovieID]; !ok {
			counts.Failed++
			continue
		}

		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM ratings WHERE user_id = ? AND movie_id = ?",
			rating.UserID, rating.MovieID,
		).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			counts.Inserted++
		case err != nil:
			return Counts{}, fmt.Errorf("check rating %d/%d: %w", rating.UserID, rating.MovieID, err)
		default:
			counts.Updated++
		}

		if _, err := tx.ExecContext(ctx, upsertRatingSQL,
			rating.UserID,
			rating.MovieID,
			rating.Value,
			nullableTime(rating.RatedAt),
		); err != nil {
			return Counts{}, fmt.Errorf("upsert rating %d/%d: %w", rating.UserID, rating.MovieID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit ratings batch: %w", err)
	}
	return counts, nil
}

// ApplyEnrichment writes the enrichment columns for one movie and stamps
// last_enriched_at with the commit wall-clock time.
func (s *Store) ApplyEnrichment(ctx context.Context, movieID int64, enrichment catalog.Enrichment, enrichedAt time.Time) error {
	ctx = ensureContext(ctx)
	stamp := enrichedAt.UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
UPDATE movies SET
  director = ?,
  plot = ?,
  box_office = ?,
  imdb_id = ?,
  year = COALESCE(?, year),
  last_enriched_at = ?,
  updated_at = ?
WHERE movie_id = ?`,
			nullableString(enrichment.Director),
			nullableString(enrichment.Plot),
			nullableString(enrichment.BoxOffice),
			nullableString(enrichment.IMDbID),
			nullableIntPtr(enrichment.Year),
			stamp,
			stamp,
			movieID,
		)
		if err != nil {
			return fmt.Errorf("apply enrichment for movie %d: %w", movieID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply enrichment for movie %d: %w", movieID, err)
		}
		if affected == 0 {
			return fmt.Errorf("apply enrichment: movie %d not found", movieID)
		}
		return nil
	})
}

// LastEnrichedAt returns the enrichment timestamp for every enriched movie.
func (s *Store) LastEnrichedAt(ctx context.Context) (map[int64]time.Time, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT movie_id, last_enriched_at FROM movies WHERE last_enriched_at IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("query enrichment timestamps: %w", err)
	}
	defer rows.Close()

	stamps := make(map[int64]time.Time)
	for rows.Next() {
		var movieID int64
		var raw string
		if err := rows.Scan(&movieID, &raw); err != nil {
			return nil, fmt.Errorf("scan enrichment timestamp: %w", err)
		}
		if stamp, err := parseTimeString(raw); err == nil {
			stamps[movieID] = stamp
		}
	}
	return stamps, rows.Err()
}

// MovieIDSet returns the set of catalog movie ids, used to reject rating
// rows that reference nothing.
func (s *Store) MovieIDSet(ctx context.Context) (map[int64]struct{}, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT movie_id FROM movies")
	if err != nil {
		return nil, fmt.Errorf("query movie ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan movie id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Movie is a stored catalog row, read back for inspection and tests.
type Movie struct {
	MovieID        int64
	Title          string
	Year           *int
	Genres         []string
	Director       string
	Plot           string
	BoxOffice      string
	IMDbID         string
	LastEnrichedAt *time.Time
}

// GetMovie reads one catalog row.
func (s *Store) GetMovie(ctx context.Context, movieID int64) (*Movie, error) {
	ctx = ensureContext(ctx)
	var (
		movie       Movie
		year        sql.NullInt64
		genres      sql.NullString
		director    sql.NullString
		plot        sql.NullString
		boxOffice   sql.NullString
		imdbID      sql.NullString
		enrichedRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT movie_id, title, year, genres, director, plot, box_office, imdb_id, last_enriched_at
FROM movies WHERE movie_id = ?`, movieID).Scan(
		&movie.MovieID, &movie.Title, &year, &genres,
		&director, &plot, &boxOffice, &imdbID, &enrichedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", movieID, err)
	}

	if year.Valid {
		v := int(year.Int64)
		movie.Year = &v
	}
	if genres.Valid && genres.String != "" {
		movie.Genres = strings.Split(genres.String, "|")
	}
	movie.Director = director.String
	movie.Plot = plot.String
	movie.BoxOffice = boxOffice.String
	movie.IMDbID = imdbID.String
	if enrichedRaw.Valid {
		if stamp, err := parseTimeString(enrichedRaw.String); err == nil {
			movie.LastEnrichedAt = &stamp
		}
	}
	return &movie, nil
}

// CountMovies returns the number of catalog rows.
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	return s.countRows(ctx, "movies")
}

// CountRatings returns the number of rating rows.
func (s *Store) CountRatings(ctx context.Context) (int, error) {
	return s.countRows(ctx, "ratings")
}

func (s *Store) countRows(ctx context.Context, table string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

func joinGenres(genres []string) string {
	return strings.Join(genres, "|")
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableIntPtr(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
