// Package ingest reads the raw catalog and rating CSV files. Rows that
// cannot be keyed (missing or non-numeric identifiers, out-of-range rating
// values) are skipped and counted, never fatal; field-level cleanup beyond
// that belongs to the catalog normalizer.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// RatingMin and RatingMax bound the accepted rating scale.
	RatingMin = 0.0
	RatingMax = 5.0
)

// MovieRow is one raw catalog row. Title and Genres are passed through
// untouched for the normalizer.
type MovieRow struct {
	MovieID int64
	Title   string
	Genres  string
}

// RatingRow is one raw rating row. Epoch is only meaningful when HasEpoch is
// set; EpochMalformed marks a non-numeric timestamp field that was dropped
// while the rest of the row was kept.
type RatingRow struct {
	UserID         int64
	MovieID        int64
	Rating         float64
	Epoch          int64
	HasEpoch       bool
	EpochMalformed bool
}

// ReadMovies reads up to limit catalog rows (0 means all) and returns them
// together with the number of rows skipped as unusable.
func ReadMovies(path string, limit int) ([]MovieRow, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open movies file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read movies header: %w", err)
	}
	if err := requireColumns(header, "movieid", "title"); err != nil {
		return nil, 0, fmt.Errorf("movies file %s: %w", path, err)
	}

	var rows []MovieRow
	skipped := 0
	for limit <= 0 || len(rows) < limit {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if isRowParseError(err) {
			skipped++
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read movies row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		movieID, err := strconv.ParseInt(valueAt(header, row, "movieid"), 10, 64)
		title := valueAt(header, row, "title")
		if err != nil || movieID <= 0 || title == "" {
			skipped++
			continue
		}

		rows = append(rows, MovieRow{
			MovieID: movieID,
			Title:   title,
			Genres:  valueAt(header, row, "genres"),
		})
	}
	return rows, skipped, nil
}

// ReadRatings streams rating rows in chunks of chunkSize, invoking fn for
// each full chunk and once more for the tail. It returns the number of usable
// rows delivered and the number skipped. fn errors abort the read.
func ReadRatings(path string, chunkSize int, fn func([]RatingRow) error) (int, int, error) {
	if chunkSize <= 0 {
		return 0, 0, errors.New("chunk size must be positive")
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open ratings file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return 0, 0, fmt.Errorf("read ratings header: %w", err)
	}
	if err := requireColumns(header, "userid", "movieid", "rating"); err != nil {
		return 0, 0, fmt.Errorf("ratings file %s: %w", path, err)
	}

	total := 0
	skipped := 0
	chunk := make([]RatingRow, 0, chunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := fn(chunk); err != nil {
			return err
		}
		total += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if isRowParseError(err) {
			skipped++
			continue
		}
		if err != nil {
			return total, skipped, fmt.Errorf("read ratings row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		parsed, ok := parseRatingRow(header, row)
		if !ok {
			skipped++
			continue
		}
		chunk = append(chunk, parsed)
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return total, skipped, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, skipped, err
	}
	return total, skipped, nil
}

func parseRatingRow(header map[string]int, row []string) (RatingRow, bool) {
	userID, err := strconv.ParseInt(valueAt(header, row, "userid"), 10, 64)
	if err != nil || userID <= 0 {
		return RatingRow{}, false
	}
	movieID, err := strconv.ParseInt(valueAt(header, row, "movieid"), 10, 64)
	if err != nil || movieID <= 0 {
		return RatingRow{}, false
	}
	rating, err := strconv.ParseFloat(valueAt(header, row, "rating"), 64)
	if err != nil || rating < RatingMin || rating > RatingMax {
		return RatingRow{}, false
	}

	parsed := RatingRow{UserID: userID, MovieID: movieID, Rating: rating}
	if raw := valueAt(header, row, "timestamp"); raw != "" {
		epoch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			parsed.EpochMalformed = true
		} else {
			parsed.Epoch = epoch
			parsed.HasEpoch = true
		}
	}
	return parsed, true
}

// isRowParseError reports whether err is a per-row CSV syntax problem the
// reader can continue past. I/O errors stay fatal.
func isRowParseError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr)
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func requireColumns(header map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := header[name]; !ok {
			return fmt.Errorf("missing required column %q", name)
		}
	}
	return nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
