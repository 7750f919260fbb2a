package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadMovies(t *testing.T) {
	path := writeFile(t, "movies.csv",
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Adventure|Animation\n"+
			"2,Heat (1995),Action|Crime\n"+
			"abc,Broken Row,Drama\n"+
			"3,,Comedy\n")

	rows, skipped, err := ReadMovies(path, 0)
	if err != nil {
		t.Fatalf("ReadMovies returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped rows, got %d", skipped)
	}
	if rows[0].MovieID != 1 || rows[0].Title != "Toy Story (1995)" || rows[0].Genres != "Adventure|Animation" {
		t.Fatalf("unexpected first row: %#v", rows[0])
	}
}

func TestReadMoviesHonorsLimit(t *testing.T) {
	path := writeFile(t, "movies.csv",
		"movieId,title,genres\n1,A,X\n2,B,Y\n3,C,Z\n")

	rows, _, err := ReadMovies(path, 2)
	if err != nil {
		t.Fatalf("ReadMovies returned error: %v", err)
	}
	if len(rows) != 2 || rows[1].MovieID != 2 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestReadMoviesSkipsUnparseableRows(t *testing.T) {
	path := writeFile(t, "movies.csv",
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Adventure\n"+
			"2,\"Broken \"Quote\" Film,Drama\n"+
			"3,Heat (1995),Action\n")

	rows, skipped, err := ReadMovies(path, 0)
	if err != nil {
		t.Fatalf("ReadMovies returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 usable rows, got %d", len(rows))
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", skipped)
	}
	if rows[1].MovieID != 3 {
		t.Fatalf("rows after the bad one must still be read: %#v", rows)
	}
}

func TestReadMoviesMissingColumn(t *testing.T) {
	path := writeFile(t, "movies.csv", "id,name\n1,Heat\n")
	if _, _, err := ReadMovies(path, 0); err == nil {
		t.Fatal("expected error for missing movieId column")
	}
}

func TestReadRatingsChunks(t *testing.T) {
	path := writeFile(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n"+
			"1,1,4.0,964982703\n"+
			"1,2,3.5,964981247\n"+
			"2,1,5.0,\n"+
			"2,2,2.0,not-a-number\n"+
			"0,1,3.0,964982703\n"+
			"3,1,9.5,964982703\n")

	var chunks [][]RatingRow
	total, skipped, err := ReadRatings(path, 3, func(chunk []RatingRow) error {
		copied := make([]RatingRow, len(chunk))
		copy(copied, chunk)
		chunks = append(chunks, copied)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRatings returned error: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 usable rows, got %d", total)
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped rows, got %d", skipped)
	}
	if len(chunks) != 2 || len(chunks[0]) != 3 || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunk shape: %d", len(chunks))
	}

	first := chunks[0][0]
	if first.UserID != 1 || first.MovieID != 1 || first.Rating != 4.0 || !first.HasEpoch || first.Epoch != 964982703 {
		t.Fatalf("unexpected first row: %#v", first)
	}
	empty := chunks[0][2]
	if empty.HasEpoch || empty.EpochMalformed {
		t.Fatalf("empty timestamp should be unset, not malformed: %#v", empty)
	}
	malformed := chunks[1][0]
	if malformed.HasEpoch || !malformed.EpochMalformed {
		t.Fatalf("non-numeric timestamp should be marked malformed: %#v", malformed)
	}
}

func TestReadRatingsSkipsUnparseableRows(t *testing.T) {
	path := writeFile(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n"+
			"1,1,4.0,964982703\n"+
			"2,\"bad \"quote,3.0,964982703\n"+
			"2,2,3.5,964981247\n")

	var rows []RatingRow
	total, skipped, err := ReadRatings(path, 10, func(chunk []RatingRow) error {
		rows = append(rows, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRatings returned error: %v", err)
	}
	if total != 2 || skipped != 1 {
		t.Fatalf("expected 2 usable and 1 skipped, got %d and %d", total, skipped)
	}
	if len(rows) != 2 || rows[1].MovieID != 2 {
		t.Fatalf("rows after the bad one must still be read: %#v", rows)
	}
}

func TestReadRatingsCallbackErrorAborts(t *testing.T) {
	path := writeFile(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n1,1,4.0,1\n1,2,4.0,1\n")

	boom := errors.New("boom")
	_, _, err := ReadRatings(path, 1, func([]RatingRow) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestReadRatingsRejectsBadChunkSize(t *testing.T) {
	if _, _, err := ReadRatings("ratings.csv", 0, func([]RatingRow) error { return nil }); err == nil {
		t.Fatal("expected error for non-positive chunk size")
	}
}
