package catalog

import "time"

// Record is a catalog entry in storage-ready form. Title carries no year
// suffix; Year is nil when the raw title had none.
type Record struct {
	MovieID int64
	Title   string
	Year    *int
	Genres  []string
}

// Enrichment holds the fields fetched from the external lookup service.
// Either all fields come from one successful lookup or the struct is absent.
type Enrichment struct {
	Director  string
	Plot      string
	BoxOffice string
	Year      *int
	IMDbID    string
}

// Rating is a single user rating event. RatedAt is nil when the source row
// had no timestamp or a malformed one.
type Rating struct {
	UserID  int64
	MovieID int64
	Value   float64
	RatedAt *time.Time
}

// NewRecord normalizes a raw catalog row into a Record.
func NewRecord(movieID int64, rawTitle, rawGenres string) Record {
	title, year := ParseTitle(rawTitle)
	return Record{
		MovieID: movieID,
		Title:   title,
		Year:    year,
		Genres:  ParseGenres(rawGenres),
	}
}
