// Command projector loads a movie catalog and user ratings into SQLite,
// enriching catalog records through a cached OMDb lookup along the way.
package main
