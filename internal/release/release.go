package release

import (
	"time"
)

type Type string

const (
	MOVIE Type = "movie"
	TV    Type = "tv"
)

type (
	// Release represents one movie or TV-show catalog entry tracked by
	// Marquee. The TmdbID is the stable external identifier; the numeric ID
	// is the internal primary key exposed through the API.
	Release struct {
		ID          int64     `db:"id" json:"id"`
		TmdbID      int64     `db:"tmdb_id" json:"tmdbId"`
		Title       string    `db:"title" json:"title"`
		Type        Type      `db:"type" json:"type"`
		ReleaseDate time.Time `db:"release_date" json:"releaseDate"`
		Overview    string    `db:"overview" json:"overview"`
		PosterPath  *string   `db:"poster_path" json:"posterPath"`
		CreatedAt   time.Time `db:"created_at" json:"-"`
		UpdatedAt   time.Time `db:"updated_at" json:"-"`
	}

	// Stub is the minimal display record used when presenting ranked
	// lists (popular/recommended rails) to the UI.
	Stub struct {
		ID         int64   `db:"id" json:"id"`
		Title      string  `db:"title" json:"title"`
		PosterPath *string `db:"poster_path" json:"posterPath"`
	}

	Genre struct {
		ID     int    `db:"id" json:"id"`
		TmdbID int    `db:"tmdb_id" json:"tmdbId"`
		Name   string `db:"name" json:"name"`
	}

	// GenreAssociation is one release-to-genre linkage row.
	GenreAssociation struct {
		ReleaseID int64 `db:"release_id"`
		GenreID   int   `db:"genre_id"`
	}

	// CatalogItem is the normalized shape of one item fetched from the
	// external catalog, common to the movie and TV payloads. It only exists
	// in-memory between the catalog fetch and persistence.
	CatalogItem struct {
		SourceID       int64
		Title          string
		Type           Type
		Date           time.Time
		Overview       string
		PosterPath     *string
		Popularity     float64
		GenreSourceIDs []int
	}
)

// DateOnly truncates the item's date to day granularity; all grouping and
// windowing of releases operates on this value.
func (item *CatalogItem) DateOnly() time.Time {
	y, m, d := item.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
