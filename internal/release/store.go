package release

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbomb79/Marquee/internal/database"
)

var ErrReleaseNotFound = errors.New("release does not exist")

type (
	// Filter is an explicit specification of the attributes a release
	// listing can be narrowed by. Zero-valued fields are ignored; the date
	// window, when both ends are provided, is half-open [From, To).
	Filter struct {
		Type    *Type
		From    *time.Time
		To      *time.Time
		GenreID *int
	}

	// Store provides access to the release rows and, via the embedded
	// genre store, the genre and association rows they link to.
	Store struct{ genreStore }
)

// SaveRelease upserts the provided release, keyed on its TmdbID as this is
// expected to be a stable identifier. The release's internal ID is populated
// (or updated to match the existing row) on success.
func (store *Store) SaveRelease(db database.Queryable, rel *Release) error {
	row := db.QueryRowx(`
		INSERT INTO release(tmdb_id, title, type, release_date, overview, poster_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, current_timestamp, current_timestamp)
		ON CONFLICT(tmdb_id) DO UPDATE
			SET title=EXCLUDED.title, release_date=EXCLUDED.release_date,
				overview=EXCLUDED.overview, poster_path=EXCLUDED.poster_path,
				updated_at=current_timestamp
		RETURNING id
	`, rel.TmdbID, rel.Title, rel.Type, rel.ReleaseDate, rel.Overview, rel.PosterPath)

	if err := row.Scan(&rel.ID); err != nil {
		return fmt.Errorf("failed to upsert release (tmdb_id=%d): %w", rel.TmdbID, err)
	}

	return nil
}

// GetRelease searches for an existing release with the internal ID provided.
func (store *Store) GetRelease(db database.Queryable, releaseID int64) (*Release, error) {
	var result Release
	if err := db.Get(&result, `SELECT * FROM release WHERE id=$1`, releaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}

		return nil, err
	}

	return &result, nil
}

// GetReleaseWithTmdbID searches for an existing release with the external
// catalog identifier provided.
func (store *Store) GetReleaseWithTmdbID(db database.Queryable, tmdbID int64) (*Release, error) {
	var result Release
	if err := db.Get(&result, `SELECT * FROM release WHERE tmdb_id=$1`, tmdbID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}

		return nil, err
	}

	return &result, nil
}

// ListReleases returns all releases matching the provided filter, ordered by
// release date ascending. The filter is translated to SQL here so callers
// never construct ad hoc query fragments.
func (store *Store) ListReleases(db database.Queryable, filter Filter) ([]*Release, error) {
	builder := squirrel.Select("release.*").From("release").OrderBy("release.release_date ASC", "release.id ASC")
	if filter.Type != nil {
		builder = builder.Where("release.type=?", *filter.Type)
	}
	if filter.From != nil {
		builder = builder.Where("release.release_date >= ?", *filter.From)
	}
	if filter.To != nil {
		builder = builder.Where("release.release_date < ?", *filter.To)
	}
	if filter.GenreID != nil {
		builder = builder.
			Join("release_genre ON release_genre.release_id = release.id").
			Where("release_genre.genre_id=?", *filter.GenreID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list releases query: %w", err)
	}

	var results []*Release
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return results, nil
}

// GetStubsWithIDs fetches the display records for the provided release IDs.
// The rows are returned in storage order; callers which care about rank
// order (see the ranking package) are expected to reorder them.
func (store *Store) GetStubsWithIDs(db database.Queryable, releaseIDs []int64) ([]*Stub, error) {
	if len(releaseIDs) == 0 {
		return []*Stub{}, nil
	}

	var results []*Stub
	if err := database.InSelect(db, &results, `SELECT id, title, poster_path FROM release WHERE id IN (?)`, releaseIDs); err != nil {
		return nil, err
	}

	return results, nil
}

// SearchReleases ranks all stored releases by the similarity of their title
// to the provided query, returning the closest 'limit' matches. Similarity
// is a case-insensitive Jaro-Winkler metric; results with negligible
// similarity are omitted.
func (store *Store) SearchReleases(db database.Queryable, query string, limit int) ([]*Stub, error) {
	var candidates []*Release
	if err := db.Select(&candidates, `SELECT * FROM release`); err != nil {
		return nil, err
	}

	metric := metrics.NewJaroWinkler()
	type scored struct {
		stub       *Stub
		similarity float64
	}

	matches := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		similarity := strutil.Similarity(candidate.Title, query, metric)
		if similarity < 0.5 {
			continue
		}

		matches = append(matches, scored{
			stub:       &Stub{ID: candidate.ID, Title: candidate.Title, PosterPath: candidate.PosterPath},
			similarity: similarity,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].similarity > matches[j].similarity })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]*Stub, len(matches))
	for k, v := range matches {
		results[k] = v.stub
	}

	return results, nil
}

// DeleteOrphanReleases removes all releases which no user is tracking,
// reporting the number of rows removed. Used by the catalog refresh to
// clear the previous cycle without invalidating watchlist entries.
func (store *Store) DeleteOrphanReleases(db database.Queryable) (int64, error) {
	result, err := db.Exec(`DELETE FROM release WHERE id NOT IN (SELECT release_id FROM watchlist)`)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
