package release

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/database"
)

type genreStore struct{}

// SaveGenres upserts the given genres, keyed on their external catalog
// identifier. Genres are never deleted by the sync; a stale genre row is
// harmless and may still be referenced by user preferences.
func (store *genreStore) SaveGenres(db database.Queryable, genres []*Genre) error {
	if len(genres) == 0 {
		return nil
	}

	_, err := db.NamedExec(`
		INSERT INTO genre(tmdb_id, name)
		VALUES(:tmdb_id, :name)
		ON CONFLICT(tmdb_id) DO UPDATE SET name=EXCLUDED.name
	`, genres)
	if err != nil {
		return fmt.Errorf("failed to upsert bulk genres: %w", err)
	}

	return nil
}

func (store *genreStore) ListGenres(db database.Queryable) ([]*Genre, error) {
	var results []*Genre
	if err := db.Select(&results, `SELECT * FROM genre ORDER BY id`); err != nil {
		return nil, err
	}

	return results, nil
}

// GetGenresWithTmdbIDs resolves a set of external genre identifiers to their
// internal genre rows. Identifiers with no matching row are simply omitted
// from the result.
func (store *genreStore) GetGenresWithTmdbIDs(db database.Queryable, tmdbIDs []int) ([]*Genre, error) {
	if len(tmdbIDs) == 0 {
		return []*Genre{}, nil
	}

	var results []*Genre
	if err := database.InSelect(db, &results, `SELECT * FROM genre WHERE tmdb_id IN (?)`, tmdbIDs); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *genreStore) GetGenresForRelease(db database.Queryable, releaseID int64) ([]*Genre, error) {
	var results []*Genre
	err := db.Select(&results, `
		SELECT genre.* FROM release_genre
		INNER JOIN genre
		ON genre.id = release_genre.genre_id
		WHERE release_genre.release_id = $1`, releaseID)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// SaveGenreAssociations handles only the rewriting of the genre associations
// for a given release. Any existing associations for the release are cleared
// first so that re-ingestion never accumulates duplicates nor leaves stale
// links from a previous genre set.
//
// NB: This query will FAIL if any of the given genre IDs do not have a row in the genre table
func (store *genreStore) SaveGenreAssociations(db database.Queryable, releaseID int64, genreIDs []int) error {
	if _, err := db.Exec(`DELETE FROM release_genre WHERE release_id=$1`, releaseID); err != nil {
		return err
	}

	if len(genreIDs) == 0 {
		return nil
	}

	type genreAssoc struct {
		ID        uuid.UUID `db:"id"`
		ReleaseID int64     `db:"release_id"`
		GenreID   int       `db:"genre_id"`
	}
	genreAssocs := make([]genreAssoc, len(genreIDs))
	for k, v := range genreIDs {
		genreAssocs[k] = genreAssoc{uuid.New(), releaseID, v}
	}

	_, err := db.NamedExec(`
		INSERT INTO release_genre(id, release_id, genre_id)
		VALUES(:id, :release_id, :genre_id)
		ON CONFLICT(release_id, genre_id) DO NOTHING
	`, genreAssocs)

	return err
}

// GetAssociationsForGenres returns every release-to-genre linkage row for
// the provided internal genre IDs, excluding those belonging to
// 'excludeReleaseID'. Used by the recommendation engine to tally
// genre overlap across candidate releases.
func (store *genreStore) GetAssociationsForGenres(db database.Queryable, genreIDs []int, excludeReleaseID int64) ([]*GenreAssociation, error) {
	if len(genreIDs) == 0 {
		return []*GenreAssociation{}, nil
	}

	var results []*GenreAssociation
	err := database.InSelect(db, &results, `
		SELECT release_id, genre_id FROM release_genre
		WHERE genre_id IN (?) AND release_id != ?`, genreIDs, excludeReleaseID)
	if err != nil {
		return nil, err
	}

	return results, nil
}
