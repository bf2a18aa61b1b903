package watchlist

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/database"
)

var ErrEntryNotFound = errors.New("watchlist entry does not exist")

type Rating string

const (
	LIKE    Rating = "LIKE"
	DISLIKE Rating = "DISLIKE"
)

type (
	// Entry is a user's tracking record for one release. Rating is
	// tri-state: LIKE, DISLIKE, or nil when the user has not rated the
	// release (or has cleared a previous rating).
	Entry struct {
		ID        uuid.UUID `db:"id" json:"-"`
		UserID    uuid.UUID `db:"user_id" json:"-"`
		ReleaseID int64     `db:"release_id" json:"releaseId"`
		Watched   bool      `db:"watched" json:"watched"`
		Rating    *Rating   `db:"rating" json:"rating"`
		CreatedAt time.Time `db:"created_at" json:"-"`
		UpdatedAt time.Time `db:"updated_at" json:"-"`
	}

	// RatedEntry is the projection of a watchlist entry consumed by the
	// popularity scorer: the rating alongside the associated release's date.
	RatedEntry struct {
		ReleaseID   int64     `db:"release_id"`
		Rating      *Rating   `db:"rating"`
		ReleaseDate time.Time `db:"release_date"`
	}

	Store struct{}
)

// SaveEntry upserts the watchlist entry for the (user, release) pair. A
// pre-existing entry has its watched flag and rating replaced; at most one
// entry per pair can ever exist.
func (store *Store) SaveEntry(db database.Queryable, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var saved Entry
	row := db.QueryRowx(`
		INSERT INTO watchlist(id, user_id, release_id, watched, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, current_timestamp, current_timestamp)
		ON CONFLICT(user_id, release_id) DO UPDATE
			SET watched=EXCLUDED.watched, rating=EXCLUDED.rating, updated_at=current_timestamp
		RETURNING id, created_at, updated_at
	`, entry.ID, entry.UserID, entry.ReleaseID, entry.Watched, entry.Rating)
	if err := row.Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert watchlist entry: %w", err)
	}

	entry.ID = saved.ID
	entry.CreatedAt = saved.CreatedAt
	entry.UpdatedAt = saved.UpdatedAt
	return nil
}

func (store *Store) GetEntry(db database.Queryable, userID uuid.UUID, releaseID int64) (*Entry, error) {
	var result Entry
	if err := db.Get(&result, `SELECT * FROM watchlist WHERE user_id=$1 AND release_id=$2`, userID, releaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}

		return nil, err
	}

	return &result, nil
}

// UpdateEntry applies a partial mutation to the entry for the (user,
// release) pair. A nil watched/rating pointer leaves the respective field
// untouched; clearRating forces the rating back to its absent state.
func (store *Store) UpdateEntry(db database.Queryable, userID uuid.UUID, releaseID int64, watched *bool, rating *Rating, clearRating bool) (*Entry, error) {
	entry, err := store.GetEntry(db, userID, releaseID)
	if err != nil {
		return nil, err
	}

	if watched != nil {
		entry.Watched = *watched
	}
	if rating != nil {
		entry.Rating = rating
	} else if clearRating {
		entry.Rating = nil
	}

	_, err = db.Exec(`
		UPDATE watchlist SET watched=$1, rating=$2, updated_at=current_timestamp
		WHERE user_id=$3 AND release_id=$4
	`, entry.Watched, entry.Rating, userID, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to update watchlist entry: %w", err)
	}

	return entry, nil
}

func (store *Store) DeleteEntry(db database.Queryable, userID uuid.UUID, releaseID int64) error {
	_, err := db.Exec(`DELETE FROM watchlist WHERE user_id=$1 AND release_id=$2`, userID, releaseID)
	return err
}

func (store *Store) ListEntriesForUser(db database.Queryable, userID uuid.UUID) ([]*Entry, error) {
	var results []*Entry
	if err := db.Select(&results, `SELECT * FROM watchlist WHERE user_id=$1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, err
	}

	return results, nil
}

// ListRatedEntriesInWindow collects every watchlist entry - across all
// users - whose associated release's date falls inside the half-open
// window [from, to). Entries without a rating are included; the scorer
// treats them as a zero contribution.
func (store *Store) ListRatedEntriesInWindow(db database.Queryable, from time.Time, to time.Time) ([]*RatedEntry, error) {
	var results []*RatedEntry
	err := db.Select(&results, `
		SELECT watchlist.release_id, watchlist.rating, release.release_date FROM watchlist
		INNER JOIN release
		ON release.id = watchlist.release_id
		WHERE release.release_date >= $1 AND release.release_date < $2`, from, to)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// GetLatestLikedReleaseID returns the release of the user's most recently
// created LIKE-rated entry, or ErrEntryNotFound when the user has none.
func (store *Store) GetLatestLikedReleaseID(db database.Queryable, userID uuid.UUID) (int64, error) {
	var releaseID int64
	err := db.Get(&releaseID, `
		SELECT release_id FROM watchlist
		WHERE user_id=$1 AND rating='LIKE'
		ORDER BY created_at DESC
		LIMIT 1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrEntryNotFound
		}

		return 0, err
	}

	return releaseID, nil
}
