package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/database"
	"github.com/hbomb79/Marquee/internal/ingest"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/user"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/jmoiron/sqlx"
)

type (
	// DataOrchestrator is responsible for managing all of Marquee's resources,
	// especially highly-relational data. You can think of all
	// the data stores below this layer being 'dumb', and this store
	// linking them together and providing the database instance
	//
	// If consumers need to be able to access data stores directly, they're
	// welcome to do so - however caution should be taken as stores have no
	// obligation to take care of relational data (which is the orchestrator's job)
	DataOrchestrator struct {
		db             database.Manager
		UserStore      *user.Store
		ReleaseStore   *release.Store
		WatchlistStore *watchlist.Store
	}
)

func NewDataOrchestrator(db database.Manager) *DataOrchestrator {
	return &DataOrchestrator{
		db:             db,
		UserStore:      user.NewStore(),
		ReleaseStore:   &release.Store{},
		WatchlistStore: &watchlist.Store{},
	}
}

// -- Users --

func (orchestrator *DataOrchestrator) CreateUser(email string, rawPassword []byte) (*user.User, error) {
	return orchestrator.UserStore.Create(orchestrator.db.GetSqlxDb(), email, rawPassword)
}

func (orchestrator *DataOrchestrator) GetUserWithEmailAndPassword(email string, rawPassword []byte) (*user.User, error) {
	return orchestrator.UserStore.GetWithEmailAndPassword(orchestrator.db.GetSqlxDb(), email, rawPassword)
}

func (orchestrator *DataOrchestrator) GetUserWithID(id uuid.UUID) (*user.User, error) {
	return orchestrator.UserStore.GetWithID(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *DataOrchestrator) RecordUserLogin(userID uuid.UUID) error {
	return orchestrator.UserStore.RecordLogin(orchestrator.db.GetSqlxDb(), userID)
}

func (orchestrator *DataOrchestrator) RecordUserRefresh(userID uuid.UUID) error {
	return orchestrator.UserStore.RecordRefresh(orchestrator.db.GetSqlxDb(), userID)
}

func (orchestrator *DataOrchestrator) GetUserPreferences(userID uuid.UUID) (*user.Preferences, error) {
	return orchestrator.UserStore.GetPreferences(orchestrator.db.GetSqlxDb(), userID)
}

func (orchestrator *DataOrchestrator) ReplaceUserPreferences(userID uuid.UUID, genreIDs []int) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		return orchestrator.UserStore.ReplacePreferences(tx, userID, genreIDs)
	})
}

// -- Releases and genres --

func (orchestrator *DataOrchestrator) ListReleases(filter release.Filter) ([]*release.Release, error) {
	return orchestrator.ReleaseStore.ListReleases(orchestrator.db.GetSqlxDb(), filter)
}

func (orchestrator *DataOrchestrator) GetRelease(releaseID int64) (*release.Release, error) {
	return orchestrator.ReleaseStore.GetRelease(orchestrator.db.GetSqlxDb(), releaseID)
}

func (orchestrator *DataOrchestrator) GetReleaseStubs(releaseIDs []int64) ([]*release.Stub, error) {
	return orchestrator.ReleaseStore.GetStubsWithIDs(orchestrator.db.GetSqlxDb(), releaseIDs)
}

func (orchestrator *DataOrchestrator) SearchReleases(query string, limit int) ([]*release.Stub, error) {
	return orchestrator.ReleaseStore.SearchReleases(orchestrator.db.GetSqlxDb(), query, limit)
}

func (orchestrator *DataOrchestrator) ListGenres() ([]*release.Genre, error) {
	return orchestrator.ReleaseStore.ListGenres(orchestrator.db.GetSqlxDb())
}

func (orchestrator *DataOrchestrator) GetGenresForRelease(releaseID int64) ([]*release.Genre, error) {
	return orchestrator.ReleaseStore.GetGenresForRelease(orchestrator.db.GetSqlxDb(), releaseID)
}

func (orchestrator *DataOrchestrator) GetGenresWithTmdbIDs(tmdbIDs []int) ([]*release.Genre, error) {
	return orchestrator.ReleaseStore.GetGenresWithTmdbIDs(orchestrator.db.GetSqlxDb(), tmdbIDs)
}

func (orchestrator *DataOrchestrator) GetAssociationsForGenres(genreIDs []int, excludeReleaseID int64) ([]*release.GenreAssociation, error) {
	return orchestrator.ReleaseStore.GetAssociationsForGenres(orchestrator.db.GetSqlxDb(), genreIDs, excludeReleaseID)
}

func (orchestrator *DataOrchestrator) SaveGenres(genres []*release.Genre) error {
	return orchestrator.ReleaseStore.SaveGenres(orchestrator.db.GetSqlxDb(), genres)
}

// SaveReleaseBatch transactionally upserts one refresh cycle's releases for
// a single listing, rewriting each release's genre associations. A failure
// anywhere rolls the whole batch back.
func (orchestrator *DataOrchestrator) SaveReleaseBatch(items []ingest.ResolvedRelease) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		for k := range items {
			rel := &items[k].Release
			if err := orchestrator.ReleaseStore.SaveRelease(tx, rel); err != nil {
				return err
			}

			if err := orchestrator.ReleaseStore.SaveGenreAssociations(tx, rel.ID, items[k].GenreIDs); err != nil {
				return err
			}
		}

		return nil
	})
}

func (orchestrator *DataOrchestrator) DeleteOrphanReleases() (int64, error) {
	return orchestrator.ReleaseStore.DeleteOrphanReleases(orchestrator.db.GetSqlxDb())
}

// -- Watchlists --

func (orchestrator *DataOrchestrator) GetWatchlistEntry(userID uuid.UUID, releaseID int64) (*watchlist.Entry, error) {
	return orchestrator.WatchlistStore.GetEntry(orchestrator.db.GetSqlxDb(), userID, releaseID)
}

func (orchestrator *DataOrchestrator) ListWatchlistEntriesForUser(userID uuid.UUID) ([]*watchlist.Entry, error) {
	return orchestrator.WatchlistStore.ListEntriesForUser(orchestrator.db.GetSqlxDb(), userID)
}

func (orchestrator *DataOrchestrator) SaveWatchlistEntry(entry *watchlist.Entry) error {
	return orchestrator.WatchlistStore.SaveEntry(orchestrator.db.GetSqlxDb(), entry)
}

func (orchestrator *DataOrchestrator) UpdateWatchlistEntry(userID uuid.UUID, releaseID int64, watched *bool, rating *watchlist.Rating, clearRating bool) (*watchlist.Entry, error) {
	return orchestrator.WatchlistStore.UpdateEntry(orchestrator.db.GetSqlxDb(), userID, releaseID, watched, rating, clearRating)
}

func (orchestrator *DataOrchestrator) DeleteWatchlistEntry(userID uuid.UUID, releaseID int64) error {
	return orchestrator.WatchlistStore.DeleteEntry(orchestrator.db.GetSqlxDb(), userID, releaseID)
}

func (orchestrator *DataOrchestrator) ListRatedEntriesInWindow(from time.Time, to time.Time) ([]*watchlist.RatedEntry, error) {
	return orchestrator.WatchlistStore.ListRatedEntriesInWindow(orchestrator.db.GetSqlxDb(), from, to)
}

func (orchestrator *DataOrchestrator) GetLatestLikedReleaseID(userID uuid.UUID) (int64, error) {
	return orchestrator.WatchlistStore.GetLatestLikedReleaseID(orchestrator.db.GetSqlxDb(), userID)
}
