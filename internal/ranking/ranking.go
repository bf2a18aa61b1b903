package ranking

import (
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
)

// DefaultLimit is the number of ranked releases returned when the caller
// provides no (or a non-positive) limit.
const DefaultLimit = 20

type (
	// Store captures the read access the ranking algorithms need. Both the
	// popularity scorer and the recommendation engine are stateless
	// request/response computations over the store's current contents.
	Store interface {
		GetRelease(releaseID int64) (*release.Release, error)
		GetReleaseStubs(releaseIDs []int64) ([]*release.Stub, error)
		GetGenresForRelease(releaseID int64) ([]*release.Genre, error)
		GetAssociationsForGenres(genreIDs []int, excludeReleaseID int64) ([]*release.GenreAssociation, error)
		ListRatedEntriesInWindow(from time.Time, to time.Time) ([]*watchlist.RatedEntry, error)
		GetLatestLikedReleaseID(userID uuid.UUID) (int64, error)
	}

	Service struct {
		store Store
	}
)

func New(store Store) *Service {
	return &Service{store}
}

// clampLimit normalises a caller-provided result bound; anything
// non-positive falls back to the default.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}

	return limit
}

// stubsInRankOrder fetches the display records for the given IDs and
// returns them in exactly the order of 'rankedIDs' (the store returns rows
// in storage order). IDs which no longer resolve to a release are dropped.
func stubsInRankOrder(store Store, rankedIDs []int64) ([]*release.Stub, error) {
	stubs, err := store.GetReleaseStubs(rankedIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*release.Stub, len(stubs))
	for _, stub := range stubs {
		byID[stub.ID] = stub
	}

	ordered := make([]*release.Stub, 0, len(rankedIDs))
	for _, id := range rankedIDs {
		if stub, ok := byID[id]; ok {
			ordered = append(ordered, stub)
		}
	}

	return ordered, nil
}
