package ranking

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
)

// Recommendation is the result of a genre-overlap recommendation query:
// the seed release the suggestions were derived from (nil when the user has
// nothing to seed from) and the ranked suggestions themselves.
type Recommendation struct {
	Base  *release.Stub   `json:"base"`
	Items []*release.Stub `json:"items"`
}

// Recommend suggests releases sharing genres with a seed release. The seed
// is the explicitly provided release when 'explicitReleaseID' is non-nil;
// otherwise it is inferred from the requesting user's most recently liked
// watchlist entry. Candidates are ranked by the number of genres they share
// with the seed (descending, release ID ascending on ties) and the seed
// itself is never among them.
//
// A user with no liked entries and no explicit seed receives an empty
// recommendation, not an error. An explicit seed which does not resolve
// to a release yields release.ErrReleaseNotFound.
func (service *Service) Recommend(userID uuid.UUID, explicitReleaseID *int64, limit int) (*Recommendation, error) {
	var seedID int64
	if explicitReleaseID != nil {
		seedID = *explicitReleaseID
	} else {
		likedID, err := service.store.GetLatestLikedReleaseID(userID)
		if err != nil {
			if errors.Is(err, watchlist.ErrEntryNotFound) {
				return &Recommendation{Base: nil, Items: []*release.Stub{}}, nil
			}

			return nil, err
		}

		seedID = likedID
	}

	seed, err := service.store.GetRelease(seedID)
	if err != nil {
		// Includes release.ErrReleaseNotFound for an unknown explicit seed,
		// which the caller surfaces as a not-found condition.
		return nil, err
	}

	base := &release.Stub{ID: seed.ID, Title: seed.Title, PosterPath: seed.PosterPath}

	genres, err := service.store.GetGenresForRelease(seed.ID)
	if err != nil {
		return nil, err
	}
	if len(genres) == 0 {
		return &Recommendation{Base: base, Items: []*release.Stub{}}, nil
	}

	genreIDs := make([]int, len(genres))
	for k, v := range genres {
		genreIDs[k] = v.ID
	}

	associations, err := service.store.GetAssociationsForGenres(genreIDs, seed.ID)
	if err != nil {
		return nil, err
	}

	overlap := tallyGenreOverlap(associations)
	ranked := rankByOverlap(overlap, clampLimit(limit))

	items, err := stubsInRankOrder(service.store, ranked)
	if err != nil {
		return nil, err
	}

	return &Recommendation{Base: base, Items: items}, nil
}

// tallyGenreOverlap counts, per candidate release, the number of
// association rows matching the seed's genre set - i.e. how many genres the
// candidate shares with the seed.
func tallyGenreOverlap(associations []*release.GenreAssociation) map[int64]int {
	overlap := make(map[int64]int, len(associations))
	for _, assoc := range associations {
		overlap[assoc.ReleaseID]++
	}

	return overlap
}

func rankByOverlap(overlap map[int64]int, limit int) []int64 {
	ranked := make([]int64, 0, len(overlap))
	for id := range overlap {
		ranked = append(ranked, id)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if overlap[ranked[i]] != overlap[ranked[j]] {
			return overlap[ranked[i]] > overlap[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}
