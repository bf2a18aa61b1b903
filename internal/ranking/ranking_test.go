package ranking_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/ranking"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/stretchr/testify/assert"
)

// mockStore is a fixture-backed ranking.Store. Releases, genres and
// watchlist entries are declared up front by each test; queries are
// answered from those fixtures the same way the SQL store would answer
// them (storage order for stubs, half-open window for rated entries).
type mockStore struct {
	releases     map[int64]*release.Release
	genres       map[int64][]*release.Genre
	associations []*release.GenreAssociation
	entries      []*watchlist.RatedEntry
	latestLiked  map[uuid.UUID]int64
}

func newMockStore() *mockStore {
	return &mockStore{
		releases:    make(map[int64]*release.Release),
		genres:      make(map[int64][]*release.Genre),
		latestLiked: make(map[uuid.UUID]int64),
	}
}

func (mock *mockStore) addRelease(id int64, title string, genreIDs ...int) {
	mock.releases[id] = &release.Release{ID: id, Title: title}
	for _, genreID := range genreIDs {
		mock.genres[id] = append(mock.genres[id], &release.Genre{ID: genreID})
		mock.associations = append(mock.associations, &release.GenreAssociation{ReleaseID: id, GenreID: genreID})
	}
}

func (mock *mockStore) addRating(releaseID int64, rating *watchlist.Rating, date time.Time) {
	mock.entries = append(mock.entries, &watchlist.RatedEntry{ReleaseID: releaseID, Rating: rating, ReleaseDate: date})
}

func (mock *mockStore) GetRelease(releaseID int64) (*release.Release, error) {
	if found, ok := mock.releases[releaseID]; ok {
		return found, nil
	}

	return nil, release.ErrReleaseNotFound
}

func (mock *mockStore) GetReleaseStubs(releaseIDs []int64) ([]*release.Stub, error) {
	wanted := make(map[int64]struct{}, len(releaseIDs))
	for _, id := range releaseIDs {
		wanted[id] = struct{}{}
	}

	// Deliberately NOT in the requested order; the SQL store returns
	// rows in storage order and the service must re-rank them.
	stubs := make([]*release.Stub, 0, len(releaseIDs))
	for id := int64(0); id < 1000; id++ {
		if _, ok := wanted[id]; !ok {
			continue
		}
		if found, ok := mock.releases[id]; ok {
			stubs = append(stubs, &release.Stub{ID: found.ID, Title: found.Title, PosterPath: found.PosterPath})
		}
	}

	return stubs, nil
}

func (mock *mockStore) GetGenresForRelease(releaseID int64) ([]*release.Genre, error) {
	return mock.genres[releaseID], nil
}

func (mock *mockStore) GetAssociationsForGenres(genreIDs []int, excludeReleaseID int64) ([]*release.GenreAssociation, error) {
	wanted := make(map[int]struct{}, len(genreIDs))
	for _, id := range genreIDs {
		wanted[id] = struct{}{}
	}

	matches := make([]*release.GenreAssociation, 0)
	for _, assoc := range mock.associations {
		if assoc.ReleaseID == excludeReleaseID {
			continue
		}
		if _, ok := wanted[assoc.GenreID]; ok {
			matches = append(matches, assoc)
		}
	}

	return matches, nil
}

func (mock *mockStore) ListRatedEntriesInWindow(from time.Time, to time.Time) ([]*watchlist.RatedEntry, error) {
	matches := make([]*watchlist.RatedEntry, 0)
	for _, entry := range mock.entries {
		if !entry.ReleaseDate.Before(from) && entry.ReleaseDate.Before(to) {
			matches = append(matches, entry)
		}
	}

	return matches, nil
}

func (mock *mockStore) GetLatestLikedReleaseID(userID uuid.UUID) (int64, error) {
	if id, ok := mock.latestLiked[userID]; ok {
		return id, nil
	}

	return 0, watchlist.ErrEntryNotFound
}

func ratingOf(rating watchlist.Rating) *watchlist.Rating {
	return &rating
}

func stubIDs(stubs []*release.Stub) []int64 {
	ids := make([]int64, len(stubs))
	for k, v := range stubs {
		ids[k] = v.ID
	}

	return ids
}

func Test_Popular_ScoresLikesAgainstDislikes(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "one")
	store.addRelease(2, "two")
	store.addRelease(3, "three")

	inWindow := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	store.addRating(1, ratingOf(watchlist.LIKE), inWindow)
	store.addRating(1, ratingOf(watchlist.LIKE), inWindow)
	store.addRating(1, ratingOf(watchlist.DISLIKE), inWindow)
	store.addRating(2, ratingOf(watchlist.LIKE), inWindow)
	store.addRating(2, ratingOf(watchlist.LIKE), inWindow)
	store.addRating(3, ratingOf(watchlist.DISLIKE), inWindow)

	service := ranking.New(store)
	popular, err := service.Popular(
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		10,
	)

	assert.Nil(t, err)
	assert.Equal(t, []int64{2, 1, 3}, stubIDs(popular))
}

func Test_Popular_WindowIsHalfOpen(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "on lower bound")
	store.addRelease(2, "on upper bound")
	store.addRelease(3, "before window")

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store.addRating(1, ratingOf(watchlist.LIKE), from)
	store.addRating(2, ratingOf(watchlist.LIKE), to)
	store.addRating(3, ratingOf(watchlist.LIKE), from.AddDate(0, 0, -1))

	service := ranking.New(store)
	popular, err := service.Popular(from, to, 10)

	assert.Nil(t, err)
	assert.Equal(t, []int64{1}, stubIDs(popular))
}

func Test_Popular_ScoreTiesBreakOnReleaseID(t *testing.T) {
	store := newMockStore()
	store.addRelease(7, "seven")
	store.addRelease(3, "three")
	store.addRelease(5, "five")

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	store.addRating(7, ratingOf(watchlist.LIKE), date)
	store.addRating(3, ratingOf(watchlist.LIKE), date)
	store.addRating(5, ratingOf(watchlist.LIKE), date)

	service := ranking.New(store)
	popular, err := service.Popular(date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), 10)

	assert.Nil(t, err)
	assert.Equal(t, []int64{3, 5, 7}, stubIDs(popular))
}

func Test_Popular_UnratedEntriesStillRankTheirRelease(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "rated")
	store.addRelease(2, "watchlisted but unrated")

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	store.addRating(1, ratingOf(watchlist.DISLIKE), date)
	store.addRating(2, nil, date)

	service := ranking.New(store)
	popular, err := service.Popular(date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), 10)

	// A zero score still outranks a negative one.
	assert.Nil(t, err)
	assert.Equal(t, []int64{2, 1}, stubIDs(popular))
}

func Test_Popular_LimitTruncatesRanking(t *testing.T) {
	store := newMockStore()
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 5; id++ {
		store.addRelease(id, "release")
		for i := int64(0); i < id; i++ {
			store.addRating(id, ratingOf(watchlist.LIKE), date)
		}
	}

	service := ranking.New(store)
	popular, err := service.Popular(date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), 2)

	assert.Nil(t, err)
	assert.Equal(t, []int64{5, 4}, stubIDs(popular))
}

func Test_Popular_EmptyWindowYieldsEmptyResult(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "one")
	store.addRating(1, ratingOf(watchlist.LIKE), time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))

	service := ranking.New(store)
	popular, err := service.Popular(
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		10,
	)

	assert.Nil(t, err)
	assert.Empty(t, popular)
}

func Test_Recommend_RanksByGenreOverlap(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "seed", 10, 20, 30)
	store.addRelease(2, "shares all three", 10, 20, 30)
	store.addRelease(3, "shares one", 30)
	store.addRelease(4, "shares two", 10, 20)
	store.addRelease(5, "shares none", 40)

	service := ranking.New(store)
	seedID := int64(1)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 10)

	assert.Nil(t, err)
	assert.Equal(t, int64(1), recommendation.Base.ID)
	assert.Equal(t, []int64{2, 4, 3}, stubIDs(recommendation.Items))
}

func Test_Recommend_SeedIsNeverRecommended(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "seed", 10)
	store.addRelease(2, "candidate", 10)

	service := ranking.New(store)
	seedID := int64(1)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 10)

	assert.Nil(t, err)
	assert.NotContains(t, stubIDs(recommendation.Items), int64(1))
	assert.Equal(t, []int64{2}, stubIDs(recommendation.Items))
}

func Test_Recommend_OverlapTiesBreakOnReleaseID(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "seed", 10, 20)
	store.addRelease(9, "nine", 10)
	store.addRelease(4, "four", 20)
	store.addRelease(6, "six", 10)

	service := ranking.New(store)
	seedID := int64(1)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 10)

	assert.Nil(t, err)
	assert.Equal(t, []int64{4, 6, 9}, stubIDs(recommendation.Items))
}

func Test_Recommend_SeedsFromLatestLikedEntry(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "liked", 10)
	store.addRelease(2, "candidate", 10)

	userID := uuid.New()
	store.latestLiked[userID] = 1

	service := ranking.New(store)
	recommendation, err := service.Recommend(userID, nil, 10)

	assert.Nil(t, err)
	assert.Equal(t, int64(1), recommendation.Base.ID)
	assert.Equal(t, []int64{2}, stubIDs(recommendation.Items))
}

func Test_Recommend_NoSeedAvailable(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "unliked", 10)

	service := ranking.New(store)
	recommendation, err := service.Recommend(uuid.New(), nil, 10)

	assert.Nil(t, err)
	assert.Nil(t, recommendation.Base)
	assert.Empty(t, recommendation.Items)
}

func Test_Recommend_UnknownExplicitSeed(t *testing.T) {
	store := newMockStore()

	service := ranking.New(store)
	seedID := int64(999)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 10)

	assert.Nil(t, recommendation)
	assert.ErrorIs(t, err, release.ErrReleaseNotFound)
}

func Test_Recommend_SeedWithoutGenres(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "genreless seed")
	store.addRelease(2, "candidate", 10)

	service := ranking.New(store)
	seedID := int64(1)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 10)

	assert.Nil(t, err)
	assert.Equal(t, int64(1), recommendation.Base.ID)
	assert.Empty(t, recommendation.Items)
}

func Test_Recommend_LimitTruncatesRanking(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "seed", 10)
	store.addRelease(2, "two", 10)
	store.addRelease(3, "three", 10)
	store.addRelease(4, "four", 10)

	service := ranking.New(store)
	seedID := int64(1)
	recommendation, err := service.Recommend(uuid.New(), &seedID, 2)

	assert.Nil(t, err)
	assert.Equal(t, []int64{2, 3}, stubIDs(recommendation.Items))
}

func Test_Popular_NonPositiveLimitFallsBackToDefault(t *testing.T) {
	store := newMockStore()
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 25; id++ {
		store.addRelease(id, fmt.Sprintf("release %d", id))
		store.addRating(id, ratingOf(watchlist.LIKE), date)
	}

	service := ranking.New(store)
	for _, limit := range []int{0, -1} {
		popular, err := service.Popular(date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), limit)

		assert.Nil(t, err)
		assert.Len(t, popular, ranking.DefaultLimit)
	}
}

func Test_Recommend_NonPositiveLimitFallsBackToDefault(t *testing.T) {
	store := newMockStore()
	store.addRelease(1, "seed", 10)
	for id := int64(2); id <= 27; id++ {
		store.addRelease(id, fmt.Sprintf("candidate %d", id), 10)
	}

	service := ranking.New(store)
	seedID := int64(1)
	for _, limit := range []int{0, -1} {
		recommendation, err := service.Recommend(uuid.New(), &seedID, limit)

		assert.Nil(t, err)
		assert.Len(t, recommendation.Items, ranking.DefaultLimit)
	}
}
