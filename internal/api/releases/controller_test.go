package releases_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/api/releases"
	"github.com/hbomb79/Marquee/internal/ranking"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	searchLimit *int
}

func (store *fakeStore) ListReleases(filter release.Filter) ([]*release.Release, error) {
	return nil, nil
}
func (store *fakeStore) GetRelease(releaseID int64) (*release.Release, error) {
	return nil, release.ErrReleaseNotFound
}
func (store *fakeStore) GetGenresForRelease(releaseID int64) ([]*release.Genre, error) {
	return nil, nil
}
func (store *fakeStore) GetWatchlistEntry(userID uuid.UUID, releaseID int64) (*watchlist.Entry, error) {
	return nil, watchlist.ErrEntryNotFound
}
func (store *fakeStore) SearchReleases(query string, limit int) ([]*release.Stub, error) {
	store.searchLimit = &limit
	return []*release.Stub{}, nil
}

type fakeRankings struct {
	popularLimit   *int
	recommendLimit *int
}

func (rankings *fakeRankings) Popular(from time.Time, to time.Time, limit int) ([]*release.Stub, error) {
	rankings.popularLimit = &limit
	return []*release.Stub{}, nil
}

func (rankings *fakeRankings) Recommend(userID uuid.UUID, explicitReleaseID *int64, limit int) (*ranking.Recommendation, error) {
	rankings.recommendLimit = &limit
	return &ranking.Recommendation{Items: []*release.Stub{}}, nil
}

type fakeAuthProvider struct{}

func (auth *fakeAuthProvider) GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error) {
	return &jwt.AuthenticatedUser{UserID: uuid.New()}, nil
}

func serveRequest(t *testing.T, rankings *fakeRankings, store *fakeStore, target string) *httptest.ResponseRecorder {
	t.Helper()

	ec := echo.New()
	releases.New(&fakeAuthProvider{}, rankings, store).SetRoutes(ec.Group(""))

	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// Absent, non-numeric and negative 'limit' values must all be treated as
// 'no explicit limit' (passed downstream as zero so the consumer's default
// applies), never rejected.
func TestRankedEndpoints_LimitParamFallsBackToDefault(t *testing.T) {
	tests := []struct {
		Summary string
		Query   string
	}{
		{Summary: "Absent", Query: ""},
		{Summary: "NonNumeric", Query: "&limit=abc"},
		{Summary: "Negative", Query: "&limit=-5"},
	}

	for _, test := range tests {
		t.Run("Popular"+test.Summary, func(t *testing.T) {
			rankings := &fakeRankings{}
			rec := serveRequest(t, rankings, &fakeStore{}, "/popular/?startDate=2024-01-01&endDate=2024-02-01"+test.Query)

			assert.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, rankings.popularLimit)
			assert.Zero(t, *rankings.popularLimit)
		})

		t.Run("Recommended"+test.Summary, func(t *testing.T) {
			rankings := &fakeRankings{}
			rec := serveRequest(t, rankings, &fakeStore{}, "/recommended/?releaseId=1"+test.Query)

			assert.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, rankings.recommendLimit)
			assert.Zero(t, *rankings.recommendLimit)
		})
	}
}

func TestSearch_LimitParamFallsBackToDefault(t *testing.T) {
	store := &fakeStore{}
	rec := serveRequest(t, &fakeRankings{}, store, "/search/?query=strike&limit=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.searchLimit)
	assert.Zero(t, *store.searchLimit)
}

func TestRankedEndpoints_ExplicitLimitPassedThrough(t *testing.T) {
	rankings := &fakeRankings{}
	rec := serveRequest(t, rankings, &fakeStore{}, "/popular/?startDate=2024-01-01&endDate=2024-02-01&limit=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, rankings.popularLimit)
	assert.Equal(t, 5, *rankings.popularLimit)
}
