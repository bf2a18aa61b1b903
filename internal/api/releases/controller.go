package releases

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/ranking"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		ListReleases(filter release.Filter) ([]*release.Release, error)
		GetRelease(releaseID int64) (*release.Release, error)
		GetGenresForRelease(releaseID int64) ([]*release.Genre, error)
		GetWatchlistEntry(userID uuid.UUID, releaseID int64) (*watchlist.Entry, error)
		SearchReleases(query string, limit int) ([]*release.Stub, error)
	}

	RankingService interface {
		Popular(from time.Time, to time.Time, limit int) ([]*release.Stub, error)
		Recommend(userID uuid.UUID, explicitReleaseID *int64, limit int) (*ranking.Recommendation, error)
	}

	AuthProvider interface {
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
	}

	// DetailDto inflates a release with its genres and, where one exists,
	// the requesting user's watchlist entry for it.
	DetailDto struct {
		release.Release
		Genres    []*release.Genre `json:"genres"`
		Watchlist *watchlist.Entry `json:"watchlist"`
	}

	Controller struct {
		store        Store
		rankings     RankingService
		authProvider AuthProvider
	}
)

func New(authProvider AuthProvider, rankings RankingService, store Store) *Controller {
	return &Controller{store, rankings, authProvider}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/search/", controller.search)
	eg.GET("/popular/", controller.popular)
	eg.GET("/recommended/", controller.recommended)
	eg.GET("/:id/", controller.get)
}

// list returns the catalog, ordered by release date ascending, optionally
// narrowed by type, date window and genre query parameters.
func (controller *Controller) list(ec echo.Context) error {
	var filter release.Filter
	if rawType := ec.QueryParam("type"); rawType != "" {
		releaseType := release.Type(rawType)
		if releaseType != release.MOVIE && releaseType != release.TV {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Release type '%s' is not valid", rawType))
		}

		filter.Type = &releaseType
	}

	from, err := optionalDateParam(ec, "from")
	if err != nil {
		return err
	}
	to, err := optionalDateParam(ec, "to")
	if err != nil {
		return err
	}
	filter.From = from
	filter.To = to

	if rawGenre := ec.QueryParam("genreId"); rawGenre != "" {
		genreID, err := strconv.Atoi(rawGenre)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Genre ID is not a valid integer")
		}

		filter.GenreID = &genreID
	}

	releases, err := controller.store.ListReleases(filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, releases)
}

// get returns a single release inflated with its genres and the
// requesting user's watchlist entry (null when not tracked).
func (controller *Controller) get(ec echo.Context) error {
	releaseID, err := parseReleaseID(ec.Param("id"))
	if err != nil {
		return err
	}

	found, err := controller.store.GetRelease(releaseID)
	if err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Release with ID %d does not exist", releaseID))
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	genres, err := controller.store.GetGenresForRelease(releaseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	detail := DetailDto{Release: *found, Genres: genres}
	if authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec); err == nil {
		entry, err := controller.store.GetWatchlistEntry(authUser.UserID, releaseID)
		if err != nil && !errors.Is(err, watchlist.ErrEntryNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, err)
		}

		detail.Watchlist = entry
	}

	return ec.JSON(http.StatusOK, detail)
}

// search ranks stored releases against the query string by title
// similarity.
func (controller *Controller) search(ec echo.Context) error {
	query := ec.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter 'query' is required")
	}

	stubs, err := controller.store.SearchReleases(query, optionalLimitParam(ec))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, stubs)
}

// popular ranks the releases dated within [startDate, endDate) by their
// community like/dislike score.
func (controller *Controller) popular(ec echo.Context) error {
	from, err := requiredDateParam(ec, "startDate")
	if err != nil {
		return err
	}
	to, err := requiredDateParam(ec, "endDate")
	if err != nil {
		return err
	}

	stubs, err := controller.rankings.Popular(*from, *to, optionalLimitParam(ec))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, stubs)
}

// recommended suggests releases sharing genres with a seed release: the
// 'releaseId' query parameter when given, otherwise the requesting user's
// most recently liked watchlist entry.
func (controller *Controller) recommended(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	var explicitReleaseID *int64
	if rawID := ec.QueryParam("releaseId"); rawID != "" {
		releaseID, err := parseReleaseID(rawID)
		if err != nil {
			return err
		}

		explicitReleaseID = &releaseID
	}

	recommendation, err := controller.rankings.Recommend(authUser.UserID, explicitReleaseID, optionalLimitParam(ec))
	if err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Seed release does not exist")
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, recommendation)
}

func parseReleaseID(raw string) (int64, error) {
	releaseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Release ID is not a valid integer")
	}

	return releaseID, nil
}

func optionalDateParam(ec echo.Context, name string) (*time.Time, error) {
	raw := ec.QueryParam(name)
	if raw == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Query parameter '%s' must be a YYYY-MM-DD date", name))
	}

	return &parsed, nil
}

func requiredDateParam(ec echo.Context, name string) (*time.Time, error) {
	parsed, err := optionalDateParam(ec, name)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Query parameter '%s' is required", name))
	}

	return parsed, nil
}

// optionalLimitParam parses the 'limit' query parameter; zero means
// 'no explicit limit' and the consumer applies its default. Absent,
// unparseable and non-positive values all collapse to zero rather than
// erroring.
func optionalLimitParam(ec echo.Context) int {
	limit, err := strconv.Atoi(ec.QueryParam("limit"))
	if err != nil || limit < 0 {
		return 0
	}

	return limit
}
