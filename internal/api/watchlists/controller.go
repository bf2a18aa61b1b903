package watchlists

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		GetRelease(releaseID int64) (*release.Release, error)
		GetGenresForRelease(releaseID int64) ([]*release.Genre, error)
		ListWatchlistEntriesForUser(userID uuid.UUID) ([]*watchlist.Entry, error)
		SaveWatchlistEntry(entry *watchlist.Entry) error
		UpdateWatchlistEntry(userID uuid.UUID, releaseID int64, watched *bool, rating *watchlist.Rating, clearRating bool) (*watchlist.Entry, error)
		DeleteWatchlistEntry(userID uuid.UUID, releaseID int64) error
	}

	AuthProvider interface {
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
	}

	AddRequest struct {
		ReleaseID int64              `json:"releaseId"`
		Watched   bool               `json:"watched"`
		Rating    *watchlist.Rating  `json:"rating"`
	}

	// UpdateRequest distinguishes between an absent rating (leave it
	// alone) and an explicit null (clear it), so it unmarshals by hand.
	UpdateRequest struct {
		Watched        *bool
		Rating         *watchlist.Rating
		RatingProvided bool
	}

	// EntryDto inflates a watchlist entry with the tracked release and
	// its genres for display.
	EntryDto struct {
		*watchlist.Entry
		Release *release.Release `json:"release"`
		Genres  []*release.Genre `json:"genres"`
	}

	Controller struct {
		store        Store
		authProvider AuthProvider
	}
)

func (request *UpdateRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Watched *bool           `json:"watched"`
		Rating  json.RawMessage `json:"rating"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	request.Watched = raw.Watched
	if raw.Rating != nil {
		request.RatingProvided = true
		if string(raw.Rating) != "null" {
			var rating watchlist.Rating
			if err := json.Unmarshal(raw.Rating, &rating); err != nil {
				return err
			}

			request.Rating = &rating
		}
	}

	return nil
}

func New(authProvider AuthProvider, store Store) *Controller {
	return &Controller{store, authProvider}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/", controller.add)
	eg.PATCH("/:releaseId/", controller.update)
	eg.DELETE("/:releaseId/", controller.delete)
}

func (controller *Controller) list(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	entries, err := controller.store.ListWatchlistEntriesForUser(authUser.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	dtos := make([]EntryDto, len(entries))
	for k, entry := range entries {
		tracked, err := controller.store.GetRelease(entry.ReleaseID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err)
		}

		genres, err := controller.store.GetGenresForRelease(entry.ReleaseID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err)
		}

		dtos[k] = EntryDto{Entry: entry, Release: tracked, Genres: genres}
	}

	return ec.JSON(http.StatusOK, dtos)
}

// add starts tracking a release for the requesting user. Adding a release
// which is already tracked replaces the entry's watched flag and rating;
// at most one entry per (user, release) pair ever exists.
func (controller *Controller) add(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	var request AddRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body invalid")
	}
	if err := validateRating(request.Rating); err != nil {
		return err
	}

	if _, err := controller.store.GetRelease(request.ReleaseID); err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Release with ID %d does not exist", request.ReleaseID))
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	entry := &watchlist.Entry{
		UserID:    authUser.UserID,
		ReleaseID: request.ReleaseID,
		Watched:   request.Watched,
		Rating:    request.Rating,
	}
	if err := controller.store.SaveWatchlistEntry(entry); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusCreated, entry)
}

// update partially updates the entry for the release in the path: a
// missing field is untouched, 'rating: null' clears the rating.
func (controller *Controller) update(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	releaseID, err := parseReleaseID(ec.Param("releaseId"))
	if err != nil {
		return err
	}

	var request UpdateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body invalid")
	}
	if err := validateRating(request.Rating); err != nil {
		return err
	}

	clearRating := request.RatingProvided && request.Rating == nil
	entry, err := controller.store.UpdateWatchlistEntry(authUser.UserID, releaseID, request.Watched, request.Rating, clearRating)
	if err != nil {
		if errors.Is(err, watchlist.ErrEntryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Release with ID %d is not on the watchlist", releaseID))
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, entry)
}

func (controller *Controller) delete(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	releaseID, err := parseReleaseID(ec.Param("releaseId"))
	if err != nil {
		return err
	}

	if err := controller.store.DeleteWatchlistEntry(authUser.UserID, releaseID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.NoContent(http.StatusNoContent)
}

func parseReleaseID(raw string) (int64, error) {
	releaseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Release ID is not a valid integer")
	}

	return releaseID, nil
}

func validateRating(rating *watchlist.Rating) error {
	if rating != nil && *rating != watchlist.LIKE && *rating != watchlist.DISLIKE {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Rating '%s' is not valid; expected LIKE or DISLIKE", *rating))
	}

	return nil
}
