package users

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/user"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		GetUserPreferences(userID uuid.UUID) (*user.Preferences, error)
		ReplaceUserPreferences(userID uuid.UUID, genreIDs []int) error
	}

	AuthProvider interface {
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
	}

	UpdatePreferencesRequest struct {
		GenreIDs []int `json:"genreIds"`
	}

	Controller struct {
		store        Store
		authProvider AuthProvider
	}
)

func New(authProvider AuthProvider, store Store) *Controller {
	return &Controller{store, authProvider}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/preferences/", controller.getPreferences)
	eg.POST("/preferences/", controller.updatePreferences)
}

func (controller *Controller) getPreferences(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	preferences, err := controller.store.GetUserPreferences(authUser.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, preferences)
}

// updatePreferences replaces the user's preferred genre set wholesale and
// marks their onboarding as complete. An empty set is a valid selection.
func (controller *Controller) updatePreferences(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	var request UpdatePreferencesRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body invalid")
	}

	if err := controller.store.ReplaceUserPreferences(authUser.UserID, request.GenreIDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	preferences, err := controller.store.GetUserPreferences(authUser.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, preferences)
}
