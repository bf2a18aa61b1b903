package genres

import (
	"net/http"

	"github.com/hbomb79/Marquee/internal/release"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		ListGenres() ([]*release.Genre, error)
	}

	Controller struct{ store Store }
)

func New(store Store) *Controller { return &Controller{store} }

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
}

func (controller *Controller) list(ec echo.Context) error {
	genres, err := controller.store.ListGenres()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, genres)
}
