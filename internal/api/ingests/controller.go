package ingests

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type (
	// Service is the catalog refresh service the controller triggers and
	// inspects.
	Service interface {
		RefreshNow()
		LastRefreshTime() *time.Time
		NextRefreshTime(now time.Time) time.Time
	}

	StatusDto struct {
		LastRefresh *time.Time `json:"lastRefresh"`
		NextRefresh time.Time  `json:"nextRefresh"`
	}

	Controller struct{ service Service }
)

func New(service Service) *Controller { return &Controller{service} }

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.status)
	eg.POST("/refresh/", controller.refresh)
}

func (controller *Controller) status(ec echo.Context) error {
	return ec.JSON(http.StatusOK, StatusDto{
		LastRefresh: controller.service.LastRefreshTime(),
		NextRefresh: controller.service.NextRefreshTime(time.Now()),
	})
}

// refresh schedules an immediate catalog refresh; the refresh itself runs
// asynchronously on the ingest service.
func (controller *Controller) refresh(ec echo.Context) error {
	controller.service.RefreshNow()
	return ec.NoContent(http.StatusAccepted)
}
