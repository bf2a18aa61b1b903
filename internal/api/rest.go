package api

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Marquee/internal/api/auth"
	"github.com/hbomb79/Marquee/internal/api/genres"
	"github.com/hbomb79/Marquee/internal/api/ingests"
	"github.com/hbomb79/Marquee/internal/api/releases"
	"github.com/hbomb79/Marquee/internal/api/users"
	"github.com/hbomb79/Marquee/internal/api/watchlists"
	"github.com/hbomb79/Marquee/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore represents a union of all the controller store requirements
	dataStore interface {
		auth.Store
		genres.Store
		releases.Store
		watchlists.Store
		users.Store
	}

	// authProvider is the union of the token operations the controllers
	// and the gateway's middleware need.
	authProvider interface {
		auth.AuthProvider
		RequireAuthMiddleware() echo.MiddlewareFunc
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsibility
	// is to create the routes Marquee exposes and to enforce the auth middleware
	// where applicable.
	RestGateway struct {
		config              *RestConfig
		ec                  *echo.Echo
		authController      *auth.Controller
		genreController     controller
		releaseController   controller
		watchlistController controller
		userController      controller
		ingestController    controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Each controller requires access
// to a data store and/or service, which are provided as arguments.
func NewRestGateway(
	config *RestConfig,
	authProvider authProvider,
	ingestService ingests.Service,
	rankingService releases.RankingService,
	store dataStore,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	gateway := &RestGateway{
		config:              config,
		ec:                  ec,
		authController:      auth.New(validate, authProvider, store),
		genreController:     genres.New(store),
		releaseController:   releases.New(authProvider, rankingService, store),
		watchlistController: watchlists.New(authProvider, store),
		userController:      users.New(authProvider, store),
		ingestController:    ingests.New(ingestService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowCredentials: true,
	}))
	ec.Pre(middleware.AddTrailingSlash())

	requireAuth := authProvider.RequireAuthMiddleware()

	authGroup := ec.Group("/api/marquee/v1/auth")
	gateway.authController.SetRoutes(authGroup)
	gateway.authController.SetAuthenticatedRoutes(ec.Group("/api/marquee/v1/auth", requireAuth))

	genreGroup := ec.Group("/api/marquee/v1/genres")
	gateway.genreController.SetRoutes(genreGroup)

	releaseGroup := ec.Group("/api/marquee/v1/releases", requireAuth)
	gateway.releaseController.SetRoutes(releaseGroup)

	watchlistGroup := ec.Group("/api/marquee/v1/watchlist", requireAuth)
	gateway.watchlistController.SetRoutes(watchlistGroup)

	userGroup := ec.Group("/api/marquee/v1/user", requireAuth)
	gateway.userController.SetRoutes(userGroup)

	ingestGroup := ec.Group("/api/marquee/v1/ingests", requireAuth)
	gateway.ingestController.SetRoutes(ingestGroup)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
