package auth

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/user"
	"github.com/hbomb79/Marquee/pkg/logger"
	"github.com/labstack/echo/v4"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized)
	log             = logger.Get("AuthController")
)

type (
	Store interface {
		CreateUser(email string, rawPassword []byte) (*user.User, error)
		GetUserWithEmailAndPassword(email string, rawPassword []byte) (*user.User, error)
		GetUserWithID(ID uuid.UUID) (*user.User, error)
	}

	AuthProvider interface {
		RefreshTokens(ec echo.Context) error
		GenerateTokensAndSetCookies(ec echo.Context, userID uuid.UUID) error
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
		RevokeTokensInContext(ec echo.Context)
		RevokeAllForUser(userID uuid.UUID) error
	}

	RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=128"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	Controller struct {
		store        Store
		authProvider AuthProvider
		validate     *validator.Validate
	}
)

func New(validate *validator.Validate, authProvider AuthProvider, store Store) *Controller {
	return &Controller{store, authProvider, validate}
}

// SetRoutes installs the unauthenticated auth routes: registration, login
// and token refresh must all be reachable without an auth token.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/register/", controller.register)
	eg.POST("/login/", controller.login)
	eg.POST("/refresh/", controller.refresh)
}

// SetAuthenticatedRoutes installs the routes which require a valid auth
// token; the gateway is expected to mount these behind the auth middleware.
func (controller *Controller) SetAuthenticatedRoutes(eg *echo.Group) {
	eg.POST("/logout/", controller.logoutSession)
	eg.POST("/logout-all/", controller.logoutAll)
	eg.GET("/current-user/", controller.getCurrentUser)
}

// register creates a new user with the provided email address and
// password, and logs them straight in (same token cookies as login).
func (controller *Controller) register(ec echo.Context) error {
	var request RegisterRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body invalid")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	newUser, err := controller.store.CreateUser(request.Email, []byte(request.Password))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "Email address is already registered")
		}

		log.Errorf("Failed to register user: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	if err := controller.authProvider.GenerateTokensAndSetCookies(ec, newUser.ID); err != nil {
		log.Errorf("Failed to issue tokens for newly registered user: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusCreated, newUser)
}

// login accepts a POST request containing the alleged email and password
// in the body and:
//   - Asserts that the user with the email provided exists
//   - The provided password is valid
//   - Generates an auth token, and a refresh token, and stores
//     these in the requests cookies
func (controller *Controller) login(ec echo.Context) error {
	var request LoginRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body invalid")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	found, err := controller.store.GetUserWithEmailAndPassword(request.Email, []byte(request.Password))
	if err != nil {
		log.Warnf("Failed to authenticate due to error: %v\n", err)
		return errUnauthorized
	}

	if err := controller.authProvider.GenerateTokensAndSetCookies(ec, found.ID); err != nil {
		log.Warnf("Failed to authenticate due to error: %v\n", err)
		return errUnauthorized
	}

	return ec.JSON(http.StatusOK, found)
}

// refresh allows a client to obtain a new auth and refresh token by
// providing a valid refresh token. The new tokens are stored
// in the requests cookies, same as login.
func (controller *Controller) refresh(ec echo.Context) error {
	if err := controller.authProvider.RefreshTokens(ec); err != nil {
		log.Errorf("Failed to refresh: %s\n", err)
		return errUnauthorized
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) logoutSession(ec echo.Context) error {
	controller.authProvider.RevokeTokensInContext(ec)
	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) logoutAll(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	if err := controller.authProvider.RevokeAllForUser(authUser.UserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) getCurrentUser(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		log.Errorf("Failed to get current user due to error: %v\n", err)
		return errUnauthorized
	}

	found, err := controller.store.GetUserWithID(authUser.UserID)
	if err != nil {
		log.Errorf("Failed to get current user due to error: %v\n", err)
		return errUnauthorized
	}

	return ec.JSON(http.StatusOK, found)
}
