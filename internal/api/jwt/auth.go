package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/user"
	"github.com/hbomb79/Marquee/pkg/logger"
	"github.com/hbomb79/Marquee/pkg/sync"
	"github.com/labstack/echo/v4"
)

var (
	ErrAuthTokenMissing = errors.New("request does not contain required auth token in cookies")

	log = logger.Get("JWT-Auth")
)

const (
	AuthTokenCookieName = "auth-token"
	AuthTokenLifespan   = time.Minute * 30

	RefreshTokenCookieName = "refresh-token"
	RefreshTokenLifespan   = time.Hour * 24 * 30 // 30 days
)

type (
	AuthenticatedUser struct {
		UserID uuid.UUID
	}

	tokenClaims struct {
		jwt.RegisteredClaims
		UserID uuid.UUID `json:"user_id"`
	}

	Store interface {
		RecordUserLogin(userID uuid.UUID) error
		RecordUserRefresh(userID uuid.UUID) error
		GetUserWithID(ID uuid.UUID) (*user.User, error)
	}

	jwtAuthProvider struct {
		store                  Store
		authTokenSecret        []byte
		refreshTokenSecret     []byte
		refreshTokenCookiePath string

		// This map (acting as a set) is used to keep track of
		// any token which we have explicitly revoked (for example,
		// when a user logs out, the auth and refresh token are revoked).
		//
		// NB: Tokens are removed from this set when they are cleaned up
		// (which happens automatically some time after their expiration).
		blacklistedTokens *sync.TypedSyncMap[string, struct{}]

		// This map is used to keep track of which tokens are currently
		// 'active' for each user. This map is automatically monitored
		// by the auth provider to clear out tokens shortly after they expire.
		// When we wish to revoke all tokens associated with a specific user, we
		// can use this map to fetch the tokens.
		//
		// NB: A token does NOT need to exist here in order to be valid, this
		// is simply a mechanism to track active tokens for the purpose of
		// revocation if requested.
		//
		// NB': Tokens are removed from this map when they are cleaned up
		// (which happens automatically some time after their expiration).
		userTokens *sync.TypedSyncMap[uuid.UUID, []string]
	}
)

// NewJwtAuth creates a new authentication provider which
// uses JWT tokens to authenticate user actions.
// The constructor accepts a Store which is used for fetching
// user information during token generation, as well as the
// HTTP path which should restrict the transmission of the
// refresh token (it should only be sent to the server when it's going
// to be used).
// Finally, the two secrets which are used to sign the tokens. These two
// secrets should not match, and should be >= 256 bits in size
func NewJwtAuth(store Store, refreshRoutePath string, authTokenSecret []byte, refreshTokenSecret []byte) *jwtAuthProvider {
	return &jwtAuthProvider{
		store,
		authTokenSecret,
		refreshTokenSecret,
		refreshRoutePath,
		new(sync.TypedSyncMap[string, struct{}]),
		new(sync.TypedSyncMap[uuid.UUID, []string])}
}

// GenerateTokensAndSetCookies generates an auth token and a refresh token
// using the appropriate secrets and expiries, before storing both of the
// tokens in the response cookies.
func (auth *jwtAuthProvider) GenerateTokensAndSetCookies(ec echo.Context, userID uuid.UUID) error {
	authToken, authTokenExp, err := auth.generateToken(userID, auth.authTokenSecret, AuthTokenLifespan)
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}

	refreshToken, refreshTokenExp, err := auth.generateToken(userID, auth.refreshTokenSecret, RefreshTokenLifespan)
	if err != nil {
		return fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Don't block the request waiting for these
	go func() {
		if err := auth.store.RecordUserLogin(userID); err != nil {
			log.Warnf("Failed to record user login for %v: %v\n", userID, err)
		}
		if err := auth.store.RecordUserRefresh(userID); err != nil {
			log.Warnf("Failed to record user refresh for %v: %v\n", userID, err)
		}
	}()

	// Update our tracked list of tokens for this user, and schedule cleanup
	// of this token
	actual, loaded := auth.userTokens.LoadOrStore(userID, []string{authToken, refreshToken})
	if loaded {
		auth.userTokens.Store(userID, append(actual, authToken, refreshToken))
	}

	auth.scheduleUserTokenCleanup(userID, authToken, authTokenExp)
	auth.scheduleUserTokenCleanup(userID, refreshToken, refreshTokenExp)

	ec.SetCookie(createTokenCookie(AuthTokenCookieName, "/", authToken, authTokenExp))
	ec.SetCookie(createTokenCookie(RefreshTokenCookieName, auth.refreshTokenCookiePath, refreshToken, refreshTokenExp))
	return nil
}

// GetAuthenticatedUserFromContext provides a way for endpoints
// to extract the users ID from the context of their request. An
// error will be returned if no valid user can be found.
func (auth *jwtAuthProvider) GetAuthenticatedUserFromContext(ec echo.Context) (*AuthenticatedUser, error) {
	u, ok := ec.Get("user").(*AuthenticatedUser)
	if !ok {
		return nil, errors.New("no user found in request context")
	}

	return u, nil
}

// RevokeTokensInContext revokes the auth and refresh token in this
// request context, assuming they are provided. A missing token/cookie
// is ignored.
func (auth *jwtAuthProvider) RevokeTokensInContext(ec echo.Context) {
	if cookie, err := ec.Cookie(AuthTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value)
	}
	if cookie, err := ec.Cookie(RefreshTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value)
	}
}

// RevokeAllForUser finds all the tokens we've granted to a specified
// user ID and revokes all of them (if any). This will require that the
// specified user logs in again on all of their devices.
func (auth *jwtAuthProvider) RevokeAllForUser(userID uuid.UUID) error {
	grantedTokens, ok := auth.userTokens.Load(userID)
	if !ok || len(grantedTokens) == 0 {
		return nil
	}

	for _, granted := range grantedTokens {
		auth.revokeToken(granted)
	}

	return nil
}

// RefreshTokens generates new auth and refresh tokens and stores them in
// the response cookies IF the request contains a valid refresh token.
func (auth *jwtAuthProvider) RefreshTokens(ec echo.Context) error {
	cookie, err := ec.Cookie(RefreshTokenCookieName)
	if err != nil || cookie == nil {
		return ErrAuthTokenMissing
	}

	userID, err := auth.validateJWT(cookie.Value, auth.refreshTokenSecret)
	if err != nil {
		return fmt.Errorf("failed to refresh: %w", err)
	}

	return auth.GenerateTokensAndSetCookies(ec, *userID)
}

// RequireAuthMiddleware returns an echo middleware which rejects any
// request lacking a valid (signed, unexpired, unrevoked) auth token in its
// cookies. The authenticated user is stored in the request context for
// handlers to extract.
func (auth *jwtAuthProvider) RequireAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			tokenCookie, err := ec.Cookie(AuthTokenCookieName)
			if err != nil || tokenCookie == nil {
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(ErrAuthTokenMissing)
			}

			userID, err := auth.validateJWT(tokenCookie.Value, auth.authTokenSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
			}

			ec.Set("user", &AuthenticatedUser{UserID: *userID})
			return next(ec)
		}
	}
}

// validateJWT ensures that the provided token is:
//   - signed using the same secret/algorithm as we expect
//   - contains a valid userID
//   - not expired
//   - not blacklisted
//
// The user ID embedded in the token claims is returned on success.
func (auth *jwtAuthProvider) validateJWT(token string, secret []byte) (*uuid.UUID, error) {
	tokenClaims := &jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(
		token,
		tokenClaims,
		func(token *jwt.Token) (interface{}, error) { return secret, nil },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if tkn == nil || !tkn.Valid {
		return nil, errors.New("failed to verify JWT: token is expired or invalid")
	}

	userID, err := auth.getUserIdFromClaims(*tokenClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to extract userID from JWT: %w", err)
	}

	if _, ok := auth.blacklistedTokens.Load(token); ok {
		return nil, errors.New("failed to verify JWT: token has been revoked")
	}

	return userID, nil
}

// generateToken accepts a userID and generates a signed token embedding
// it, expiring after the given lifespan. The user is fetched first so a
// deleted user can never be granted new tokens.
func (auth *jwtAuthProvider) generateToken(userID uuid.UUID, secret []byte, lifespan time.Duration) (string, time.Time, error) {
	if _, err := auth.store.GetUserWithID(userID); err != nil {
		return "", time.Now(), fmt.Errorf("failed to fetch user %s during token generation: %w", userID, err)
	}

	exp := time.Now().Add(lifespan)
	claims := &tokenClaims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Now(), err
	}

	return tokenString, exp, nil
}

// scheduleUserTokenCleanup will remove the specified token from the users token map
// at the time specified. This allows for us to store any newly generated
// user tokens inside the map without worrying about the size of the map
// growing with no limit
func (auth *jwtAuthProvider) scheduleUserTokenCleanup(userID uuid.UUID, token string, expiry time.Time) {
	until := time.Until(expiry.Add(time.Second * 5))
	log.Debugf("Scheduling cleanup of a token for user %s in %s\n", userID, until)

	time.AfterFunc(until, func() {
		log.Debugf("Cleaning up token %s for user %s as it has expired (~5 seconds ago)\n", token, userID)

		// Clear from blacklist as it won't be accepted now due to expiring anyway
		auth.blacklistedTokens.Delete(token)

		// Clear from our user tokens mapping as the token will not need to be revoked now that it has expired
		userTokens, ok := auth.userTokens.Load(userID)
		if ok && len(userTokens) > 0 {
			newUserTokens := slices.DeleteFunc(userTokens, func(tk string) bool { return tk == token })
			auth.userTokens.Store(userID, newUserTokens)
		}
	})
}

func (auth *jwtAuthProvider) getUserIdFromClaims(claims jwt.MapClaims) (*uuid.UUID, error) {
	if userID, ok := claims["user_id"]; ok {
		if id, err := uuid.Parse(userID.(string)); err != nil {
			return nil, fmt.Errorf("failed to extract user ID from JWT claims: %w", err)
		} else {
			return &id, nil
		}
	} else {
		return nil, errors.New("failed to extract user ID from JWT claims: missing")
	}
}

func (auth *jwtAuthProvider) revokeToken(token string) {
	log.Debugf("Revoking token %s\n", token)
	auth.blacklistedTokens.Store(token, struct{}{})
}

func createTokenCookie(name string, path string, token string, expiration time.Time) *http.Cookie {
	cookie := new(http.Cookie)
	cookie.Name = name
	cookie.Value = token
	cookie.Expires = expiration
	cookie.Path = path
	cookie.HttpOnly = true

	return cookie
}
