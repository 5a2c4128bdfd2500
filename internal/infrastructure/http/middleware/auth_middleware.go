package middleware

import (
	"errors"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-calls/errors"
	"github.com/johnquangdev/meeting-calls/pkg/jwt"
)

const (
	// UserIDKey holds the authenticated identity (uuid.UUID) in the echo context
	UserIDKey = "user_id"
	// ClaimsKey holds the verified *jwt.Claims
	ClaimsKey = "claims"
)

// TokenValidator verifies an access token
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// EchoAuth returns an Echo middleware that validates the access token and
// sets "user_id" and "claims" into the Echo context
func EchoAuth(tokens TokenValidator, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(appErrors.ErrUnauthenticated().HTTPCode, "Missing authorization token")
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				logger.Debug("rejected access token",
					zap.String("path", c.Path()),
					zap.Error(err),
				)
				if errors.Is(err, gojwt.ErrTokenExpired) {
					expired := appErrors.ErrTokenExpired()
					return echo.NewHTTPError(expired.HTTPCode, expired.Message)
				}
				invalid := appErrors.ErrInvalidToken()
				return echo.NewHTTPError(invalid.HTTPCode, invalid.Message)
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID returns the identity set by EchoAuth
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(UserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// extractToken reads the bearer header, then the cookie, then the
// access_token query parameter browsers use for websocket upgrades
func extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie.Value
	}

	return c.QueryParam("access_token")
}
