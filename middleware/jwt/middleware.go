package jwt

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
)

const (
	UserIDKey = "_jwt_user_id"
	ClaimsKey = "_jwt_claims"
)

var (
	ErrMissingHeader = errors.New("authorization header required")
	ErrInvalidScheme = errors.New("invalid authorization header format")
	ErrEmptyToken    = errors.New("JWT token required")
)

// TokenValidator is satisfied by *jwt.Service.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// validationMessages are checked in order; the first match wins.
var validationMessages = []struct {
	err     error
	message string
}{
	{jwt.ErrTokenRevoked, "JWT token has been revoked"},
	{jwt.ErrExpiredToken, "JWT token has expired"},
	{jwt.ErrMalformedToken, "Malformed JWT token"},
	{jwt.ErrInvalidSignature, "Invalid JWT token signature"},
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingHeader
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidScheme
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func validationMessage(err error) string {
	for _, m := range validationMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return "Invalid JWT token"
}

// RequireJWT rejects requests without a valid, unrevoked session token and
// stores the claims on the context for GetUserID and GetClaims.
func RequireJWT(validator TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, validationMessage(err))
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

func GetUserID(c echo.Context) string {
	userID, _ := c.Get(UserIDKey).(string)
	return userID
}

func GetClaims(c echo.Context) *jwt.Claims {
	claims, _ := c.Get(ClaimsKey).(*jwt.Claims)
	return claims
}
