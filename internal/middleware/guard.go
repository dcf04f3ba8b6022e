package middleware

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"pharmcatalog/internal/auth"
	apperrors "pharmcatalog/internal/errors"
)

// ClaimsKey is the echo context key holding the verified *auth.Claims.
const ClaimsKey = "claims"

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Authenticate extracts the bearer token, verifies it and attaches the
// claims to the context. Missing or invalid tokens yield 401.
func Authenticate(verifier TokenVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ClaimsKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return verifier.ValidateToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, apperrors.ErrInvalidToken) {
				return errorResponse(apperrors.ErrInvalidToken)
			}
			return errorResponse(apperrors.ErrMissingToken)
		},
	})
}

// Authorize rejects callers whose role is not in roles with 403. An empty
// role set admits any authenticated caller. Requests without attached
// claims yield 401.
func Authorize(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return errorResponse(apperrors.ErrUnauthorized)
			}
			if !roleAllowed(claims.Role, roles) {
				return errorResponse(apperrors.ErrForbidden)
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims attached by Authenticate.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func roleAllowed(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func errorResponse(err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}
