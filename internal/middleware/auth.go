package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"trust-service/internal/principal"
	"trust-service/pkg/jwtutil"
	"trust-service/pkg/logger"
)

// PrincipalMiddleware resolves every request to a Principal and stores it
// in the context. Requests without a token, or with an invalid one,
// proceed as the anonymous principal: public reads stay possible and the
// policy table denies everything that requires authentication.
func PrincipalMiddleware(resolver *principal.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			identity := identityFromRequest(c, log)
			p := resolver.Resolve(identity)
			c.Set(principal.ContextKey, p)

			if !p.IsAnonymous() {
				log.Debug("request authenticated",
					zap.Uint("user_id", p.UserID),
					zap.String("role", string(p.Role)),
					zap.Int("business_count", len(p.BusinessIDs)))
			}

			return next(c)
		}
	}
}

// identityFromRequest extracts the authenticated identity from the Bearer
// token, or nil for anonymous/invalid requests.
func identityFromRequest(c echo.Context, log *zap.Logger) *principal.Identity {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		log.Warn("Invalid authorization header format")
		return nil
	}

	claims, err := jwtutil.ValidateToken(parts[1])
	if err != nil {
		log.Warn("Invalid JWT token", zap.Error(err))
		return nil
	}

	return &principal.Identity{
		UserID:        claims.UserID,
		EmailVerified: claims.EmailVerified,
	}
}

// RequireAuthenticated rejects anonymous principals. Used for routes that
// make no sense without a signed-in user (everything except public reads).
func RequireAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := principal.FromEcho(c)
		if p.IsAnonymous() {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		return next(c)
	}
}
