package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/flipsapp/flips-backend/pkg/jwtutil"
	"github.com/flipsapp/flips-backend/pkg/logger"
	"github.com/flipsapp/flips-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Auth validates the JWT token from the Authorization header and stores
// the authenticated user in the request context
func Auth(jwt *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Error("Missing Authorization header")
				prometheus.RecordError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Error("Invalid Authorization header format")
				prometheus.RecordError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwt.ValidateToken(parts[1])
			if err != nil {
				log.Error("Invalid JWT token", zap.Error(err))
				prometheus.RecordError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set("user_id", claims.UserID)
			c.Set("username", claims.Username)

			return next(c)
		}
	}
}

// RequireOwner ensures the :parentid route parameter matches the
// authenticated user
func RequireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get("user_id").(uint)
		if !ok {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no user in session"})
		}

		parentID, err := strconv.ParseUint(c.Param("parentid"), 10, 64)
		if err != nil || uint(parentID) != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "this entity does not belong to you"})
		}

		return next(c)
	}
}
