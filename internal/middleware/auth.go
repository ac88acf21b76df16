package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"go.uber.org/zap"
)

// SessionValidator confirms that a correctly signed access token still
// belongs to a usable account.
type SessionValidator interface {
	ValidateSession(ctx context.Context, claims *util.Claims) error
}

// accessToken reads the bearer token from the Authorization header, falling
// back to the jwt cookie.
func accessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(util.AccessCookie); err == nil {
		return cookie
	}
	return ""
}

var errNoToken = errors.New("no token")

func authenticate(c *gin.Context, signer *util.TokenSigner, sessions SessionValidator) (*util.Claims, error) {
	tokenString := accessToken(c)
	if tokenString == "" {
		return nil, errNoToken
	}
	claims, err := signer.Parse(util.AccessToken, tokenString)
	if err != nil {
		return nil, err
	}
	if sessions != nil {
		if err := sessions.ValidateSession(c.Request.Context(), claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func AuthMiddleware(signer *util.TokenSigner, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(c, signer, sessions)
		switch {
		case errors.Is(err, errNoToken):
			util.Error(c, 401, "Not authorized, no token")
			c.Abort()
			return
		case err != nil:
			logger.Log.Debug("Access token rejected", zap.Error(err))
			util.Error(c, 401, "Not authorized, token failed")
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// TryAuthMiddleware attaches the caller's claims when a valid access token is
// present and lets the request through either way.
func TryAuthMiddleware(signer *util.TokenSigner, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := authenticate(c, signer, sessions); err == nil {
			c.Set("user", claims)
		}
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Error(c, 403, "Not authorized for this action")
			c.Abort()
			return
		}
		c.Next()
	}
}
