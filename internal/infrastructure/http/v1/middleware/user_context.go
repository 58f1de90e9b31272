// Package middleware provides HTTP middleware for the explostock API.
package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "explostock/internal/core/context"
)

// HeaderUserID names the acting user when authentication is disabled.
const HeaderUserID = "X-User-ID"

// UserContext resolves the acting user for handlers and the logger.
//
// This middleware must run AFTER Auth (or OptionalAuth). When trustHeader is
// set and no token identified the caller, the X-User-ID header is used; this
// is the development mode with AUTH_ENABLED=false.
//
// Usage in router:
//
//	protected.Use(middleware.Auth(cfg.JWTValidator))
//	protected.Use(middleware.UserContext(false))
func UserContext(trustHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if appctx.GetUser(c.Request.Context()) == nil && trustHeader {
			if uid := c.GetHeader(HeaderUserID); uid != "" {
				ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: uid})
				c.Request = c.Request.WithContext(ctx)
				c.Set("user_id", uid)
			}
		}
		c.Next()
	}
}
