package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// RoleContextKey holds the caller's resolved Role in the echo context.
	RoleContextKey = "caller_role"
	// UsernameContextKey holds the caller's username, when authenticated.
	UsernameContextKey = "caller_username"
)

// Middleware resolves an optional bearer token into a caller role on the
// request context. Requests without a usable token proceed with the base
// facility role: the mock never rejects reads for missing credentials, it
// only withholds elevated workflow authority.
func Middleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(RoleContextKey, RoleFacility)

			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return next(c)
			}
			if sess, live := svc.Resolve(token); live {
				c.Set(RoleContextKey, ParseRole(sess.Role))
				c.Set(UsernameContextKey, sess.Username)
			}
			return next(c)
		}
	}
}

// CallerRole returns the role resolved by Middleware, defaulting to the base
// facility level.
func CallerRole(c echo.Context) Role {
	if r, ok := c.Get(RoleContextKey).(Role); ok {
		return r
	}
	return RoleFacility
}

// CallerUsername returns the authenticated username, or "" for anonymous
// requests.
func CallerUsername(c echo.Context) string {
	if u, ok := c.Get(UsernameContextKey).(string); ok {
		return u
	}
	return ""
}
