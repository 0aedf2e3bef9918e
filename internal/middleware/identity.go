package middleware

// identity.go defines helpers shared across middleware and handlers for
// reading the authenticated member's identity out of the Echo context.
// JWTAuth stores the token subject under "user_id"; the subject is the
// identity provider's external user id, which the membership directory
// maps to a membership record.

import (
    "github.com/labstack/echo/v4"
)

// ActorExternalID returns the authenticated caller's external user id, or
// "" when the request carries no authenticated identity.
func ActorExternalID(c echo.Context) string {
    if v := c.Get("user_id"); v != nil {
        if s, ok := v.(string); ok {
            return s
        }
    }
    return ""
}
