package middleware

// identity.go extracts the identity session and device scope from the
// request. The identity middleware is deliberately tolerant: a missing,
// expired or invalid bearer token just means "no identity session" and the
// request continues unauthenticated — the route guard decides what that
// implies for the requested page. Rejecting here would bounce users whose
// session would have been resolved through a live PIN session instead.

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/model"
)

const (
	identityKey = "identity"
	// DeviceHeader names the device scope a shared till or browser sends
	// with every request. Scopes partition the persisted session state.
	DeviceHeader = "X-Device-ID"
)

// Identity returns a middleware that parses a Bearer access token when one
// is present and stashes the resulting *model.Identity in the context.
// Verification failures are treated as "unauthenticated", never as 401.
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return next(c)
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return next(c)
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				return next(c)
			}
			email, _ := claims["email"].(string)
			c.Set(identityKey, &model.Identity{ID: sub, Email: email})
			return next(c)
		}
	}
}

// IdentityFrom returns the authenticated identity, or nil.
func IdentityFrom(c echo.Context) *model.Identity {
	if v, ok := c.Get(identityKey).(*model.Identity); ok {
		return v
	}
	return nil
}

// ScopeFrom derives the device scope for the request: the declared device
// id when present, otherwise the identity id (a browser without a device id
// still gets a stable per-account scope), otherwise "anon".
func ScopeFrom(c echo.Context) string {
	if id := strings.TrimSpace(c.Request().Header.Get(DeviceHeader)); id != "" {
		return id
	}
	if ident := IdentityFrom(c); ident != nil {
		return "user-" + ident.ID
	}
	return "anon"
}
