package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/resolver"
)

const snapshotKey = "session_snapshot"

// GuardConfig controls where the guard sends actors it turns away.
type GuardConfig struct {
	LandingPath     string // unauthenticated actors
	StoreSelectPath string // identity without a resolved store
	PinLoginPath    string // till whose PIN session is gone

	// When RedirectDenied is set, a permission miss redirects to
	// FallbackPath instead of rendering the 403 body.
	RedirectDenied bool
	FallbackPath   string
}

// Guard is the single enforcement point in front of every protected page.
// It resolves the device scope's session through the sequencer registry and
// applies the decision table top-to-bottom, first match wins. The guard
// itself mutates nothing; the one exception is clearing a PIN session whose
// store is known to be gone, which is deliberate cleanup of bad state.
func Guard(reg *resolver.Registry, cfg GuardConfig, page permission.Page) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident := IdentityFrom(c)
			seq := reg.Sequencer(ScopeFrom(c))
			snap := seq.Ensure(c.Request().Context(), ident)

			switch {
			case snap.Phase == resolver.PhaseError:
				// Backend failure during resolution. Show the retry
				// affordance; redirecting now could bounce a user whose
				// session would have restored fine.
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"error": "session_resolution_failed",
					"retry": "/v1/session/retry",
				})

			case !snap.Ready():
				// Still resolving: loading indicator, never a redirect.
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"status": "initializing",
					"phase":  string(snap.Phase),
				})

			case snap.AuthType == model.AuthNone && snap.PinInvalidated:
				// The till's store was deleted; the session is already
				// cleared, send the device back to the PIN pad.
				_ = seq.Sessions().ClearPinSession(c.Request().Context())
				return c.Redirect(http.StatusFound, cfg.PinLoginPath)

			case snap.AuthType == model.AuthNone:
				return c.Redirect(http.StatusFound, cfg.LandingPath)

			case snap.AuthType == model.AuthIdentity && snap.Store == nil:
				return c.Redirect(http.StatusFound, cfg.StoreSelectPath)

			case !permission.CanAccessPage(snap.Role, page):
				if cfg.RedirectDenied && cfg.FallbackPath != "" {
					return c.Redirect(http.StatusFound, cfg.FallbackPath)
				}
				// An expected control-flow outcome, not an error to log.
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "access denied",
					"page":  string(page),
				})
			}

			c.Set(snapshotKey, snap)
			return next(c)
		}
	}
}

// SnapshotFrom returns the resolved session the guard stored for the
// request. Only meaningful below a Guard middleware.
func SnapshotFrom(c echo.Context) (resolver.Snapshot, bool) {
	snap, ok := c.Get(snapshotKey).(resolver.Snapshot)
	return snap, ok
}
