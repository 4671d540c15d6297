package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/storefy/storefy/internal/config"
	"github.com/storefy/storefy/internal/handler"
	"github.com/storefy/storefy/internal/middleware"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/resolver"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the public storefront lookup.
// The storefront route sits behind the Redis response cache when a Redis
// client is available; with rdb nil it is served uncached.
func RegisterRoutes(e *echo.Echo, sf *handler.StorefrontHandler, rdb *redis.Client) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)

	var mw []echo.MiddlewareFunc
	if rdb != nil {
		if cacheCfg := config.LoadCacheConfig(); cacheCfg.Enabled {
			mw = append(mw, middleware.NewRedisCache(cacheCfg, rdb))
		}
	}
	e.GET("/v1/storefront/:slug", sf.BySlug, mw...)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while identity-protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session (register, login,
	// refresh).  Each of these handlers generates or exchanges tokens.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, middleware.Identity(jwtSecret))
	// Rotating refresh: the presented refresh token is revoked and replaced.
	g.POST("/refresh", a.Refresh)
	// Silent renewal: a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either an Authorization header (sign out everywhere) or
	// a refresh_token body (revoke that one token).  The tolerant Identity
	// middleware lets the handler see a bearer token without requiring one.
	g.POST("/logout", a.Logout, middleware.Identity(jwtSecret))

	// Identity-protected endpoints.
	auth := e.Group("/v1", middleware.Identity(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterSession wires the session resolution surface: the snapshot poll,
// the retry endpoint, the store list/selection and the guarded page-context
// routes.  Every route runs behind the tolerant Identity middleware so the
// sequencer sees the request's identity when one is present.
func RegisterSession(e *echo.Echo, cfg config.Config, reg *resolver.Registry,
	sess *handler.SessionHandler, st *handler.StoreHandler, pg *handler.PageHandler) {

	g := e.Group("/v1", middleware.Identity(cfg.JWTSecret))

	g.GET("/session", sess.Get)
	g.POST("/session/retry", sess.Retry)

	g.GET("/stores", st.List)
	g.POST("/stores/select", st.Select)

	// One guarded context route per declared page.  The guard in front of
	// each route is the single enforcement point; the handler behind it
	// trusts the snapshot the guard stashed.
	gcfg := middleware.GuardConfig{
		LandingPath:     cfg.LandingPath,
		StoreSelectPath: cfg.StoreSelectPath,
		PinLoginPath:    cfg.PinLoginPath,
	}
	for _, page := range permission.AllPages {
		g.GET("/pages/"+string(page), pg.Context(page), middleware.Guard(reg, gcfg, page))
	}
}

// RegisterPin wires the shared-till PIN pad.  Login sits behind the Redis
// token bucket so a stolen till cannot brute-force four-digit PINs; with rdb
// nil (dev without Redis) the limiter is skipped.
func RegisterPin(e *echo.Echo, p *handler.PinHandler, rdb *redis.Client) {
	g := e.Group("/v1/pin")
	if rdb != nil {
		if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled {
			g.Use(middleware.NewTokenBucket(rlCfg, rdb))
		}
	}
	g.POST("/login", p.Login)
	g.POST("/logout", p.Logout)
}
