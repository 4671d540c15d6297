package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/middleware"
	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/resolver"
)

// PageHandler serves the per-page context the SPA requests after the route
// guard lets it through. One handler covers every page; the guard already
// proved this role may see it.
type PageHandler struct {
	Registry *resolver.Registry
}

func NewPageHandler(reg *resolver.Registry) *PageHandler {
	return &PageHandler{Registry: reg}
}

type pageContextResp struct {
	Page    string   `json:"page"`
	Store   string   `json:"store_id"`
	Role    string   `json:"role"`
	Actor   string   `json:"actor"`
	Actions []string `json:"actions"`
}

// Context returns what the given page needs to render: the resolved store,
// role, actor name and the actions the role may perform. Loading a page is
// a tracked user action, so a live PIN session gets its activity refreshed
// here rather than in the guard.
func (h *PageHandler) Context(page permission.Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, ok := middleware.SnapshotFrom(c)
		if !ok {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no session"})
		}

		if snap.AuthType == model.AuthPin {
			seq := h.Registry.Sequencer(middleware.ScopeFrom(c))
			_, _ = seq.Sessions().RefreshPinSession(c.Request().Context())
		}

		actor := ""
		switch {
		case snap.Pin != nil:
			actor = snap.Pin.Name
		case snap.Identity != nil:
			actor = snap.Identity.Email
		}

		actions := make([]string, 0, len(permission.AllActions))
		for _, a := range permission.AllActions {
			if permission.CanPerform(snap.Role, a) {
				actions = append(actions, string(a))
			}
		}

		resp := pageContextResp{
			Page:    string(page),
			Role:    string(snap.Role),
			Actor:   actor,
			Actions: actions,
		}
		if snap.Store != nil {
			resp.Store = snap.Store.ID
		}
		return c.JSON(http.StatusOK, resp)
	}
}
