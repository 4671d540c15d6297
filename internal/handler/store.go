package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/middleware"
	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/queue"
	"github.com/storefy/storefy/internal/repository"
	"github.com/storefy/storefy/internal/resolver"
	"github.com/storefy/storefy/internal/service"
)

// StoreHandler serves the store list and store switching for identity users.
type StoreHandler struct {
	Stores   *repository.StoreRepo
	Registry *resolver.Registry
}

func NewStoreHandler(s *repository.StoreRepo, reg *resolver.Registry) *StoreHandler {
	return &StoreHandler{Stores: s, Registry: reg}
}

type storeResp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

func toStoreResp(s model.Store) storeResp {
	return storeResp{ID: s.ID, Name: s.Name, Slug: s.Slug, Role: string(s.Role)}
}

// List returns every store the authenticated identity can work in, with the
// role held in each.
func (h *StoreHandler) List(c echo.Context) error {
	ident := middleware.IdentityFrom(c)
	if ident == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stores, err := h.Stores.ListStoresForIdentity(ctx, ident.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stores failed"})
	}
	out := make([]storeResp, 0, len(stores))
	for _, s := range stores {
		out = append(out, toStoreResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"stores": out})
}

type selectStoreReq struct {
	StoreID string `json:"store_id"`
}

// Select switches the device scope to another of the identity's stores.
// Membership is re-checked server-side; the persisted selection only ever
// names a store the identity actually belongs to.
func (h *StoreHandler) Select(c echo.Context) error {
	ident := middleware.IdentityFrom(c)
	if ident == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req selectStoreReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.StoreID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "store_id required"})
	}

	scope := middleware.ScopeFrom(c)
	seq := h.Registry.Sequencer(scope)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	store, err := seq.SelectStore(ctx, ident, strings.TrimSpace(req.StoreID))
	if err != nil {
		if errors.Is(err, resolver.ErrNotMember) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a member of that store"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "select store failed"})
	}

	go func() {
		_ = service.PublishSessionChanged(context.Background(), queue.SessionChangedEvent{
			Scope:   scope,
			Kind:    queue.SessionStoreSelected,
			UserID:  ident.ID,
			StoreID: store.ID,
		})
	}()

	return c.JSON(http.StatusOK, echo.Map{"store": toStoreResp(*store)})
}
