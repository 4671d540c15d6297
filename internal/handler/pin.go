package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/config"
	"github.com/storefy/storefy/internal/middleware"
	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/queue"
	"github.com/storefy/storefy/internal/repository"
	"github.com/storefy/storefy/internal/resolver"
	"github.com/storefy/storefy/internal/service"
)

// PinHandler serves the shared-till flow: a cashier walks up to a device,
// picks the store and punches a PIN. No identity account is involved; the
// resulting session lives in the device's scope and outranks any identity
// session on the same device until it ends.
type PinHandler struct {
	Cfg      config.Config
	Members  *repository.MemberRepo
	Stores   *repository.StoreRepo
	Registry *resolver.Registry
}

func NewPinHandler(cfg config.Config, m *repository.MemberRepo, s *repository.StoreRepo, reg *resolver.Registry) *PinHandler {
	return &PinHandler{Cfg: cfg, Members: m, Stores: s, Registry: reg}
}

type pinLoginReq struct {
	StoreID string `json:"store_id"`
	PIN     string `json:"pin"`
}

type pinSessionResp struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id"`
	StoreName string    `json:"store_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies a till PIN against the store's active members and opens a
// PIN session for the device scope.
func (h *PinHandler) Login(c echo.Context) error {
	var req pinLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.StoreID = strings.TrimSpace(req.StoreID)
	req.PIN = strings.TrimSpace(req.PIN)
	if req.StoreID == "" || req.PIN == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "store_id and pin required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	member, err := h.Members.VerifyPIN(ctx, req.StoreID, req.PIN)
	if err != nil {
		if err == repository.ErrInvalidPIN {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid pin"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pin check failed"})
	}
	store, err := h.Stores.GetStoreByID(ctx, req.StoreID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load store failed"})
	}
	if store == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid pin"})
	}

	scope := middleware.ScopeFrom(c)
	seq := h.Registry.Sequencer(scope)
	pin, err := seq.Sessions().CreatePinSession(ctx, model.PinSession{
		MemberID:  member.ID,
		UserID:    member.UserID,
		StoreID:   store.ID,
		Role:      member.Role,
		Name:      member.DisplayName,
		StoreName: store.Name,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open session failed"})
	}
	seq.Invalidate()

	return c.JSON(http.StatusOK, pinSessionResp{
		Name:      pin.Name,
		Role:      string(pin.Role),
		StoreID:   pin.StoreID,
		StoreName: pin.StoreName,
		ExpiresAt: pin.ExpiresAt,
	})
}

// Logout ends the device's PIN session and broadcasts the change. The
// device falls back to whatever identity session it also holds.
func (h *PinHandler) Logout(c echo.Context) error {
	scope := middleware.ScopeFrom(c)
	seq := h.Registry.Sequencer(scope)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := seq.EndPinSession(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "end session failed"})
	}
	go func() {
		_ = service.PublishSessionChanged(context.Background(),
			queue.SessionChangedEvent{Scope: scope, Kind: queue.SessionPinEnded})
	}()
	return c.NoContent(http.StatusNoContent)
}
