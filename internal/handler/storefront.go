package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/repository"
)

// StorefrontHandler serves the public, unauthenticated storefront lookup.
// Responses are cacheable (see middleware.NewRedisCache); nothing here may
// depend on session state.
type StorefrontHandler struct {
	Stores *repository.StoreRepo
}

func NewStorefrontHandler(s *repository.StoreRepo) *StorefrontHandler {
	return &StorefrontHandler{Stores: s}
}

// BySlug returns the public profile of a store by its slug.
func (h *StorefrontHandler) BySlug(c echo.Context) error {
	slug := c.Param("slug")
	if slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, err := h.Stores.GetStoreBySlug(ctx, slug)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":   store.ID,
		"name": store.Name,
		"slug": store.Slug,
	})
}
