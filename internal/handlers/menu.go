package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

// MenuHandlers exposes the public, read-only catalog endpoints. Catalog
// mutations live under /admin.
type MenuHandlers struct {
	menu services.MenuService
}

// NewMenuHandlers constructs the public catalog handlers.
func NewMenuHandlers(menu services.MenuService) *MenuHandlers {
	return &MenuHandlers{menu: menu}
}

// Routes wires the /menu endpoints onto the provided router.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listMenu)
	r.Get("/{itemID}", h.getMenuItem)
}

func (h *MenuHandlers) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The public listing shows only what is currently sold unless the
	// caller asks for everything.
	onlyAvailable := !strings.EqualFold(r.URL.Query().Get("include_unavailable"), "true")

	items, err := h.menu.List(ctx, onlyAvailable)
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}

	payload := make([]menuItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, buildMenuItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, menuResponse{Items: payload, Count: len(payload)})
}

func (h *MenuHandlers) getMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	item, err := h.menu.Get(ctx, chi.URLParam(r, "itemID"))
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, menuItemResponse{Item: buildMenuItemPayload(item)})
}

func writeMenuError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrMenuInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMenuNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("menu_item_not_found", "menu item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMenuForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrMenuConflict):
		httpx.WriteError(ctx, w, httpx.NewError("menu_conflict", "catalog entry was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrMenuUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("menu_service_unavailable", "menu service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("menu_error", "failed to process request", http.StatusInternalServerError))
	}
}

type menuResponse struct {
	Items []menuItemPayload `json:"items"`
	Count int               `json:"count"`
}

type menuItemResponse struct {
	Item menuItemPayload `json:"item"`
}

type menuItemPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Available   bool   `json:"available"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func buildMenuItemPayload(item domain.MenuItem) menuItemPayload {
	return menuItemPayload{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Category:    item.Category,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Available:   item.Available,
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
}
