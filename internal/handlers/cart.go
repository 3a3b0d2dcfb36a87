package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes authenticated takeaway-cart endpoints for the current
// user.
type CartHandlers struct {
	verifier auth.AccessTokenVerifier
	carts    services.CartService
}

// NewCartHandlers constructs handlers enforcing bearer authentication before
// invoking the cart service.
func NewCartHandlers(verifier auth.AccessTokenVerifier, carts services.CartService) *CartHandlers {
	return &CartHandlers{verifier: verifier, carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier))
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Put("/items/{itemID}", h.setItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Post("/checkout", h.checkout)
}

type setCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
	PickupTime    string `json:"pickup_time"`
	Notes         string `json:"notes,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	view, err := h.carts.Get(ctx, caller)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) setItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req setCartItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	view, err := h.carts.SetItem(ctx, caller, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	view, err := h.carts.RemoveItem(ctx, caller, chi.URLParam(r, "itemID"))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.carts.Clear(ctx, caller); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	input := services.CheckoutInput{
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		Notes:         req.Notes,
	}
	if pickup := strings.TrimSpace(req.PickupTime); pickup != "" {
		parsed, err := parseRFC3339(pickup)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pickup_time must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		input.PickupTime = &parsed
	}

	order, err := h.carts.Checkout(ctx, caller, input)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable), errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	Lines     []cartLinePayload `json:"lines"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	LineTotal  int64  `json:"line_total"`
	Available  bool   `json:"available"`
}

func buildCartPayload(view services.CartView) cartPayload {
	lines := make([]cartLinePayload, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, cartLinePayload{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineTotal:  line.LineTotal,
			Available:  line.Available,
		})
	}
	return cartPayload{
		Lines:     lines,
		Subtotal:  view.Subtotal,
		UpdatedAt: formatTime(view.UpdatedAt),
	}
}
