package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxLoyaltyBodySize = 4 * 1024

// LoyaltyHandlers exposes the points balance and the one-time redemption
// endpoint.
type LoyaltyHandlers struct {
	verifier auth.AccessTokenVerifier
	loyalty  services.LoyaltyService
}

// NewLoyaltyHandlers constructs handlers enforcing bearer authentication
// before invoking the loyalty service.
func NewLoyaltyHandlers(verifier auth.AccessTokenVerifier, loyalty services.LoyaltyService) *LoyaltyHandlers {
	return &LoyaltyHandlers{verifier: verifier, loyalty: loyalty}
}

// Routes wires the /loyalty endpoints onto the provided router.
func (h *LoyaltyHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier))
	}
	r.Get("/balance", h.getBalance)
	r.Post("/redeem", h.redeem)
}

type redeemRequest struct {
	OrderID string `json:"order_id"`
	Points  int64  `json:"points"`
}

type redeemResponse struct {
	Order           orderPayload `json:"order"`
	PointsRedeemed  int64        `json:"points_redeemed"`
	DiscountApplied int64        `json:"discount_applied"`
	NewTotal        int64        `json:"new_total"`
	RemainingPoints int64        `json:"remaining_points"`
}

func (h *LoyaltyHandlers) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	balance, err := h.loyalty.Balance(ctx, caller)
	if err != nil {
		writeLoyaltyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"points_balance": balance})
}

func (h *LoyaltyHandlers) redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req redeemRequest
	if err := decodeJSONBody(r, maxLoyaltyBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.loyalty.Redeem(ctx, caller, req.OrderID, req.Points)
	if err != nil {
		writeLoyaltyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, redeemResponse{
		Order:           buildOrderPayload(result.Order),
		PointsRedeemed:  result.PointsRedeemed,
		DiscountApplied: result.DiscountApplied,
		NewTotal:        result.NewTotal,
		RemainingPoints: result.RemainingPoints,
	})
}

func writeLoyaltyError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrLoyaltyInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrLoyaltyNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "order or account not found", http.StatusNotFound))
	case errors.Is(err, services.ErrLoyaltyForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you may only redeem against your own orders", http.StatusForbidden))
	case errors.Is(err, services.ErrLoyaltyAlreadyRedeemed):
		httpx.WriteError(ctx, w, httpx.NewError("already_redeemed", "points were already redeemed against this order", http.StatusConflict))
	case errors.Is(err, services.ErrLoyaltyInsufficientPoints):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_points", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrLoyaltyConflict):
		httpx.WriteError(ctx, w, httpx.NewError("loyalty_conflict", "redemption raced a concurrent update; retry", http.StatusConflict))
	case errors.Is(err, services.ErrLoyaltyUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("loyalty_service_unavailable", "loyalty service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("loyalty_error", "failed to process request", http.StatusInternalServerError))
	}
}
