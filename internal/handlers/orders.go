package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxOrderBodySize = 32 * 1024

// OrderHandlers exposes authenticated order endpoints for the current user.
type OrderHandlers struct {
	verifier auth.AccessTokenVerifier
	orders   services.OrderService
}

// NewOrderHandlers constructs handlers enforcing bearer authentication before
// invoking the order service.
func NewOrderHandlers(verifier auth.AccessTokenVerifier, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{verifier: verifier, orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier))
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

type createOrderRequest struct {
	Channel         string             `json:"channel"`
	Items           []orderItemRequest `json:"items"`
	PaymentMethod   string             `json:"payment_method"`
	DeliveryAddress string             `json:"delivery_address,omitempty"`
	PickupTime      string             `json:"pickup_time,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	input := services.CreateOrderInput{
		Channel:         domain.OrderChannel(strings.TrimSpace(req.Channel)),
		PaymentMethod:   domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, domain.OrderItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		})
	}
	if pickup := strings.TrimSpace(req.PickupTime); pickup != "" {
		parsed, err := parseRFC3339(pickup)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pickup_time must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		input.PickupTime = &parsed
	}

	order, err := h.orders.Create(ctx, caller, input)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.Get(ctx, caller, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	input, err := parseListOrdersQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.List(ctx, caller, input)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, ordersResponse{Orders: payload, Count: len(payload)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.Cancel(ctx, caller, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func parseListOrdersQuery(r *http.Request) (services.ListOrdersInput, error) {
	var input services.ListOrdersInput
	query := r.URL.Query()

	if channel := strings.TrimSpace(query.Get("channel")); channel != "" {
		value := domain.OrderChannel(channel)
		if value != domain.ChannelDelivery && value != domain.ChannelTakeaway {
			return input, errors.New("channel must be delivery or takeaway")
		}
		input.Channel = &value
	}
	for _, status := range query["status"] {
		status = strings.TrimSpace(status)
		if status != "" {
			input.Status = append(input.Status, domain.OrderStatus(status))
		}
	}
	if from := strings.TrimSpace(query.Get("from")); from != "" {
		parsed, err := parseRFC3339(from)
		if err != nil {
			return input, errors.New("from must be an RFC3339 timestamp")
		}
		input.From = &parsed
	}
	if to := strings.TrimSpace(query.Get("to")); to != "" {
		parsed, err := parseRFC3339(to)
		if err != nil {
			return input, errors.New("to must be an RFC3339 timestamp")
		}
		input.To = &parsed
	}
	if limit := strings.TrimSpace(query.Get("limit")); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return input, errors.New("limit must be a non-negative integer")
		}
		input.Limit = parsed
	}
	return input, nil
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you may not act on this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order", http.StatusInternalServerError))
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
	Count  int            `json:"count"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	Channel         string             `json:"channel"`
	OwnerID         string             `json:"owner_id"`
	Items           []orderItemPayload `json:"items"`
	TotalAmount     int64              `json:"total_amount"`
	Status          string             `json:"status"`
	PaymentMethod   string             `json:"payment_method"`
	PaymentStatus   string             `json:"payment_status"`
	DeliveryAddress string             `json:"delivery_address,omitempty"`
	PickupTime      string             `json:"pickup_time,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Redemption      *redemptionPayload `json:"redemption,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
}

type orderItemPayload struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	LineTotal  int64  `json:"line_total"`
}

type redemptionPayload struct {
	PointsRedeemed  int64  `json:"points_redeemed"`
	DiscountApplied int64  `json:"discount_applied"`
	RedeemedAt      string `json:"redeemed_at"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		Channel:         string(order.Channel),
		OwnerID:         order.OwnerID,
		Items:           buildOrderItems(order.Items),
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		DeliveryAddress: order.DeliveryAddress,
		PickupTime:      formatTimePointer(order.PickupTime),
		Notes:           order.Notes,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		CancelledAt:     formatTimePointer(order.CancelledAt),
	}
	if order.Redemption != nil {
		payload.Redemption = &redemptionPayload{
			PointsRedeemed:  order.Redemption.PointsRedeemed,
			DiscountApplied: order.Redemption.DiscountApplied,
			RedeemedAt:      formatTime(order.Redemption.RedeemedAt),
		}
	}
	return payload
}

func buildOrderItems(items []domain.OrderItem) []orderItemPayload {
	payload := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderItemPayload{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			LineTotal:  item.UnitPrice * int64(item.Quantity),
		})
	}
	return payload
}
